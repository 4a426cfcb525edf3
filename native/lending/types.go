package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CollateralKind selects which of the two fixed collateral assets backs a
// loan.
type CollateralKind uint8

const (
	// CollateralA is the first supported collateral asset.
	CollateralA CollateralKind = iota
	// CollateralB is the second supported collateral asset.
	CollateralB
)

// Valid reports whether the kind names a supported collateral asset.
func (k CollateralKind) Valid() bool {
	return k == CollateralA || k == CollateralB
}

// String renders the canonical single-letter name of the collateral kind.
func (k CollateralKind) String() string {
	switch k {
	case CollateralA:
		return "A"
	case CollateralB:
		return "B"
	default:
		return "unknown"
	}
}

// Loan is the ledger record for a single outstanding position. Amount values
// are expressed as big integers to match the precision of the backing assets.
// A record exists if and only if AmountCollateral is positive; reducing the
// collateral to zero deletes the record.
type Loan struct {
	// ID is the unique loan identifier. Identifiers are allocated from a
	// strictly increasing sequence starting at 1 and are never reused.
	ID uint64 `json:"id"`
	// Borrower is the sole party authorised to repay or refinance the loan.
	Borrower common.Address `json:"borrower"`
	// CollateralKind names the asset locked as collateral.
	CollateralKind CollateralKind `json:"collateralKind"`
	// AmountLoaned is the outstanding principal in distribution-asset units.
	AmountLoaned *big.Int `json:"amountLoaned"`
	// AmountCollateral is the locked collateral in units of CollateralKind.
	AmountCollateral *big.Int `json:"amountCollateral"`
	// CollateralRatioPercent is the ratio snapshot taken when the loan was
	// created. It stays within [MinCollateralRatio, MaxCollateralRatio] and
	// drives the interest tier.
	CollateralRatioPercent uint64 `json:"collateralRatioPercent"`
	// AccruedInterest is the interest owed as of LastSettledAt that has not
	// been collected yet.
	AccruedInterest *big.Int `json:"accruedInterest"`
	// LastSettledAt is the unix timestamp of the last interest settlement.
	LastSettledAt int64 `json:"lastSettledAt"`
}

// Clone returns a deep copy of the loan record.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := &Loan{
		ID:                     l.ID,
		Borrower:               l.Borrower,
		CollateralKind:         l.CollateralKind,
		CollateralRatioPercent: l.CollateralRatioPercent,
		LastSettledAt:          l.LastSettledAt,
	}
	if l.AmountLoaned != nil {
		clone.AmountLoaned = new(big.Int).Set(l.AmountLoaned)
	}
	if l.AmountCollateral != nil {
		clone.AmountCollateral = new(big.Int).Set(l.AmountCollateral)
	}
	if l.AccruedInterest != nil {
		clone.AccruedInterest = new(big.Int).Set(l.AccruedInterest)
	}
	return clone
}

func (l *Loan) ensureDefaults() {
	if l.AmountLoaned == nil {
		l.AmountLoaned = big.NewInt(0)
	}
	if l.AmountCollateral == nil {
		l.AmountCollateral = big.NewInt(0)
	}
	if l.AccruedInterest == nil {
		l.AccruedInterest = big.NewInt(0)
	}
}
