package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the sole owner of loan records and the identifier sequence. Every
// operation re-reads the current record at call time; no component retains a
// loan reference across calls.
type Ledger struct {
	state engineState
}

// Create validates the inputs, allocates the next identifier and stores a new
// loan record with a zeroed interest snapshot taken at now.
func (l *Ledger) Create(borrower common.Address, kind CollateralKind, amountIn, amountOut *big.Int, ratio uint64, now int64) (*Loan, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if amountIn == nil || amountIn.Sign() <= 0 || amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if ratio < MinCollateralRatio || ratio > MaxCollateralRatio {
		return nil, ErrCollateralRatioOutOfRange
	}
	id, err := l.state.NextLoanID()
	if err != nil {
		return nil, err
	}
	loan := &Loan{
		ID:                     id,
		Borrower:               borrower,
		CollateralKind:         kind,
		AmountLoaned:           new(big.Int).Set(amountOut),
		AmountCollateral:       new(big.Int).Set(amountIn),
		CollateralRatioPercent: ratio,
		AccruedInterest:        big.NewInt(0),
		LastSettledAt:          now,
	}
	if err := l.state.LoanPut(loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// Get returns the current record for id, failing with ErrLoanNotFound when no
// record exists.
func (l *Ledger) Get(id uint64) (*Loan, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	loan, err := l.state.LoanGet(id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	loan.ensureDefaults()
	return loan, nil
}

// Put persists an in-place mutation of the record. When the mutation reduced
// the collateral to zero the record is deleted instead: a record exists if
// and only if its collateral is positive.
func (l *Ledger) Put(loan *Loan) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if loan == nil {
		return ErrLoanNotFound
	}
	loan.ensureDefaults()
	if loan.AmountCollateral.Sign() == 0 {
		return l.state.LoanDelete(loan.ID)
	}
	return l.state.LoanPut(loan)
}

// Delete removes the record for id.
func (l *Ledger) Delete(id uint64) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return l.state.LoanDelete(id)
}

// TotalIssued reports how many identifiers the sequence has handed out. The
// count never decreases, even across deletions.
func (l *Ledger) TotalIssued() (uint64, error) {
	if l == nil || l.state == nil {
		return 0, errNilState
	}
	return l.state.LoansIssued()
}
