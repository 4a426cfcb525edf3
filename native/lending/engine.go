package lending

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/adnhq/collateralized-lending/core/events"
)

// engineState is the persistence collaborator the engine mutates. RunAtomic
// must execute fn as a single all-or-nothing unit: when fn returns an error
// every write issued inside it is discarded, otherwise all writes commit
// together. Implementations also serialise RunAtomic calls, which gives the
// ledger its total operation ordering.
type engineState interface {
	LoanGet(id uint64) (*Loan, error)
	LoanPut(loan *Loan) error
	LoanDelete(id uint64) error
	NextLoanID() (uint64, error)
	LoansIssued() (uint64, error)
	RunAtomic(fn func() error) error
}

// Token is the fungible-asset collaborator. Transfer moves ledger-held funds
// and fails on insufficient balance; TransferFrom additionally checks the
// spender's allowance at from.
type Token interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// RateOracle reports the truncated whole-unit price of a collateral kind in
// distribution-asset units. A failed read aborts the calling operation.
type RateOracle interface {
	Rate(kind CollateralKind) (*big.Int, error)
}

// Engine orchestrates the loan lifecycle: creation, interest settlement,
// reimbursement, refinancing, forced collection and closure. It computes with
// the interest engine, mutates through the loan ledger and only then issues
// token transfers, so a transfer-triggered re-entry can never observe stale
// collateral or interest figures.
type Engine struct {
	state      engineState
	ledger     *Ledger
	dist       Token
	collateral map[CollateralKind]Token
	oracle     RateOracle
	access     AccessControl
	custody    common.Address
	seizure    SeizureRecipient
	emitter    events.Emitter
	nowFn      func() int64
}

// NewEngine constructs a settlement engine holding collateral and liquidity
// under the custody account and gating privileged operations through access.
func NewEngine(custody common.Address, access AccessControl, cfg Config) *Engine {
	cfg = cfg.Normalise()
	return &Engine{
		collateral: make(map[CollateralKind]Token),
		access:     access,
		custody:    custody,
		seizure:    cfg.SeizureRecipient,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
	e.ledger = &Ledger{state: state}
}

// SetDistributionToken configures the distribution-asset collaborator.
func (e *Engine) SetDistributionToken(token Token) {
	if e == nil {
		return
	}
	e.dist = token
}

// SetCollateralToken binds the token collaborator backing the given kind.
func (e *Engine) SetCollateralToken(kind CollateralKind, token Token) {
	if e == nil || !kind.Valid() {
		return
	}
	e.collateral[kind] = token
}

// SetOracle configures the rate oracle collaborator.
func (e *Engine) SetOracle(oracle RateOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Ledger exposes the loan ledger for read-only collaborators.
func (e *Engine) Ledger() *Ledger {
	if e == nil {
		return nil
	}
	return e.ledger
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.oracle == nil:
		return errNilOracle
	case e.dist == nil:
		return errNilToken
	case e.access == nil:
		return errNilAccess
	}
	return nil
}

func (e *Engine) collateralToken(kind CollateralKind) (Token, error) {
	token, ok := e.collateral[kind]
	if !ok || token == nil {
		return nil, errNilToken
	}
	return token, nil
}

// TakeLoan locks amountIn collateral of the given kind pulled from the caller
// and pays out amountOut of the distribution asset against it. The collateral
// ratio is amountIn * rate(kind) * 100 / amountOut, floor-divided, and must
// fall within [MinCollateralRatio, MaxCollateralRatio]. The new loan id is
// returned.
func (e *Engine) TakeLoan(caller common.Address, kind CollateralKind, amountIn, amountOut *big.Int) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, errUnknownCollateral
	}
	if amountIn == nil || amountIn.Sign() <= 0 || amountOut == nil || amountOut.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	collateralToken, err := e.collateralToken(kind)
	if err != nil {
		return 0, err
	}

	var (
		loanID uint64
		evt    events.Event
	)
	err = e.state.RunAtomic(func() error {
		rate, err := e.oracle.Rate(kind)
		if err != nil {
			return err
		}
		ratio := new(big.Int).Mul(amountIn, rate)
		ratio.Mul(ratio, hundred)
		ratio.Quo(ratio, amountOut)
		if !ratio.IsUint64() || ratio.Uint64() < MinCollateralRatio || ratio.Uint64() > MaxCollateralRatio {
			return ErrCollateralRatioOutOfRange
		}

		now := e.now()
		loan, err := e.ledger.Create(caller, kind, amountIn, amountOut, ratio.Uint64(), now)
		if err != nil {
			return err
		}

		if err := collateralToken.TransferFrom(e.custody, caller, e.custody, amountIn); err != nil {
			return err
		}
		if err := e.dist.Transfer(e.custody, caller, amountOut); err != nil {
			return err
		}

		loanID = loan.ID
		evt = NewTokensLoanedEvent(caller, loan.ID, amountOut, now)
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(evt)
	return loanID, nil
}

// PayInterest settles the interest owed on the loan as of now, transferring
// it from the caller to the administrator. The settled amount is returned.
func (e *Engine) PayInterest(caller common.Address, id uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	var (
		due *big.Int
		evt events.Event
	)
	err := e.state.RunAtomic(func() error {
		loan, err := e.ledger.Get(id)
		if err != nil {
			return err
		}
		now := e.now()
		total, err := TotalInterest(loan, now)
		if err != nil {
			return err
		}
		if total.Sign() == 0 {
			return ErrNoInterestDue
		}

		loan.AccruedInterest = big.NewInt(0)
		loan.LastSettledAt = now
		if err := e.ledger.Put(loan); err != nil {
			return err
		}

		if err := e.dist.TransferFrom(e.custody, caller, e.access.Admin(), total); err != nil {
			return err
		}

		due = total
		evt = NewInterestPaidEvent(id, caller, total, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(evt)
	return due, nil
}

// Reimburse reduces the loan by amount, paid by the borrower in the
// distribution asset, and re-snapshots the interest accrual. Driving the
// collateral to exactly zero closes the loan and deletes its record. The
// repayment is deliberately taken in the distribution asset while the
// reduction applies to the collateral balance.
func (e *Engine) Reimburse(caller common.Address, id uint64, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}

	return e.state.RunAtomic(func() error {
		loan, err := e.ledger.Get(id)
		if err != nil {
			return err
		}
		if loan.Borrower != caller {
			return ErrNotBorrower
		}
		if amount == nil || amount.Sign() <= 0 || amount.Cmp(loan.AmountCollateral) > 0 {
			return ErrInvalidAmount
		}

		now := e.now()
		total, err := TotalInterest(loan, now)
		if err != nil {
			return err
		}
		loan.AccruedInterest = total
		loan.LastSettledAt = now
		loan.AmountCollateral = new(big.Int).Sub(loan.AmountCollateral, amount)
		if err := e.ledger.Put(loan); err != nil {
			return err
		}

		return e.dist.TransferFrom(e.custody, caller, e.custody, amount)
	})
}

// Refinance increases the principal against appreciated collateral. The
// claimable amount is rate * amountCollateral * 100 / ratio minus the current
// principal and a RefinanceFeePercent fee on that principal; the fee goes to
// the administrator and the claimable amount to the borrower. The claimable
// amount is returned.
func (e *Engine) Refinance(caller common.Address, id uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	var claimed *big.Int
	err := e.state.RunAtomic(func() error {
		loan, err := e.ledger.Get(id)
		if err != nil {
			return err
		}
		if loan.Borrower != caller {
			return ErrNotBorrower
		}

		rate, err := e.oracle.Rate(loan.CollateralKind)
		if err != nil {
			return err
		}

		fee := new(big.Int).Mul(loan.AmountLoaned, big.NewInt(RefinanceFeePercent))
		fee.Quo(fee, hundred)

		claimable := new(big.Int).Mul(rate, loan.AmountCollateral)
		claimable.Mul(claimable, hundred)
		claimable.Quo(claimable, new(big.Int).SetUint64(loan.CollateralRatioPercent))
		claimable.Sub(claimable, loan.AmountLoaned)
		claimable.Sub(claimable, fee)
		if claimable.Sign() <= 0 {
			return ErrRefinanceNotApplicable
		}

		now := e.now()
		total, err := TotalInterest(loan, now)
		if err != nil {
			return err
		}
		loan.AccruedInterest = total
		loan.LastSettledAt = now
		loan.AmountLoaned = new(big.Int).Add(loan.AmountLoaned, claimable)
		if err := e.ledger.Put(loan); err != nil {
			return err
		}

		if err := e.dist.Transfer(e.custody, e.access.Admin(), fee); err != nil {
			return err
		}
		if err := e.dist.Transfer(e.custody, caller, claimable); err != nil {
			return err
		}

		claimed = claimable
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CollectInterest is the admin-only forced settlement path: once
// CollectionCooldown has elapsed since the last settlement, collateral worth
// part of the overdue interest may be seized. The seized value, priced
// through the oracle, must not exceed the interest due; the shortfall stays
// on the record as accrued interest. The seizure destination is a deployment
// choice (administrator or ledger custody).
func (e *Engine) CollectInterest(caller common.Address, id uint64, collateralAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.access.IsAdmin(caller) {
		return ErrUnauthorized
	}

	return e.state.RunAtomic(func() error {
		loan, err := e.ledger.Get(id)
		if err != nil {
			return err
		}
		now := e.now()
		if now-loan.LastSettledAt < CollectionCooldown {
			return ErrCooldownNotElapsed
		}
		if collateralAmount == nil || collateralAmount.Sign() <= 0 || collateralAmount.Cmp(loan.AmountCollateral) > 0 {
			return ErrInvalidAmount
		}

		due, err := TotalInterest(loan, now)
		if err != nil {
			return err
		}
		rate, err := e.oracle.Rate(loan.CollateralKind)
		if err != nil {
			return err
		}
		value := new(big.Int).Mul(collateralAmount, rate)
		if due.Cmp(value) < 0 {
			return ErrCollateralInsufficientForInterest
		}

		loan.LastSettledAt = now
		loan.AccruedInterest = new(big.Int).Sub(due, value)
		loan.AmountCollateral = new(big.Int).Sub(loan.AmountCollateral, collateralAmount)
		kind := loan.CollateralKind
		if err := e.ledger.Put(loan); err != nil {
			return err
		}

		if e.seizure == SeizureToCustody {
			// Seized collateral stays in ledger custody; no transfer leaves
			// the custody account.
			return nil
		}
		collateralToken, err := e.collateralToken(kind)
		if err != nil {
			return err
		}
		return collateralToken.Transfer(e.custody, e.access.Admin(), collateralAmount)
	})
}

// Reinstate is the admin-only forced closure: the record is deleted and the
// remaining collateral returned to the borrower.
func (e *Engine) Reinstate(caller common.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.access.IsAdmin(caller) {
		return ErrUnauthorized
	}

	return e.state.RunAtomic(func() error {
		loan, err := e.ledger.Get(id)
		if err != nil {
			if err == ErrLoanNotFound {
				return ErrNothingToReinstate
			}
			return err
		}
		if loan.AmountCollateral.Sign() == 0 {
			return ErrNothingToReinstate
		}

		if err := e.ledger.Delete(id); err != nil {
			return err
		}

		collateralToken, err := e.collateralToken(loan.CollateralKind)
		if err != nil {
			return err
		}
		return collateralToken.Transfer(e.custody, loan.Borrower, loan.AmountCollateral)
	})
}

// WithdrawTokens is the admin-only treasury drain: amount of the distribution
// asset moves from ledger custody to the caller.
func (e *Engine) WithdrawTokens(caller common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.access.IsAdmin(caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	return e.state.RunAtomic(func() error {
		return e.dist.Transfer(e.custody, caller, amount)
	})
}

// GetLoanInfo returns a copy of the current record for id.
func (e *Engine) GetLoanInfo(id uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, err := e.ledger.Get(id)
	if err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// GetTotalInterest reports the interest owed on the loan as of the current
// time.
func (e *Engine) GetTotalInterest(id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, err := e.ledger.Get(id)
	if err != nil {
		return nil, err
	}
	return TotalInterest(loan, e.now())
}

// TotalLoansIssued reports how many loans have ever been created.
func (e *Engine) TotalLoansIssued() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.ledger.TotalIssued()
}
