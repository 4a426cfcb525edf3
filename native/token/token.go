package token

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Operation-aborting failures. Transfers never partially apply: either both
// balances move or neither does.
var (
	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)

var errNilState = errors.New("token: state not configured")

// tokenState is the persistence collaborator holding balances and allowances
// per token symbol.
type tokenState interface {
	TokenBalance(symbol string, addr common.Address) (*big.Int, error)
	SetTokenBalance(symbol string, addr common.Address, balance *big.Int) error
	TokenAllowance(symbol string, owner, spender common.Address) (*big.Int, error)
	SetTokenAllowance(symbol string, owner, spender common.Address, amount *big.Int) error
}

// Token implements standard fungible-token semantics over an injected state
// layer. Three instances back the lending ledger: the distribution asset and
// the two fixed collateral assets.
type Token struct {
	symbol string
	state  tokenState
}

// NewToken constructs a token keyed by symbol over the given state.
func NewToken(symbol string, state tokenState) *Token {
	return &Token{symbol: symbol, state: state}
}

// Symbol returns the token's state key.
func (t *Token) Symbol() string {
	if t == nil {
		return ""
	}
	return t.symbol
}

// BalanceOf reports the current balance of addr.
func (t *Token) BalanceOf(addr common.Address) (*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	balance, err := t.state.TokenBalance(t.symbol, addr)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// Allowance reports how much spender may withdraw from owner.
func (t *Token) Allowance(owner, spender common.Address) (*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	allowance, err := t.state.TokenAllowance(t.symbol, owner, spender)
	if err != nil {
		return nil, err
	}
	if allowance == nil {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

// Approve sets spender's allowance at owner to amount.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return t.state.SetTokenAllowance(t.symbol, owner, spender, new(big.Int).Set(amount))
}

// Transfer moves amount from from to to, failing on insufficient balance.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return t.move(from, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// the spender's allowance at from. A transfer the owner performs directly is
// not charged against an allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if spender != from {
		allowance, err := t.Allowance(from, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		remaining := new(big.Int).Sub(allowance, amount)
		if err := t.state.SetTokenAllowance(t.symbol, from, spender, remaining); err != nil {
			return err
		}
	}
	return t.move(from, to, amount)
}

// Mint credits amount to addr out of thin air. Reserved for genesis wiring
// and tests; the lending engine never mints.
func (t *Token) Mint(addr common.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := t.BalanceOf(addr)
	if err != nil {
		return err
	}
	return t.state.SetTokenBalance(t.symbol, addr, new(big.Int).Add(balance, amount))
}

// Burn debits amount from addr, failing on insufficient balance.
func (t *Token) Burn(addr common.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := t.BalanceOf(addr)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return t.state.SetTokenBalance(t.symbol, addr, new(big.Int).Sub(balance, amount))
}

func (t *Token) move(from, to common.Address, amount *big.Int) error {
	fromBalance, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.state.SetTokenBalance(t.symbol, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return t.state.SetTokenBalance(t.symbol, to, new(big.Int).Add(toBalance, amount))
}
