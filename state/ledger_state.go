package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/adnhq/collateralized-lending/native/lending"
	"github.com/adnhq/collateralized-lending/storage"
)

const (
	loanSeqKey      = "lending/seq"
	loanKeyPrefix   = "lending/loan/"
	balanceKeyFmt   = "token/%s/balance/%x"
	allowanceKeyFmt = "token/%s/allowance/%x/%x"
)

type journalEntry struct {
	value   []byte
	deleted bool
}

// LedgerState persists loan records, the identifier sequence and token
// balances into a key-value store. It backs both the settlement engine and
// the token collaborators so that one RunAtomic call covers every mutation an
// operation performs.
//
// RunAtomic executes its function against a write journal: on success all
// journalled writes flush to the store together, on failure they are
// discarded wholesale. Calls are serialised, which realises the totally
// ordered, all-or-nothing execution model of the ledger.
type LedgerState struct {
	db storage.Database

	opMu    sync.Mutex
	dataMu  sync.Mutex
	journal map[string]journalEntry
}

// NewLedgerState wraps the given database.
func NewLedgerState(db storage.Database) *LedgerState {
	return &LedgerState{db: db}
}

// RunAtomic runs fn as a single atomic ledger operation.
func (s *LedgerState) RunAtomic(fn func() error) error {
	if s == nil || s.db == nil {
		return errors.New("state: database not configured")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.dataMu.Lock()
	s.journal = make(map[string]journalEntry)
	s.dataMu.Unlock()

	err := fn()

	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	journal := s.journal
	s.journal = nil
	if err != nil {
		return err
	}
	if len(journal) == 0 {
		return nil
	}
	// A single batch write keeps the commit all-or-nothing even when the
	// store itself fails: individual puts could persist a partial journal.
	ops := make([]storage.BatchOp, 0, len(journal))
	for key, entry := range journal {
		if entry.deleted {
			ops = append(ops, storage.BatchOp{Key: []byte(key), Delete: true})
			continue
		}
		ops = append(ops, storage.BatchOp{Key: []byte(key), Value: entry.value})
	}
	return s.db.Write(ops)
}

func (s *LedgerState) get(key string) ([]byte, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if s.journal != nil {
		if entry, ok := s.journal[key]; ok {
			if entry.deleted {
				return nil, storage.ErrKeyNotFound
			}
			return entry.value, nil
		}
	}
	return s.db.Get([]byte(key))
}

func (s *LedgerState) put(key string, value []byte) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if s.journal != nil {
		s.journal[key] = journalEntry{value: value}
		return nil
	}
	return s.db.Put([]byte(key), value)
}

func (s *LedgerState) delete(key string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if s.journal != nil {
		s.journal[key] = journalEntry{deleted: true}
		return nil
	}
	return s.db.Delete([]byte(key))
}

func loanKey(id uint64) string {
	return loanKeyPrefix + strconv.FormatUint(id, 10)
}

// LoanGet returns the stored record for id, or nil when absent.
func (s *LedgerState) LoanGet(id uint64) (*lending.Loan, error) {
	raw, err := s.get(loanKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loan := new(lending.Loan)
	if err := json.Unmarshal(raw, loan); err != nil {
		return nil, fmt.Errorf("state: decode loan %d: %w", id, err)
	}
	return loan, nil
}

// LoanPut stores the record under its identifier.
func (s *LedgerState) LoanPut(loan *lending.Loan) error {
	if loan == nil {
		return errors.New("state: nil loan")
	}
	raw, err := json.Marshal(loan)
	if err != nil {
		return fmt.Errorf("state: encode loan %d: %w", loan.ID, err)
	}
	return s.put(loanKey(loan.ID), raw)
}

// LoanDelete removes the record for id.
func (s *LedgerState) LoanDelete(id uint64) error {
	return s.delete(loanKey(id))
}

// NextLoanID advances the identifier sequence and returns the new value. The
// sequence starts at 1 and is never reused; an aborted operation rolls the
// advance back with the rest of its writes.
func (s *LedgerState) NextLoanID() (uint64, error) {
	current, err := s.LoansIssued()
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := s.put(loanSeqKey, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

// LoansIssued reports the last identifier handed out.
func (s *LedgerState) LoansIssued() (uint64, error) {
	raw, err := s.get(loanSeqKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("state: decode loan sequence: %w", err)
	}
	return value, nil
}

func balanceKey(symbol string, addr common.Address) string {
	return fmt.Sprintf(balanceKeyFmt, symbol, addr.Bytes())
}

func allowanceKey(symbol string, owner, spender common.Address) string {
	return fmt.Sprintf(allowanceKeyFmt, symbol, owner.Bytes(), spender.Bytes())
}

// TokenBalance returns the stored balance for addr, or nil when absent.
func (s *LedgerState) TokenBalance(symbol string, addr common.Address) (*big.Int, error) {
	return s.bigIntAt(balanceKey(symbol, addr))
}

// SetTokenBalance stores the balance for addr.
func (s *LedgerState) SetTokenBalance(symbol string, addr common.Address, balance *big.Int) error {
	return s.putBigInt(balanceKey(symbol, addr), balance)
}

// TokenAllowance returns the stored allowance, or nil when absent.
func (s *LedgerState) TokenAllowance(symbol string, owner, spender common.Address) (*big.Int, error) {
	return s.bigIntAt(allowanceKey(symbol, owner, spender))
}

// SetTokenAllowance stores the allowance of spender at owner.
func (s *LedgerState) SetTokenAllowance(symbol string, owner, spender common.Address, amount *big.Int) error {
	return s.putBigInt(allowanceKey(symbol, owner, spender), amount)
}

func (s *LedgerState) bigIntAt(key string) (*big.Int, error) {
	raw, err := s.get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	value, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("state: decode amount at %s", key)
	}
	return value, nil
}

func (s *LedgerState) putBigInt(key string, value *big.Int) error {
	if value == nil || value.Sign() < 0 {
		return fmt.Errorf("state: amount at %s must be non-negative", key)
	}
	return s.put(key, []byte(value.String()))
}
