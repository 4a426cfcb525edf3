package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/adnhq/collateralized-lending/native/lending"
	"github.com/adnhq/collateralized-lending/storage"
)

func testAddr(suffix byte) common.Address {
	var addr common.Address
	addr[common.AddressLength-1] = suffix
	return addr
}

func testLoan(id uint64) *lending.Loan {
	return &lending.Loan{
		ID:                     id,
		Borrower:               testAddr(0x01),
		CollateralKind:         lending.CollateralA,
		AmountLoaned:           big.NewInt(100),
		AmountCollateral:       big.NewInt(150),
		CollateralRatioPercent: 150,
		AccruedInterest:        big.NewInt(0),
		LastSettledAt:          1000,
	}
}

func TestLoanRoundTrip(t *testing.T) {
	ledger := NewLedgerState(storage.NewMemDB())

	if loan, err := ledger.LoanGet(1); err != nil || loan != nil {
		t.Fatalf("expected absent loan, got %v, %v", loan, err)
	}
	if err := ledger.LoanPut(testLoan(1)); err != nil {
		t.Fatalf("put loan: %v", err)
	}

	loan, err := ledger.LoanGet(1)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if loan.Borrower != testAddr(0x01) || loan.AmountCollateral.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("unexpected stored loan: %+v", loan)
	}

	if err := ledger.LoanDelete(1); err != nil {
		t.Fatalf("delete loan: %v", err)
	}
	if loan, err := ledger.LoanGet(1); err != nil || loan != nil {
		t.Fatalf("expected deleted loan to be absent, got %v, %v", loan, err)
	}
}

func TestLoanSequenceMonotonic(t *testing.T) {
	ledger := NewLedgerState(storage.NewMemDB())

	first, err := ledger.NextLoanID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if first != 1 {
		t.Fatalf("sequence must start at 1, got %d", first)
	}

	second, err := ledger.NextLoanID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if second != 2 {
		t.Fatalf("unexpected second id: got %d want 2", second)
	}

	// Deleting records never rewinds the sequence.
	if err := ledger.LoanDelete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	issued, err := ledger.LoansIssued()
	if err != nil {
		t.Fatalf("loans issued: %v", err)
	}
	if issued != 2 {
		t.Fatalf("unexpected issue count: got %d want 2", issued)
	}
}

func TestRunAtomicCommitsOnSuccess(t *testing.T) {
	db := storage.NewMemDB()
	ledger := NewLedgerState(db)

	err := ledger.RunAtomic(func() error {
		if _, err := ledger.NextLoanID(); err != nil {
			return err
		}
		if err := ledger.LoanPut(testLoan(1)); err != nil {
			return err
		}
		return ledger.SetTokenBalance("DST", testAddr(0x01), big.NewInt(500))
	})
	if err != nil {
		t.Fatalf("run atomic: %v", err)
	}

	loan, err := ledger.LoanGet(1)
	if err != nil || loan == nil {
		t.Fatalf("committed loan missing: %v, %v", loan, err)
	}
	balance, err := ledger.TokenBalance("DST", testAddr(0x01))
	if err != nil || balance == nil || balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("committed balance missing: %v, %v", balance, err)
	}
}

func TestRunAtomicRollsBackOnFailure(t *testing.T) {
	ledger := NewLedgerState(storage.NewMemDB())

	if err := ledger.SetTokenBalance("DST", testAddr(0x01), big.NewInt(100)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	boom := errors.New("transfer failed")
	err := ledger.RunAtomic(func() error {
		if _, err := ledger.NextLoanID(); err != nil {
			return err
		}
		if err := ledger.LoanPut(testLoan(1)); err != nil {
			return err
		}
		if err := ledger.SetTokenBalance("DST", testAddr(0x01), big.NewInt(0)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}

	if loan, err := ledger.LoanGet(1); err != nil || loan != nil {
		t.Fatalf("aborted loan must not persist, got %v, %v", loan, err)
	}
	issued, err := ledger.LoansIssued()
	if err != nil {
		t.Fatalf("loans issued: %v", err)
	}
	if issued != 0 {
		t.Fatalf("aborted id allocation must roll back, got %d", issued)
	}
	balance, err := ledger.TokenBalance("DST", testAddr(0x01))
	if err != nil || balance == nil || balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("aborted balance write must roll back, got %v, %v", balance, err)
	}
}

type writeFailDB struct {
	*storage.MemDB
	failWrites bool
}

func (db *writeFailDB) Write(ops []storage.BatchOp) error {
	if db.failWrites {
		return errors.New("disk full")
	}
	return db.MemDB.Write(ops)
}

func TestRunAtomicCommitFailurePersistsNothing(t *testing.T) {
	db := &writeFailDB{MemDB: storage.NewMemDB()}
	ledger := NewLedgerState(db)

	if err := ledger.SetTokenBalance("DST", testAddr(0x01), big.NewInt(100)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	db.failWrites = true
	err := ledger.RunAtomic(func() error {
		if _, err := ledger.NextLoanID(); err != nil {
			return err
		}
		if err := ledger.LoanPut(testLoan(1)); err != nil {
			return err
		}
		return ledger.SetTokenBalance("DST", testAddr(0x01), big.NewInt(0))
	})
	if err == nil {
		t.Fatalf("expected commit failure to surface")
	}

	// A failed commit must not leave any subset of the journal behind.
	if loan, err := ledger.LoanGet(1); err != nil || loan != nil {
		t.Fatalf("loan persisted despite failed commit: %v, %v", loan, err)
	}
	issued, err := ledger.LoansIssued()
	if err != nil {
		t.Fatalf("loans issued: %v", err)
	}
	if issued != 0 {
		t.Fatalf("sequence persisted despite failed commit: got %d", issued)
	}
	balance, err := ledger.TokenBalance("DST", testAddr(0x01))
	if err != nil || balance == nil || balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance changed despite failed commit: %v, %v", balance, err)
	}
}

func TestRunAtomicReadsSeeJournalledWrites(t *testing.T) {
	ledger := NewLedgerState(storage.NewMemDB())

	err := ledger.RunAtomic(func() error {
		if err := ledger.LoanPut(testLoan(7)); err != nil {
			return err
		}
		loan, err := ledger.LoanGet(7)
		if err != nil {
			return err
		}
		if loan == nil {
			return errors.New("journalled write invisible to read")
		}
		if err := ledger.LoanDelete(7); err != nil {
			return err
		}
		loan, err = ledger.LoanGet(7)
		if err != nil {
			return err
		}
		if loan != nil {
			return errors.New("journalled delete invisible to read")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run atomic: %v", err)
	}
}

func TestTokenBalanceRejectsNegative(t *testing.T) {
	ledger := NewLedgerState(storage.NewMemDB())
	if err := ledger.SetTokenBalance("DST", testAddr(0x01), big.NewInt(-1)); err == nil {
		t.Fatalf("expected error for negative balance")
	}
	if err := ledger.SetTokenBalance("DST", testAddr(0x01), nil); err == nil {
		t.Fatalf("expected error for nil balance")
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	ledger := NewLedgerState(db)
	if _, err := ledger.NextLoanID(); err != nil {
		t.Fatalf("next id: %v", err)
	}
	if err := ledger.LoanPut(testLoan(1)); err != nil {
		t.Fatalf("put loan: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer db.Close()
	ledger = NewLedgerState(db)

	loan, err := ledger.LoanGet(1)
	if err != nil || loan == nil {
		t.Fatalf("loan lost across reopen: %v, %v", loan, err)
	}
	issued, err := ledger.LoansIssued()
	if err != nil {
		t.Fatalf("loans issued: %v", err)
	}
	if issued != 1 {
		t.Fatalf("sequence lost across reopen: got %d want 1", issued)
	}
}
