package lending

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/adnhq/collateralized-lending/core/events"
)

const (
	// EventTypeTokensLoaned is emitted when a new loan pays out the
	// distribution asset to the borrower.
	EventTypeTokensLoaned = "lending.tokensLoaned"
	// EventTypeInterestPaid is emitted when accrued interest is settled in
	// full by the payer.
	EventTypeInterestPaid = "lending.interestPaid"
)

// NewTokensLoanedEvent returns the canonical payload for a loan payout.
func NewTokensLoanedEvent(recipient common.Address, loanID uint64, amount *big.Int, timestamp int64) events.Event {
	return events.Event{
		Type: EventTypeTokensLoaned,
		Attributes: map[string]string{
			"recipient": recipient.Hex(),
			"loanId":    strconv.FormatUint(loanID, 10),
			"amount":    bigString(amount),
			"timestamp": strconv.FormatInt(timestamp, 10),
		},
	}
}

// NewInterestPaidEvent returns the canonical payload for an interest
// settlement.
func NewInterestPaidEvent(loanID uint64, payer common.Address, amount *big.Int, timestamp int64) events.Event {
	return events.Event{
		Type: EventTypeInterestPaid,
		Attributes: map[string]string{
			"loanId":    strconv.FormatUint(loanID, 10),
			"payer":     payer.Hex(),
			"amount":    bigString(amount),
			"timestamp": strconv.FormatInt(timestamp, 10),
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
