package lending

import "errors"

// Operation-aborting failures surfaced to callers. Every failure leaves the
// ledger untouched; collaborator errors (oracle, token) propagate unmodified.
var (
	ErrInvalidAmount                     = errors.New("lending engine: invalid amount")
	ErrCollateralRatioOutOfRange         = errors.New("lending engine: collateral ratio out of range")
	ErrNoInterestDue                     = errors.New("lending engine: no interest due")
	ErrNotBorrower                       = errors.New("lending engine: caller is not the borrower")
	ErrRefinanceNotApplicable            = errors.New("lending engine: collateral value does not support refinancing")
	ErrCooldownNotElapsed                = errors.New("lending engine: forced collection cooldown not elapsed")
	ErrCollateralInsufficientForInterest = errors.New("lending engine: seized collateral value exceeds interest due")
	ErrNothingToReinstate                = errors.New("lending engine: nothing to reinstate")
	ErrUnauthorized                      = errors.New("lending engine: caller is not the administrator")
	ErrLoanNotFound                      = errors.New("lending engine: loan not found")
)

var (
	errNilState          = errors.New("lending engine: state not configured")
	errNilOracle         = errors.New("lending engine: rate oracle not configured")
	errNilToken          = errors.New("lending engine: token collaborator not configured")
	errNilAccess         = errors.New("lending engine: access control not configured")
	errUnknownCollateral = errors.New("lending engine: unknown collateral kind")
)
