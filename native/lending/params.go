package lending

import "math/big"

const (
	// MinCollateralRatio is the lowest collateral ratio, in percent, accepted
	// when a loan is taken. The bound is inclusive.
	MinCollateralRatio = 120
	// MaxCollateralRatio is the highest collateral ratio, in percent, accepted
	// when a loan is taken. The bound is inclusive.
	MaxCollateralRatio = 200
	// RefinanceFeePercent is the share of the outstanding principal charged to
	// the administrator on every refinance, in percent.
	RefinanceFeePercent = 10
	// CollectionCooldown is the minimum number of seconds that must elapse
	// since the last interest settlement before the administrator may seize
	// collateral to cover overdue interest.
	CollectionCooldown int64 = 90 * 24 * 60 * 60
	// SecondsPerYear is the accrual year used by the interest engine.
	SecondsPerYear int64 = 365 * 24 * 60 * 60
)

// RateScale divides raw feed prices down to whole distribution-asset units.
var RateScale = big.NewInt(100_000_000)

var hundred = big.NewInt(100)
