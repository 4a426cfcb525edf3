package lending

import "math/big"

// TierPercent maps a collateral ratio to its annual interest percentage. The
// bands use exclusive upper bounds except for the top tier, which includes
// MaxCollateralRatio:
//
//	[190,200] -> 1%   [170,190) -> 2%   [150,170) -> 3%
//	[130,150) -> 4%   [120,130) -> 5%
//
// Ratios outside [MinCollateralRatio, MaxCollateralRatio] fail with
// ErrCollateralRatioOutOfRange.
func TierPercent(ratio uint64) (uint64, error) {
	switch {
	case ratio >= 190 && ratio <= MaxCollateralRatio:
		return 1, nil
	case ratio >= 170 && ratio < 190:
		return 2, nil
	case ratio >= 150 && ratio < 170:
		return 3, nil
	case ratio >= 130 && ratio < 150:
		return 4, nil
	case ratio >= MinCollateralRatio && ratio < 130:
		return 5, nil
	default:
		return 0, ErrCollateralRatioOutOfRange
	}
}

// TotalInterest computes the interest owed on the loan as of now:
//
//	accruedInterest + amountLoaned * tier/100 * elapsed/SecondsPerYear
//
// evaluated left to right with truncating integer division at each step, so
// the result matches the stored-state arithmetic exactly. The function is
// pure; interest is never accrued by a background process, only computed on
// demand from the loan snapshot and the supplied timestamp.
func TotalInterest(loan *Loan, now int64) (*big.Int, error) {
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	tier, err := TierPercent(loan.CollateralRatioPercent)
	if err != nil {
		return nil, err
	}
	elapsed := now - loan.LastSettledAt
	if elapsed < 0 {
		elapsed = 0
	}
	accrual := new(big.Int).Mul(loan.AmountLoaned, new(big.Int).SetUint64(tier))
	accrual.Quo(accrual, hundred)
	accrual.Mul(accrual, big.NewInt(elapsed))
	accrual.Quo(accrual, big.NewInt(SecondsPerYear))
	total := new(big.Int).Set(accrual)
	if loan.AccruedInterest != nil {
		total.Add(total, loan.AccruedInterest)
	}
	return total, nil
}
