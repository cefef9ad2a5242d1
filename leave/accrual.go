package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/core"
)

// =============================================================================
// ACCRUAL - Opening grant and monthly credits
// =============================================================================

var (
	twelve       = decimal.NewFromInt(12)
	accrualScale = int32(4)
)

// OpeningFor is the opening balance of a fresh year. Annual types receive the
// whole entitlement up front; monthly types start at zero and accrue.
func OpeningFor(lt LeaveType) decimal.Decimal {
	if lt.Accrual == AccrualAnnually {
		return lt.AnnualEntitlement
	}
	return decimal.Zero
}

// cumulativeAccrual is the total a monthly type should have credited after
// month m. Month 12 always lands on the exact entitlement.
func cumulativeAccrual(lt LeaveType, month int) decimal.Decimal {
	if month <= 0 {
		return decimal.Zero
	}
	if month >= 12 {
		return lt.AnnualEntitlement
	}
	return lt.AnnualEntitlement.Mul(decimal.NewFromInt(int64(month))).Div(twelve).Round(accrualScale)
}

// MonthlyCredit returns the amount to credit to bring b up to month, and
// whether anything is due. Months already credited yield zero.
func MonthlyCredit(lt LeaveType, b Balance, month int) (decimal.Decimal, error) {
	if month < 1 || month > 12 {
		return decimal.Zero, core.InvalidInput("month must be 1-12, got %d", month)
	}
	if lt.Accrual != AccrualMonthly || month <= b.CreditedThrough {
		return decimal.Zero, nil
	}
	return cumulativeAccrual(lt, month).Sub(cumulativeAccrual(lt, b.CreditedThrough)), nil
}

// ApplyMonthlyAccrual credits b through month.
func ApplyMonthlyAccrual(lt LeaveType, b Balance, month int) (Balance, bool, error) {
	amount, err := MonthlyCredit(lt, b, month)
	if err != nil {
		return b, false, err
	}
	if lt.Accrual != AccrualMonthly || month <= b.CreditedThrough {
		return b, false, nil
	}
	b, err = Credit(b, amount)
	if err != nil {
		return b, false, err
	}
	b.CreditedThrough = month
	return b, true, nil
}
