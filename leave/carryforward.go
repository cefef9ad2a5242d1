package leave

import "github.com/shopspring/decimal"

// =============================================================================
// CARRY-FORWARD - Derived once when a new year's balance is initialized
// =============================================================================

// ComputeCarryForward returns how much of the prior year moves into the new
// one. Pending reservations do not reduce it.
func ComputeCarryForward(lt LeaveType, prior *Balance) decimal.Decimal {
	if !lt.CarryForwardAllowed || prior == nil {
		return decimal.Zero
	}

	raw := prior.OpeningBalance.
		Add(prior.Credited).
		Add(prior.CarryForward).
		Sub(prior.Used).
		Sub(prior.Lapsed).
		Sub(prior.Encashed).
		Sub(prior.CarriedOut)
	if !raw.IsPositive() {
		return decimal.Zero
	}

	if lt.MaxCarryForward.Valid && raw.GreaterThan(lt.MaxCarryForward.Decimal) {
		return lt.MaxCarryForward.Decimal
	}
	return raw
}

// ComputeLapse returns the part of the prior year forfeited at year end. It
// is bounded by the prior year's available balance so that booking it never
// drives that ledger negative.
func ComputeLapse(prior *Balance, carried decimal.Decimal) decimal.Decimal {
	if prior == nil || prior.LapseRecorded {
		return decimal.Zero
	}
	lapse := prior.Available().Sub(carried)
	if !lapse.IsPositive() {
		return decimal.Zero
	}
	return lapse
}
