/*
ledger.go - Balance arithmetic

PURPOSE:
  Pure transformations on a Balance. No I/O, no clocks. The Service loads a
  balance, applies one of these, and writes the result back inside a single
  store transaction.

CALLER CONTRACT:
  Reserve, Lapse, Encash and CarryOut check availability and return errors.
  Commit and Release trust the caller: amount must not exceed Pending.
  Violating that means the workflow and ledger disagree about what is
  reserved, which is a programming error, so they panic.

SEE ALSO:
  - carryforward.go: Year-to-year derivation
  - service.go: Persistence around these functions
*/
package leave

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/core"
)

// Reserve holds amount against the balance as pending.
func Reserve(b Balance, amount decimal.Decimal) (Balance, error) {
	if !amount.IsPositive() {
		return b, core.InvalidInput("reserve amount must be positive, got %s", amount)
	}
	if err := checkAvailable(b, amount); err != nil {
		return b, err
	}
	b.Pending = b.Pending.Add(amount)
	return b, nil
}

// Commit moves amount from pending to used.
func Commit(b Balance, amount decimal.Decimal) Balance {
	mustCoverPending(b, amount, "commit")
	b.Pending = b.Pending.Sub(amount)
	b.Used = b.Used.Add(amount)
	return b
}

// Release drops amount from pending.
func Release(b Balance, amount decimal.Decimal) Balance {
	mustCoverPending(b, amount, "release")
	b.Pending = b.Pending.Sub(amount)
	return b
}

// Credit adds accrued or manually granted days.
func Credit(b Balance, amount decimal.Decimal) (Balance, error) {
	if amount.IsNegative() {
		return b, core.InvalidInput("credit amount must not be negative, got %s", amount)
	}
	b.Credited = b.Credited.Add(amount)
	return b, nil
}

// Lapse forfeits amount of the unused balance.
func Lapse(b Balance, amount decimal.Decimal) (Balance, error) {
	if amount.IsNegative() {
		return b, core.InvalidInput("lapse amount must not be negative, got %s", amount)
	}
	if err := checkAvailable(b, amount); err != nil {
		return b, err
	}
	b.Lapsed = b.Lapsed.Add(amount)
	return b, nil
}

// Encash converts amount of the unused balance into a payout.
func Encash(b Balance, amount decimal.Decimal) (Balance, error) {
	if !amount.IsPositive() {
		return b, core.InvalidInput("encash amount must be positive, got %s", amount)
	}
	if err := checkAvailable(b, amount); err != nil {
		return b, err
	}
	b.Encashed = b.Encashed.Add(amount)
	return b, nil
}

// CarryOut moves amount of the unused balance into the next year.
func CarryOut(b Balance, amount decimal.Decimal) (Balance, error) {
	if amount.IsNegative() {
		return b, core.InvalidInput("carry-out amount must not be negative, got %s", amount)
	}
	if err := checkAvailable(b, amount); err != nil {
		return b, err
	}
	b.CarriedOut = b.CarriedOut.Add(amount)
	return b, nil
}

// CloseYear books the year-end lapse and the carry-out into the next year,
// leaving nothing available. When pending reservations keep the available
// balance below carried, only what is available is carried out.
func CloseYear(b Balance, carried decimal.Decimal) (Balance, error) {
	if b.Closed() {
		return b, nil
	}
	b, err := Lapse(b, ComputeLapse(&b, carried))
	if err != nil {
		return b, err
	}
	out := decimal.Min(carried, b.Available())
	if out.IsPositive() {
		if b, err = CarryOut(b, out); err != nil {
			return b, err
		}
	}
	b.LapseRecorded = true
	return b, nil
}

func checkAvailable(b Balance, amount decimal.Decimal) error {
	if available := b.Available(); available.LessThan(amount) {
		return &core.InsufficientBalanceError{
			EmployeeID:  b.Key.EmployeeID,
			LeaveTypeID: b.Key.LeaveTypeID,
			Year:        b.Key.Year,
			Available:   available,
			Requested:   amount,
		}
	}
	return nil
}

func mustCoverPending(b Balance, amount decimal.Decimal, op string) {
	if amount.IsNegative() || amount.GreaterThan(b.Pending) {
		panic(fmt.Sprintf("leave ledger desync: %s %s exceeds pending %s on %s",
			op, amount, b.Pending, b.Key))
	}
}
