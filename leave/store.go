/*
store.go - Persistence interface for leave types, balances and requests

CONTRACT:
  - Get* methods return (nil, nil) when the row does not exist.
  - Lock* methods behave like Get* but, inside WithTx, hold a row lock until
    the transaction ends where the backend supports it.
  - Update* methods are optimistic: they succeed only when the stored Version
    matches the value passed in, and return the value with Version bumped.
    A mismatch returns core.ErrConcurrentModification.
  - InsertBalance reports created=false when the key already exists, which
    makes year initialization idempotent.

IMPLEMENTATIONS:
  - store/memory: In-memory for tests and development
  - store/sqlstore: SQLite and PostgreSQL
*/
package leave

import (
	"context"

	"github.com/warp/leave-engine/core"
)

type Store interface {
	GetLeaveType(ctx context.Context, id core.LeaveTypeID) (*LeaveType, error)
	ListLeaveTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error)
	SaveLeaveType(ctx context.Context, lt LeaveType) error

	GetBalance(ctx context.Context, key BalanceKey) (*Balance, error)
	LockBalance(ctx context.Context, key BalanceKey) (*Balance, error)
	InsertBalance(ctx context.Context, b Balance) (created bool, err error)
	UpdateBalance(ctx context.Context, b Balance) (Balance, error)
	ListBalances(ctx context.Context, employeeID core.EmployeeID, year int) ([]Balance, error)

	GetRequest(ctx context.Context, id core.RequestID) (*Request, error)
	LockRequest(ctx context.Context, id core.RequestID) (*Request, error)
	InsertRequest(ctx context.Context, r Request) error
	UpdateRequest(ctx context.Context, r Request) (Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
