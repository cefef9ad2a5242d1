package attendance

import (
	"context"
	"time"

	"github.com/warp/leave-engine/core"
)

// Store persists rules and records. Get* return (nil, nil) when absent.
// Update* are version-checked and return core.ErrConcurrentModification on a
// mismatch; InsertRecord returns it when another writer created the same
// (employee, date) first.
type Store interface {
	GetRule(ctx context.Context, id core.RuleID) (*Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	DefaultRule(ctx context.Context) (*Rule, error)
	InsertRule(ctx context.Context, r Rule) error
	UpdateRule(ctx context.Context, r Rule) (Rule, error)
	// ClearDefault unmarks every default rule other than keep, stamping at.
	ClearDefault(ctx context.Context, keep core.RuleID, at time.Time) error

	GetRecord(ctx context.Context, id core.RecordID) (*Record, error)
	GetRecordByDay(ctx context.Context, employeeID core.EmployeeID, date time.Time) (*Record, error)
	InsertRecord(ctx context.Context, r Record) error
	UpdateRecord(ctx context.Context, r Record) (Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
