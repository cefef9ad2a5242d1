package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/attendance"
	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
)

func TestDialect_Rebind(t *testing.T) {
	query := "SELECT 1 FROM leave_balances WHERE employee_id = ? AND leave_type_id = ? AND year = ?"

	assert.Equal(t, query, SQLite.rebind(query))
	assert.Equal(t,
		"SELECT 1 FROM leave_balances WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3",
		Postgres.rebind(query))
	assert.Equal(t, " FOR UPDATE", Postgres.forUpdate())
	assert.Empty(t, SQLite.forUpdate())
}

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return FromDB(db, Postgres), mock
}

var balanceKey = leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-cl", Year: 2025}

func TestUpdateBalance_VersionConflict(t *testing.T) {
	db, mock := newMock(t)

	// GIVEN: the versioned UPDATE matches nothing but the row exists
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_balances SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leave_balances WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3")).
		WithArgs("emp-1", "lt-cl", 2025).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	// WHEN
	_, err := db.Leave().UpdateBalance(context.Background(), leave.Balance{Key: balanceKey, Version: 3})

	// THEN
	assert.True(t, errors.Is(err, core.ErrConcurrentModification))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBalance_Missing(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_balances SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leave_balances")).
		WillReturnRows(sqlmock.NewRows([]string{"one"}))

	_, err := db.Leave().UpdateBalance(context.Background(), leave.Balance{Key: balanceKey, Version: 1})
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBalance_BumpsVersion(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE employee_id = $12 AND leave_type_id = $13 AND year = $14 AND version = $15")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := db.Leave().UpdateBalance(context.Background(), leave.Balance{Key: balanceKey, Version: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockBalance_ForUpdate(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM leave_balances WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3 FOR UPDATE")).
		WithArgs("emp-1", "lt-cl", 2025).
		WillReturnRows(sqlmock.NewRows([]string{"employee_id"}))
	mock.ExpectCommit()

	var found *leave.Balance
	err := db.Leave().WithTx(context.Background(), func(tx leave.Store) error {
		var err error
		found, err = tx.LockBalance(context.Background(), balanceKey)
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_balances")).WillReturnError(boom)
	mock.ExpectRollback()

	err := db.Leave().WithTx(context.Background(), func(tx leave.Store) error {
		_, err := tx.InsertBalance(context.Background(), leave.Balance{Key: balanceKey})
		return err
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveLeaveType_DuplicateCodeOnPostgres(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_types")).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	err := db.Leave().SaveLeaveType(context.Background(), leave.LeaveType{ID: "lt-2", Code: "CL"})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearDefault_StampsGivenTime(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_rules SET is_default = $1, version = version + 1, updated_at = $2")).
		WithArgs(false, "2025-03-01T09:00:00Z", true, "rule-b").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.Attendance().ClearDefault(context.Background(), "rule-b", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_DeadlockIsRetryable(t *testing.T) {
	db, mock := newMock(t)

	// GIVEN: PostgreSQL aborts the default swap as a deadlock victim
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_rules SET is_default")).
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	// WHEN
	err := db.Attendance().WithTx(context.Background(), func(tx attendance.Store) error {
		return tx.ClearDefault(context.Background(), "rule-b", time.Now())
	})

	// THEN
	assert.ErrorIs(t, err, core.ErrConcurrentModification)
	assert.True(t, core.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_SerializationFailureOnCommitIsRetryable(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_rules SET is_default")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})

	err := db.Attendance().WithTx(context.Background(), func(tx attendance.Store) error {
		return tx.ClearDefault(context.Background(), "rule-b", time.Now())
	})
	assert.ErrorIs(t, err, core.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
