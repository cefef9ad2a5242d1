package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE STORE (leave.TxStore interface)
// =============================================================================

type LeaveStore struct {
	leaveRepo
	db *DB
}

// WithTx executes fn within a database transaction.
func (s *LeaveStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	return s.db.withTx(ctx, func(c conn) error {
		return fn(&leaveRepo{c: c})
	})
}

// leaveRepo runs the leave queries against a pool or a transaction.
type leaveRepo struct {
	c conn
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

const leaveTypeColumns = `id, code, name, annual_entitlement, accrual, carry_forward_allowed,
	max_carry_forward, encashment_allowed, hourly_allowed, requires_approval,
	approval_flow, active, created_at, updated_at`

func (r *leaveRepo) GetLeaveType(ctx context.Context, id core.LeaveTypeID) (*leave.LeaveType, error) {
	row := r.c.queryRow(ctx, "SELECT "+leaveTypeColumns+" FROM leave_types WHERE id = ?", id)
	lt, err := scanLeaveType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave type: %w", err)
	}
	return &lt, nil
}

func (r *leaveRepo) ListLeaveTypes(ctx context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	query := "SELECT " + leaveTypeColumns + " FROM leave_types"
	var args []any
	if activeOnly {
		query += " WHERE active = ?"
		args = append(args, true)
	}
	query += " ORDER BY code"

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave types: %w", err)
	}
	defer rows.Close()

	var types []leave.LeaveType
	for rows.Next() {
		lt, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

// SaveLeaveType inserts or replaces a leave type.
func (r *leaveRepo) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	query := `
		INSERT INTO leave_types (` + leaveTypeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			annual_entitlement = excluded.annual_entitlement,
			accrual = excluded.accrual,
			carry_forward_allowed = excluded.carry_forward_allowed,
			max_carry_forward = excluded.max_carry_forward,
			encashment_allowed = excluded.encashment_allowed,
			hourly_allowed = excluded.hourly_allowed,
			requires_approval = excluded.requires_approval,
			approval_flow = excluded.approval_flow,
			active = excluded.active,
			updated_at = excluded.updated_at
	`
	_, err := r.c.exec(ctx, query,
		lt.ID, lt.Code, lt.Name, lt.AnnualEntitlement, lt.Accrual, lt.CarryForwardAllowed,
		lt.MaxCarryForward, lt.EncashmentAllowed, lt.HourlyAllowed, lt.RequiresApproval,
		lt.ApprovalFlow(), lt.Active, formatTime(lt.CreatedAt), formatTime(lt.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return core.InvalidInput("leave type code %q is already in use", lt.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func scanLeaveType(row scanner) (leave.LeaveType, error) {
	var (
		lt                   leave.LeaveType
		createdAt, updatedAt string
	)
	err := row.Scan(&lt.ID, &lt.Code, &lt.Name, &lt.AnnualEntitlement, &lt.Accrual, &lt.CarryForwardAllowed,
		&lt.MaxCarryForward, &lt.EncashmentAllowed, &lt.HourlyAllowed, &lt.RequiresApproval,
		&lt.Flow, &lt.Active, &createdAt, &updatedAt)
	if err != nil {
		return lt, err
	}
	lt.CreatedAt = parseTime(createdAt)
	lt.UpdatedAt = parseTime(updatedAt)
	return lt, nil
}

// =============================================================================
// BALANCES
// =============================================================================

const balanceColumns = `employee_id, leave_type_id, year, opening_balance, credited, carry_forward,
	pending, used, lapsed, encashed, carried_out, credited_through, lapse_recorded, version, created_at, updated_at`

func (r *leaveRepo) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	return r.getBalance(ctx, key, "")
}

// LockBalance reads the balance FOR UPDATE where the dialect supports it.
func (r *leaveRepo) LockBalance(ctx context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	return r.getBalance(ctx, key, r.c.dialect.forUpdate())
}

func (r *leaveRepo) getBalance(ctx context.Context, key leave.BalanceKey, suffix string) (*leave.Balance, error) {
	row := r.c.queryRow(ctx,
		"SELECT "+balanceColumns+" FROM leave_balances WHERE employee_id = ? AND leave_type_id = ? AND year = ?"+suffix,
		key.EmployeeID, key.LeaveTypeID, key.Year,
	)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance %s: %w", key, err)
	}
	return &b, nil
}

// InsertBalance creates the row unless the key already exists.
func (r *leaveRepo) InsertBalance(ctx context.Context, b leave.Balance) (bool, error) {
	if b.Version == 0 {
		b.Version = 1
	}
	query := `
		INSERT INTO leave_balances (` + balanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, leave_type_id, year) DO NOTHING
	`
	res, err := r.c.exec(ctx, query,
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year,
		b.OpeningBalance, b.Credited, b.CarryForward, b.Pending, b.Used, b.Lapsed, b.Encashed, b.CarriedOut,
		b.CreditedThrough, b.LapseRecorded, b.Version, formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert balance %s: %w", b.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateBalance writes b if the stored version still equals b.Version.
func (r *leaveRepo) UpdateBalance(ctx context.Context, b leave.Balance) (leave.Balance, error) {
	query := `
		UPDATE leave_balances SET
			opening_balance = ?, credited = ?, carry_forward = ?, pending = ?, used = ?,
			lapsed = ?, encashed = ?, carried_out = ?, credited_through = ?, lapse_recorded = ?,
			version = version + 1, updated_at = ?
		WHERE employee_id = ? AND leave_type_id = ? AND year = ? AND version = ?
	`
	res, err := r.c.exec(ctx, query,
		b.OpeningBalance, b.Credited, b.CarryForward, b.Pending, b.Used,
		b.Lapsed, b.Encashed, b.CarriedOut, b.CreditedThrough, b.LapseRecorded, formatTime(b.UpdatedAt),
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year, b.Version,
	)
	if err != nil {
		return leave.Balance{}, fmt.Errorf("failed to update balance %s: %w", b.Key, err)
	}
	if err := checkVersioned(ctx, r.c, res, "leave balance", b.Key.String(),
		"SELECT 1 FROM leave_balances WHERE employee_id = ? AND leave_type_id = ? AND year = ?",
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year,
	); err != nil {
		return leave.Balance{}, err
	}
	b.Version++
	return b, nil
}

func (r *leaveRepo) ListBalances(ctx context.Context, employeeID core.EmployeeID, year int) ([]leave.Balance, error) {
	rows, err := r.c.query(ctx,
		"SELECT "+balanceColumns+" FROM leave_balances WHERE employee_id = ? AND year = ? ORDER BY leave_type_id",
		employeeID, year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []leave.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func scanBalance(row scanner) (leave.Balance, error) {
	var (
		b                    leave.Balance
		createdAt, updatedAt string
	)
	err := row.Scan(&b.Key.EmployeeID, &b.Key.LeaveTypeID, &b.Key.Year,
		&b.OpeningBalance, &b.Credited, &b.CarryForward, &b.Pending, &b.Used, &b.Lapsed, &b.Encashed, &b.CarriedOut,
		&b.CreditedThrough, &b.LapseRecorded, &b.Version, &createdAt, &updatedAt)
	if err != nil {
		return b, err
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, leave_type_id, start_date, end_date, start_time, end_time,
	day_type, total_days, total_hours, reason, status, approval_flow,
	manager_status, manager_id, manager_remarks, manager_acted_at,
	hr_status, hr_id, hr_remarks, hr_acted_at, cancel_remarks,
	version, created_at, updated_at`

func (r *leaveRepo) GetRequest(ctx context.Context, id core.RequestID) (*leave.Request, error) {
	return r.getRequest(ctx, id, "")
}

func (r *leaveRepo) LockRequest(ctx context.Context, id core.RequestID) (*leave.Request, error) {
	return r.getRequest(ctx, id, r.c.dialect.forUpdate())
}

func (r *leaveRepo) getRequest(ctx context.Context, id core.RequestID, suffix string) (*leave.Request, error) {
	row := r.c.queryRow(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?"+suffix, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}
	return &req, nil
}

func (r *leaveRepo) InsertRequest(ctx context.Context, req leave.Request) error {
	if req.Version == 0 {
		req.Version = 1
	}
	query := `
		INSERT INTO leave_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.c.exec(ctx, query,
		req.ID, req.EmployeeID, req.LeaveTypeID, formatDate(req.StartDate), formatDate(req.EndDate),
		req.StartTime, req.EndTime, req.DayType, req.TotalDays, req.TotalHours,
		nullString(req.Reason), req.Status, req.Flow,
		req.Manager.Status, nullString(string(req.Manager.ActorID)), nullString(req.Manager.Remarks), nullTime(req.Manager.ActedAt),
		req.HR.Status, nullString(string(req.HR.ActorID)), nullString(req.HR.Remarks), nullTime(req.HR.ActedAt),
		nullString(req.CancelRemarks), req.Version, formatTime(req.CreatedAt), formatTime(req.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return nil
}

func (r *leaveRepo) UpdateRequest(ctx context.Context, req leave.Request) (leave.Request, error) {
	query := `
		UPDATE leave_requests SET
			status = ?,
			manager_status = ?, manager_id = ?, manager_remarks = ?, manager_acted_at = ?,
			hr_status = ?, hr_id = ?, hr_remarks = ?, hr_acted_at = ?,
			cancel_remarks = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	res, err := r.c.exec(ctx, query,
		req.Status,
		req.Manager.Status, nullString(string(req.Manager.ActorID)), nullString(req.Manager.Remarks), nullTime(req.Manager.ActedAt),
		req.HR.Status, nullString(string(req.HR.ActorID)), nullString(req.HR.Remarks), nullTime(req.HR.ActedAt),
		nullString(req.CancelRemarks), formatTime(req.UpdatedAt),
		req.ID, req.Version,
	)
	if err != nil {
		return leave.Request{}, fmt.Errorf("failed to update leave request: %w", err)
	}
	if err := checkVersioned(ctx, r.c, res, "leave request", string(req.ID),
		"SELECT 1 FROM leave_requests WHERE id = ?", req.ID,
	); err != nil {
		return leave.Request{}, err
	}
	req.Version++
	return req, nil
}

func (r *leaveRepo) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.LeaveTypeID != "" {
		where = append(where, "leave_type_id = ?")
		args = append(args, f.LeaveTypeID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Year != 0 {
		where = append(where, "start_date >= ? AND start_date <= ?")
		args = append(args, fmt.Sprintf("%04d-01-01", f.Year), fmt.Sprintf("%04d-12-31", f.Year))
	}

	query := "SELECT " + requestColumns + " FROM leave_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	defer rows.Close()

	var requests []leave.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row scanner) (leave.Request, error) {
	var (
		req                       leave.Request
		startDate, endDate        string
		reason, cancelRemarks     sql.NullString
		managerID, managerRemarks sql.NullString
		hrID, hrRemarks           sql.NullString
		managerActedAt, hrActedAt sql.NullString
		createdAt, updatedAt      string
	)
	err := row.Scan(&req.ID, &req.EmployeeID, &req.LeaveTypeID, &startDate, &endDate,
		&req.StartTime, &req.EndTime, &req.DayType, &req.TotalDays, &req.TotalHours,
		&reason, &req.Status, &req.Flow,
		&req.Manager.Status, &managerID, &managerRemarks, &managerActedAt,
		&req.HR.Status, &hrID, &hrRemarks, &hrActedAt, &cancelRemarks,
		&req.Version, &createdAt, &updatedAt)
	if err != nil {
		return req, err
	}
	req.StartDate = parseDate(startDate)
	req.EndDate = parseDate(endDate)
	req.Reason = reason.String
	req.Manager.ActorID = core.EmployeeID(managerID.String)
	req.Manager.Remarks = managerRemarks.String
	req.Manager.ActedAt = timePtr(managerActedAt)
	req.HR.ActorID = core.EmployeeID(hrID.String)
	req.HR.Remarks = hrRemarks.String
	req.HR.ActedAt = timePtr(hrActedAt)
	req.CancelRemarks = cancelRemarks.String
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)
	return req, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// checkVersioned turns a zero-row versioned UPDATE into NotFound or
// ErrConcurrentModification.
func checkVersioned(ctx context.Context, c conn, res sql.Result, kind, id, existsQuery string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	found, err := c.exists(ctx, existsQuery, args...)
	if err != nil {
		return err
	}
	if !found {
		return core.NotFound(kind, id)
	}
	return fmt.Errorf("%w: %s %s was modified concurrently", core.ErrConcurrentModification, kind, id)
}
