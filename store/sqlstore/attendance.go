package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-engine/attendance"
	"github.com/warp/leave-engine/core"
)

// =============================================================================
// ATTENDANCE STORE (attendance.TxStore interface)
// =============================================================================

type AttendanceStore struct {
	attendanceRepo
	db *DB
}

func (s *AttendanceStore) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	return s.db.withTx(ctx, func(c conn) error {
		return fn(&attendanceRepo{c: c})
	})
}

type attendanceRepo struct {
	c conn
}

// =============================================================================
// RULES
// =============================================================================

const ruleColumns = `id, name, standard_start, standard_end, grace_minutes_in, grace_minutes_out,
	regular_hours_per_day, auto_deduct_break, break_minutes, is_default, version, created_at, updated_at`

func (r *attendanceRepo) GetRule(ctx context.Context, id core.RuleID) (*attendance.Rule, error) {
	return r.getRule(ctx, "SELECT "+ruleColumns+" FROM attendance_rules WHERE id = ?", id)
}

func (r *attendanceRepo) DefaultRule(ctx context.Context) (*attendance.Rule, error) {
	return r.getRule(ctx, "SELECT "+ruleColumns+" FROM attendance_rules WHERE is_default = ? ORDER BY name LIMIT 1", true)
}

func (r *attendanceRepo) getRule(ctx context.Context, query string, args ...any) (*attendance.Rule, error) {
	rule, err := scanRule(r.c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance rule: %w", err)
	}
	return &rule, nil
}

func (r *attendanceRepo) ListRules(ctx context.Context) ([]attendance.Rule, error) {
	rows, err := r.c.query(ctx, "SELECT "+ruleColumns+" FROM attendance_rules ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance rules: %w", err)
	}
	defer rows.Close()

	var rules []attendance.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *attendanceRepo) InsertRule(ctx context.Context, rule attendance.Rule) error {
	if rule.Version == 0 {
		rule.Version = 1
	}
	_, err := r.c.exec(ctx, `
		INSERT INTO attendance_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Name, rule.StandardStart, rule.StandardEnd, rule.GraceMinutesIn, rule.GraceMinutesOut,
		rule.RegularHoursPerDay, rule.AutoDeductBreak, rule.BreakMinutes, rule.IsDefault, rule.Version,
		formatTime(rule.CreatedAt), formatTime(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attendance rule: %w", err)
	}
	return nil
}

func (r *attendanceRepo) UpdateRule(ctx context.Context, rule attendance.Rule) (attendance.Rule, error) {
	res, err := r.c.exec(ctx, `
		UPDATE attendance_rules SET
			name = ?, standard_start = ?, standard_end = ?, grace_minutes_in = ?, grace_minutes_out = ?,
			regular_hours_per_day = ?, auto_deduct_break = ?, break_minutes = ?, is_default = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		rule.Name, rule.StandardStart, rule.StandardEnd, rule.GraceMinutesIn, rule.GraceMinutesOut,
		rule.RegularHoursPerDay, rule.AutoDeductBreak, rule.BreakMinutes, rule.IsDefault,
		formatTime(rule.UpdatedAt), rule.ID, rule.Version,
	)
	if err != nil {
		return attendance.Rule{}, fmt.Errorf("failed to update attendance rule: %w", err)
	}
	if err := checkVersioned(ctx, r.c, res, "attendance rule", string(rule.ID),
		"SELECT 1 FROM attendance_rules WHERE id = ?", rule.ID,
	); err != nil {
		return attendance.Rule{}, err
	}
	rule.Version++
	return rule, nil
}

func (r *attendanceRepo) ClearDefault(ctx context.Context, keep core.RuleID, at time.Time) error {
	_, err := r.c.exec(ctx, `
		UPDATE attendance_rules SET is_default = ?, version = version + 1, updated_at = ?
		WHERE is_default = ? AND id <> ?`,
		false, formatTime(at), true, keep,
	)
	if err != nil {
		return fmt.Errorf("failed to clear default attendance rule: %w", err)
	}
	return nil
}

func scanRule(row scanner) (attendance.Rule, error) {
	var (
		rule                 attendance.Rule
		breakMinutes         sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(&rule.ID, &rule.Name, &rule.StandardStart, &rule.StandardEnd,
		&rule.GraceMinutesIn, &rule.GraceMinutesOut, &rule.RegularHoursPerDay, &rule.AutoDeductBreak,
		&breakMinutes, &rule.IsDefault, &rule.Version, &createdAt, &updatedAt)
	if err != nil {
		return rule, err
	}
	if breakMinutes.Valid {
		m := int(breakMinutes.Int64)
		rule.BreakMinutes = &m
	}
	rule.CreatedAt = parseTime(createdAt)
	rule.UpdatedAt = parseTime(updatedAt)
	return rule, nil
}

// =============================================================================
// RECORDS
// =============================================================================

const recordColumns = `id, employee_id, date, clock_in, clock_out, regular_hours, overtime_hours,
	break_duration, late_arrival, late_minutes, early_departure, early_minutes, status,
	capture_method, approval_status, approver_id, approval_note, approved_at, remarks,
	version, created_at, updated_at`

func (r *attendanceRepo) GetRecord(ctx context.Context, id core.RecordID) (*attendance.Record, error) {
	return r.getRecord(ctx, "SELECT "+recordColumns+" FROM attendance_records WHERE id = ?", id)
}

func (r *attendanceRepo) GetRecordByDay(ctx context.Context, employeeID core.EmployeeID, date time.Time) (*attendance.Record, error) {
	return r.getRecord(ctx,
		"SELECT "+recordColumns+" FROM attendance_records WHERE employee_id = ? AND date = ?"+r.c.dialect.forUpdate(),
		employeeID, formatDate(date),
	)
}

func (r *attendanceRepo) getRecord(ctx context.Context, query string, args ...any) (*attendance.Record, error) {
	rec, err := scanRecord(r.c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance record: %w", err)
	}
	return &rec, nil
}

// InsertRecord returns core.ErrConcurrentModification when the employee-day
// already has a record.
func (r *attendanceRepo) InsertRecord(ctx context.Context, rec attendance.Record) error {
	if rec.Version == 0 {
		rec.Version = 1
	}
	_, err := r.c.exec(ctx, `
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recordArgs(rec)...,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: attendance for %s on %s already exists",
			core.ErrConcurrentModification, rec.EmployeeID, formatDate(rec.Date))
	}
	if err != nil {
		return fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return nil
}

func (r *attendanceRepo) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	res, err := r.c.exec(ctx, `
		UPDATE attendance_records SET
			employee_id = ?, date = ?, clock_in = ?, clock_out = ?, regular_hours = ?, overtime_hours = ?,
			break_duration = ?, late_arrival = ?, late_minutes = ?, early_departure = ?, early_minutes = ?,
			status = ?, capture_method = ?, approval_status = ?, approver_id = ?, approval_note = ?,
			approved_at = ?, remarks = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		rec.EmployeeID, formatDate(rec.Date), nullTime(rec.ClockIn), nullTime(rec.ClockOut),
		rec.RegularHours, rec.OvertimeHours, rec.BreakDuration,
		rec.LateArrival, rec.LateMinutes, rec.EarlyDeparture, rec.EarlyMinutes,
		rec.Status, rec.CaptureMethod, rec.ApprovalStatus, nullString(string(rec.ApproverID)),
		nullString(rec.ApprovalNote), nullTime(rec.ApprovedAt), nullString(rec.Remarks),
		formatTime(rec.UpdatedAt), rec.ID, rec.Version,
	)
	if isUniqueConstraintError(err) {
		return attendance.Record{}, fmt.Errorf("%w: attendance for %s on %s already exists",
			core.ErrConcurrentModification, rec.EmployeeID, formatDate(rec.Date))
	}
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to update attendance record: %w", err)
	}
	if err := checkVersioned(ctx, r.c, res, "attendance record", string(rec.ID),
		"SELECT 1 FROM attendance_records WHERE id = ?", rec.ID,
	); err != nil {
		return attendance.Record{}, err
	}
	rec.Version++
	return rec, nil
}

func (r *attendanceRepo) ListRecords(ctx context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, formatDate(f.To))
	}
	if f.ApprovalStatus != "" {
		where = append(where, "approval_status = ?")
		args = append(args, f.ApprovalStatus)
	}

	query := "SELECT " + recordColumns + " FROM attendance_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, employee_id"

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func recordArgs(rec attendance.Record) []any {
	return []any{
		rec.ID, rec.EmployeeID, formatDate(rec.Date), nullTime(rec.ClockIn), nullTime(rec.ClockOut),
		rec.RegularHours, rec.OvertimeHours, rec.BreakDuration,
		rec.LateArrival, rec.LateMinutes, rec.EarlyDeparture, rec.EarlyMinutes, rec.Status,
		rec.CaptureMethod, rec.ApprovalStatus, nullString(string(rec.ApproverID)),
		nullString(rec.ApprovalNote), nullTime(rec.ApprovedAt), nullString(rec.Remarks),
		rec.Version, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	}
}

func scanRecord(row scanner) (attendance.Record, error) {
	var (
		rec                  attendance.Record
		date                 string
		clockIn, clockOut    sql.NullString
		approverID, note     sql.NullString
		approvedAt, remarks  sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.EmployeeID, &date, &clockIn, &clockOut,
		&rec.RegularHours, &rec.OvertimeHours, &rec.BreakDuration,
		&rec.LateArrival, &rec.LateMinutes, &rec.EarlyDeparture, &rec.EarlyMinutes, &rec.Status,
		&rec.CaptureMethod, &rec.ApprovalStatus, &approverID, &note, &approvedAt, &remarks,
		&rec.Version, &createdAt, &updatedAt)
	if err != nil {
		return rec, err
	}
	rec.Date = parseDate(date)
	rec.ClockIn = timePtr(clockIn)
	rec.ClockOut = timePtr(clockOut)
	rec.ApproverID = core.EmployeeID(approverID.String)
	rec.ApprovalNote = note.String
	rec.ApprovedAt = timePtr(approvedAt)
	rec.Remarks = remarks.String
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}
