package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/warp/leave-engine/core"
)

// =============================================================================
// DIRECTORY - Employees and holidays
// =============================================================================

// Directory implements core.EmployeeDirectory and core.HolidayCalendar.
type Directory struct {
	c conn
}

// SaveEmployee saves an employee.
func (d *Directory) SaveEmployee(ctx context.Context, e core.Employee) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := d.c.exec(ctx, `
		INSERT INTO employees (id, name, branch_id, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			branch_id = excluded.branch_id,
			active = excluded.active`,
		e.ID, e.Name, e.BranchID, e.Active, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (d *Directory) GetEmployee(ctx context.Context, id core.EmployeeID) (*core.Employee, error) {
	emps, err := d.listEmployees(ctx, "WHERE id = ?", id)
	if err != nil || len(emps) == 0 {
		return nil, err
	}
	return &emps[0], nil
}

func (d *Directory) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	return d.listEmployees(ctx, "")
}

func (d *Directory) ListActiveEmployees(ctx context.Context) ([]core.Employee, error) {
	return d.listEmployees(ctx, "WHERE active = ?", true)
}

func (d *Directory) listEmployees(ctx context.Context, where string, args ...any) ([]core.Employee, error) {
	rows, err := d.c.query(ctx,
		"SELECT id, name, branch_id, active, created_at FROM employees "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []core.Employee
	for rows.Next() {
		var (
			e         core.Employee
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.BranchID, &e.Active, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// SaveHoliday saves a holiday. The same name on the same day for the same
// branch is updated in place.
func (d *Directory) SaveHoliday(ctx context.Context, h core.Holiday) error {
	_, err := d.c.exec(ctx, `
		INSERT INTO holidays (id, branch_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(branch_id, date, name) DO UPDATE SET
			recurring = excluded.recurring`,
		h.ID, h.BranchID, formatDate(h.Date), h.Name, h.Recurring, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (d *Directory) DeleteHoliday(ctx context.Context, id string) error {
	res, err := d.c.exec(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NotFound("holiday", id)
	}
	return nil
}

// ListHolidays returns holidays for a year, with recurring ones moved onto
// that year. A year of 0 returns every stored holiday.
func (d *Directory) ListHolidays(ctx context.Context, year int) ([]core.Holiday, error) {
	if year == 0 {
		return d.queryHolidays(ctx, "ORDER BY date")
	}
	holidays, err := d.queryHolidays(ctx,
		"WHERE recurring = ? OR (date >= ? AND date <= ?) ORDER BY date",
		true, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year),
	)
	if err != nil {
		return nil, err
	}
	for i, h := range holidays {
		if h.Recurring {
			holidays[i].Date = core.NewDate(year, h.Date.Month(), h.Date.Day())
		}
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date.Before(holidays[j].Date) })
	return holidays, nil
}

// CountHolidays counts distinct holiday days in [from, to] for a branch,
// including global holidays.
func (d *Directory) CountHolidays(ctx context.Context, branchID string, from, to time.Time) (int, error) {
	holidays, err := d.queryHolidays(ctx,
		"WHERE (branch_id = ? OR branch_id = '') AND (recurring = ? OR (date >= ? AND date <= ?))",
		branchID, true, formatDate(from), formatDate(to),
	)
	if err != nil {
		return 0, err
	}
	return core.CountHolidayDates(holidays, branchID, from, to), nil
}

func (d *Directory) queryHolidays(ctx context.Context, clause string, args ...any) ([]core.Holiday, error) {
	rows, err := d.c.query(ctx, "SELECT id, branch_id, date, name, recurring FROM holidays "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []core.Holiday
	for rows.Next() {
		var (
			h    core.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &h.BranchID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date = parseDate(date)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
