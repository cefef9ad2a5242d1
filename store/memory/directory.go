package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/core"
)

// =============================================================================
// DIRECTORY - Employees and holidays
// =============================================================================

// Directory implements core.EmployeeDirectory and core.HolidayCalendar.
type Directory struct {
	mu        sync.RWMutex
	employees map[core.EmployeeID]core.Employee
	holidays  []core.Holiday
}

func NewDirectory() *Directory {
	return &Directory{employees: make(map[core.EmployeeID]core.Employee)}
}

func (d *Directory) SaveEmployee(_ context.Context, e core.Employee) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ID] = e
	return nil
}

func (d *Directory) GetEmployee(_ context.Context, id core.EmployeeID) (*core.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (d *Directory) ListEmployees(_ context.Context) ([]core.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]core.Employee, 0, len(d.employees))
	for _, e := range d.employees {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *Directory) ListActiveEmployees(ctx context.Context) ([]core.Employee, error) {
	all, err := d.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, e := range all {
		if e.Active {
			active = append(active, e)
		}
	}
	return active, nil
}

func (d *Directory) SaveHoliday(_ context.Context, h core.Holiday) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	h.Date = core.DateOf(h.Date)
	for i, existing := range d.holidays {
		if existing.ID == h.ID {
			d.holidays[i] = h
			return nil
		}
	}
	d.holidays = append(d.holidays, h)
	return nil
}

func (d *Directory) DeleteHoliday(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, h := range d.holidays {
		if h.ID == id {
			d.holidays = append(d.holidays[:i], d.holidays[i+1:]...)
			return nil
		}
	}
	return core.NotFound("holiday", id)
}

// ListHolidays returns holidays for a year, including recurring ones carried
// onto that year. A year of 0 returns every stored holiday.
func (d *Directory) ListHolidays(_ context.Context, year int) ([]core.Holiday, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []core.Holiday
	for _, h := range d.holidays {
		if year == 0 || h.Date.Year() == year {
			result = append(result, h)
			continue
		}
		if h.Recurring {
			h.Date = core.NewDate(year, h.Date.Month(), h.Date.Day())
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (d *Directory) CountHolidays(_ context.Context, branchID string, from, to time.Time) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return core.CountHolidayDates(d.holidays, branchID, from, to), nil
}
