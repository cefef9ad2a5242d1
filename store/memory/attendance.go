package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/attendance"
	"github.com/warp/leave-engine/core"
)

// =============================================================================
// ATTENDANCE STORE - In-memory implementation of attendance.TxStore
// =============================================================================

type AttendanceStore struct {
	mu   sync.Mutex
	data *attendanceData
}

type dayKey struct {
	employeeID core.EmployeeID
	date       string
}

func dayKeyOf(employeeID core.EmployeeID, date time.Time) dayKey {
	return dayKey{employeeID: employeeID, date: core.FormatDate(date)}
}

type attendanceData struct {
	rules   map[core.RuleID]attendance.Rule
	records map[core.RecordID]attendance.Record
	byDay   map[dayKey]core.RecordID
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{data: &attendanceData{
		rules:   make(map[core.RuleID]attendance.Rule),
		records: make(map[core.RecordID]attendance.Record),
		byDay:   make(map[dayKey]core.RecordID),
	}}
}

func (s *AttendanceStore) WithTx(_ context.Context, fn func(attendance.Store) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.data = snapshot
			panic(r)
		}
		if err != nil {
			s.data = snapshot
		}
	}()
	return fn(s.data)
}

func (s *AttendanceStore) GetRule(ctx context.Context, id core.RuleID) (*attendance.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GetRule(ctx, id)
}

func (s *AttendanceStore) ListRules(ctx context.Context) ([]attendance.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ListRules(ctx)
}

func (s *AttendanceStore) DefaultRule(ctx context.Context) (*attendance.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DefaultRule(ctx)
}

func (s *AttendanceStore) InsertRule(ctx context.Context, r attendance.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.InsertRule(ctx, r)
}

func (s *AttendanceStore) UpdateRule(ctx context.Context, r attendance.Rule) (attendance.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UpdateRule(ctx, r)
}

func (s *AttendanceStore) ClearDefault(ctx context.Context, keep core.RuleID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ClearDefault(ctx, keep, at)
}

func (s *AttendanceStore) GetRecord(ctx context.Context, id core.RecordID) (*attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GetRecord(ctx, id)
}

func (s *AttendanceStore) GetRecordByDay(ctx context.Context, employeeID core.EmployeeID, date time.Time) (*attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GetRecordByDay(ctx, employeeID, date)
}

func (s *AttendanceStore) InsertRecord(ctx context.Context, r attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.InsertRecord(ctx, r)
}

func (s *AttendanceStore) UpdateRecord(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UpdateRecord(ctx, r)
}

func (s *AttendanceStore) ListRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ListRecords(ctx, filter)
}

// =============================================================================
// DATA
// =============================================================================

func (d *attendanceData) clone() *attendanceData {
	c := &attendanceData{
		rules:   make(map[core.RuleID]attendance.Rule, len(d.rules)),
		records: make(map[core.RecordID]attendance.Record, len(d.records)),
		byDay:   make(map[dayKey]core.RecordID, len(d.byDay)),
	}
	for k, v := range d.rules {
		c.rules[k] = v
	}
	for k, v := range d.records {
		c.records[k] = v
	}
	for k, v := range d.byDay {
		c.byDay[k] = v
	}
	return c
}

func (d *attendanceData) GetRule(_ context.Context, id core.RuleID) (*attendance.Rule, error) {
	r, ok := d.rules[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (d *attendanceData) ListRules(_ context.Context) ([]attendance.Rule, error) {
	result := make([]attendance.Rule, 0, len(d.rules))
	for _, r := range d.rules {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (d *attendanceData) DefaultRule(ctx context.Context) (*attendance.Rule, error) {
	rules, _ := d.ListRules(ctx)
	for _, r := range rules {
		if r.IsDefault {
			return &r, nil
		}
	}
	return nil, nil
}

func (d *attendanceData) InsertRule(_ context.Context, r attendance.Rule) error {
	if _, exists := d.rules[r.ID]; exists {
		return fmt.Errorf("attendance rule %s already exists", r.ID)
	}
	if r.Version == 0 {
		r.Version = 1
	}
	d.rules[r.ID] = r
	return nil
}

func (d *attendanceData) UpdateRule(_ context.Context, r attendance.Rule) (attendance.Rule, error) {
	current, ok := d.rules[r.ID]
	if !ok {
		return attendance.Rule{}, core.NotFound("attendance rule", r.ID)
	}
	if current.Version != r.Version {
		return attendance.Rule{}, fmt.Errorf("%w: rule %s at version %d, have %d",
			core.ErrConcurrentModification, r.ID, current.Version, r.Version)
	}
	r.Version++
	d.rules[r.ID] = r
	return r, nil
}

func (d *attendanceData) ClearDefault(_ context.Context, keep core.RuleID, at time.Time) error {
	for id, r := range d.rules {
		if id == keep || !r.IsDefault {
			continue
		}
		r.IsDefault = false
		r.Version++
		r.UpdatedAt = at
		d.rules[id] = r
	}
	return nil
}

func (d *attendanceData) GetRecord(_ context.Context, id core.RecordID) (*attendance.Record, error) {
	r, ok := d.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (d *attendanceData) GetRecordByDay(ctx context.Context, employeeID core.EmployeeID, date time.Time) (*attendance.Record, error) {
	id, ok := d.byDay[dayKeyOf(employeeID, date)]
	if !ok {
		return nil, nil
	}
	return d.GetRecord(ctx, id)
}

func (d *attendanceData) InsertRecord(_ context.Context, r attendance.Record) error {
	k := dayKeyOf(r.EmployeeID, r.Date)
	if _, exists := d.byDay[k]; exists {
		return fmt.Errorf("%w: attendance for %s on %s already exists",
			core.ErrConcurrentModification, r.EmployeeID, k.date)
	}
	if _, exists := d.records[r.ID]; exists {
		return fmt.Errorf("attendance record %s already exists", r.ID)
	}
	if r.Version == 0 {
		r.Version = 1
	}
	d.records[r.ID] = r
	d.byDay[k] = r.ID
	return nil
}

func (d *attendanceData) UpdateRecord(_ context.Context, r attendance.Record) (attendance.Record, error) {
	current, ok := d.records[r.ID]
	if !ok {
		return attendance.Record{}, core.NotFound("attendance record", r.ID)
	}
	if current.Version != r.Version {
		return attendance.Record{}, fmt.Errorf("%w: record %s at version %d, have %d",
			core.ErrConcurrentModification, r.ID, current.Version, r.Version)
	}
	oldKey, newKey := dayKeyOf(current.EmployeeID, current.Date), dayKeyOf(r.EmployeeID, r.Date)
	if oldKey != newKey {
		if _, taken := d.byDay[newKey]; taken {
			return attendance.Record{}, fmt.Errorf("%w: attendance for %s on %s already exists",
				core.ErrConcurrentModification, r.EmployeeID, newKey.date)
		}
		delete(d.byDay, oldKey)
		d.byDay[newKey] = r.ID
	}
	r.Version++
	d.records[r.ID] = r
	return r, nil
}

func (d *attendanceData) ListRecords(_ context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	var result []attendance.Record
	for _, r := range d.records {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if !f.From.IsZero() && r.Date.Before(core.DateOf(f.From)) {
			continue
		}
		if !f.To.IsZero() && r.Date.After(core.DateOf(f.To)) {
			continue
		}
		if f.ApprovalStatus != "" && r.ApprovalStatus != f.ApprovalStatus {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].EmployeeID < result[j].EmployeeID
	})
	return result, nil
}
