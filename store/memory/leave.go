// Package memory provides in-memory stores for tests and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE STORE - In-memory implementation of leave.TxStore
// =============================================================================

type LeaveStore struct {
	mu   sync.Mutex
	data *leaveData
}

type leaveData struct {
	types    map[core.LeaveTypeID]leave.LeaveType
	balances map[leave.BalanceKey]leave.Balance
	requests map[core.RequestID]leave.Request
}

func NewLeaveStore() *LeaveStore {
	return &LeaveStore{data: &leaveData{
		types:    make(map[core.LeaveTypeID]leave.LeaveType),
		balances: make(map[leave.BalanceKey]leave.Balance),
		requests: make(map[core.RequestID]leave.Request),
	}}
}

// WithTx executes fn within a transaction.
// Simulated with a snapshot that is restored on error or panic. Writers are
// serialized for the duration of fn.
func (s *LeaveStore) WithTx(_ context.Context, fn func(leave.Store) error) (err error) {
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

func (s *LeaveStore) GetLeaveType(ctx context.Context, id core.LeaveTypeID) (*leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GetLeaveType(ctx, id)
}

func (s *LeaveStore) ListLeaveTypes(ctx context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ListLeaveTypes(ctx, activeOnly)
}

func (s *LeaveStore) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SaveLeaveType(ctx, lt)
}

func (s *LeaveStore) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GetBalance(ctx, key)
}

// LockBalance outside a transaction is a plain read.
func (s *LeaveStore) LockBalance(ctx context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	return s.GetBalance(ctx, key)
}

func (s *LeaveStore) InsertBalance(ctx context.Context, b leave.Balance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.InsertBalance(ctx, b)
}

func (s *LeaveStore) UpdateBalance(ctx context.Context, b leave.Balance) (leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UpdateBalance(ctx, b)
}

func (s *LeaveStore) ListBalances(ctx context.Context, employeeID core.EmployeeID, year int) ([]leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ListBalances(ctx, employeeID, year)
}

func (s *LeaveStore) GetRequest(ctx context.Context, id core.RequestID) (*leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GetRequest(ctx, id)
}

func (s *LeaveStore) LockRequest(ctx context.Context, id core.RequestID) (*leave.Request, error) {
	return s.GetRequest(ctx, id)
}

func (s *LeaveStore) InsertRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.InsertRequest(ctx, r)
}

func (s *LeaveStore) UpdateRequest(ctx context.Context, r leave.Request) (leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UpdateRequest(ctx, r)
}

func (s *LeaveStore) ListRequests(ctx context.Context, filter leave.RequestFilter) ([]leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ListRequests(ctx, filter)
}

// =============================================================================
// DATA - Unlocked operations shared by the store and its transaction view
// =============================================================================

func (d *leaveData) clone() *leaveData {
	c := &leaveData{
		types:    make(map[core.LeaveTypeID]leave.LeaveType, len(d.types)),
		balances: make(map[leave.BalanceKey]leave.Balance, len(d.balances)),
		requests: make(map[core.RequestID]leave.Request, len(d.requests)),
	}
	for k, v := range d.types {
		c.types[k] = v
	}
	for k, v := range d.balances {
		c.balances[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	return c
}

func (d *leaveData) GetLeaveType(_ context.Context, id core.LeaveTypeID) (*leave.LeaveType, error) {
	lt, ok := d.types[id]
	if !ok {
		return nil, nil
	}
	return &lt, nil
}

func (d *leaveData) ListLeaveTypes(_ context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	result := make([]leave.LeaveType, 0, len(d.types))
	for _, lt := range d.types {
		if activeOnly && !lt.Active {
			continue
		}
		result = append(result, lt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (d *leaveData) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	for id, existing := range d.types {
		if id != lt.ID && existing.Code == lt.Code {
			return core.InvalidInput("leave type code %q is already in use", lt.Code)
		}
	}
	d.types[lt.ID] = lt
	return nil
}

func (d *leaveData) GetBalance(_ context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	b, ok := d.balances[key]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (d *leaveData) LockBalance(ctx context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	return d.GetBalance(ctx, key)
}

func (d *leaveData) InsertBalance(_ context.Context, b leave.Balance) (bool, error) {
	if _, exists := d.balances[b.Key]; exists {
		return false, nil
	}
	if b.Version == 0 {
		b.Version = 1
	}
	d.balances[b.Key] = b
	return true, nil
}

func (d *leaveData) UpdateBalance(_ context.Context, b leave.Balance) (leave.Balance, error) {
	current, ok := d.balances[b.Key]
	if !ok {
		return leave.Balance{}, core.NotFound("leave balance", b.Key.String())
	}
	if current.Version != b.Version {
		return leave.Balance{}, fmt.Errorf("%w: balance %s at version %d, have %d",
			core.ErrConcurrentModification, b.Key, current.Version, b.Version)
	}
	b.Version++
	d.balances[b.Key] = b
	return b, nil
}

func (d *leaveData) ListBalances(_ context.Context, employeeID core.EmployeeID, year int) ([]leave.Balance, error) {
	var result []leave.Balance
	for k, b := range d.balances {
		if k.EmployeeID == employeeID && k.Year == year {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key.LeaveTypeID < result[j].Key.LeaveTypeID })
	return result, nil
}

func (d *leaveData) GetRequest(_ context.Context, id core.RequestID) (*leave.Request, error) {
	r, ok := d.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (d *leaveData) LockRequest(ctx context.Context, id core.RequestID) (*leave.Request, error) {
	return d.GetRequest(ctx, id)
}

func (d *leaveData) InsertRequest(_ context.Context, r leave.Request) error {
	if _, exists := d.requests[r.ID]; exists {
		return fmt.Errorf("leave request %s already exists", r.ID)
	}
	if r.Version == 0 {
		r.Version = 1
	}
	d.requests[r.ID] = r
	return nil
}

func (d *leaveData) UpdateRequest(_ context.Context, r leave.Request) (leave.Request, error) {
	current, ok := d.requests[r.ID]
	if !ok {
		return leave.Request{}, core.NotFound("leave request", r.ID)
	}
	if current.Version != r.Version {
		return leave.Request{}, fmt.Errorf("%w: request %s at version %d, have %d",
			core.ErrConcurrentModification, r.ID, current.Version, r.Version)
	}
	r.Version++
	d.requests[r.ID] = r
	return r, nil
}

func (d *leaveData) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var result []leave.Request
	for _, r := range d.requests {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.LeaveTypeID != "" && r.LeaveTypeID != f.LeaveTypeID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Year != 0 && r.Year() != f.Year {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
