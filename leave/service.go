/*
service.go - Transactional orchestration of the leave ledger and workflow

PURPOSE:
  The Service is the only writer of balances and requests. Every operation
  is one read-modify-write cycle executed inside store.WithTx, behind a lock
  on the balance key, so that a reservation and the request status it
  belongs to are persisted together or not at all.

OPERATION FLOW (approval actions):
  1. Look up the request to learn its balance key
  2. Acquire the balance lock
  3. In a transaction: re-read the request, validate the transition,
     apply the ledger effect, write balance and request (version-checked)
  4. After commit: log and notify

RETRY:
  Version conflicts and lock timeouts surface as core.ErrConcurrentModification.
  The Service does not retry; callers may.

SEE ALSO:
  - ledger.go, workflow.go: Pure logic applied here
  - store.go: Persistence contract
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/lock"
)

type Service struct {
	store     TxStore
	employees core.EmployeeDirectory
	holidays  core.HolidayCalendar
	locker    lock.Locker
	notifier  core.Notifier
	log       logrus.FieldLogger
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option { return func(s *Service) { s.locker = l } }

func WithNotifier(n core.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }

func NewService(store TxStore, employees core.EmployeeDirectory, holidays core.HolidayCalendar, opts ...Option) *Service {
	s := &Service{
		store:     store,
		employees: employees,
		holidays:  holidays,
		locker:    lock.NewLocal(),
		notifier:  core.NopNotifier{},
		log:       logrus.StandardLogger(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	if s.holidays == nil {
		s.holidays = core.NoHolidays{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Service) SaveLeaveType(ctx context.Context, lt LeaveType) (*LeaveType, error) {
	if err := lt.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	existing, err := s.store.GetLeaveType(ctx, lt.ID)
	if err != nil {
		return nil, err
	}
	lt.CreatedAt = now
	if existing != nil {
		lt.CreatedAt = existing.CreatedAt
	}
	lt.UpdatedAt = now
	if err := s.store.SaveLeaveType(ctx, lt); err != nil {
		return nil, fmt.Errorf("failed to save leave type: %w", err)
	}
	return &lt, nil
}

func (s *Service) GetLeaveType(ctx context.Context, id core.LeaveTypeID) (*LeaveType, error) {
	lt, err := s.store.GetLeaveType(ctx, id)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, core.NotFound("leave type", id)
	}
	return lt, nil
}

func (s *Service) ListLeaveTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error) {
	return s.store.ListLeaveTypes(ctx, activeOnly)
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput is a leave request as filed. Set StartTime and EndTime for
// hourly leave; leave both nil for day-based leave. A zero EndDate means a
// single day.
type SubmitInput struct {
	EmployeeID  core.EmployeeID
	LeaveTypeID core.LeaveTypeID
	StartDate   time.Time
	EndDate     time.Time
	StartTime   *core.TimeOfDay
	EndTime     *core.TimeOfDay
	DayType     DayType
	Reason      string
}

func (in SubmitInput) IsHourly() bool { return in.StartTime != nil && in.EndTime != nil }

// Submit validates, prices and files a request, reserving its days against
// the start year's balance. Types that do not require approval are approved
// in the same transaction.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Request, error) {
	emp, err := s.activeEmployee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	lt, err := s.GetLeaveType(ctx, in.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	if !lt.Active {
		return nil, &core.PolicyViolationError{Policy: lt.Code, Reason: "leave type is inactive"}
	}
	if in.IsHourly() && !lt.HourlyAllowed {
		return nil, &core.PolicyViolationError{Policy: lt.Code, Reason: "hourly leave is not allowed for this leave type"}
	}

	dayType := in.DayType
	switch dayType {
	case "":
		dayType = FullDay
	case FullDay, HalfDayAM, HalfDayPM:
	default:
		return nil, core.InvalidInput("unknown day type %q", in.DayType)
	}
	in.DayType = dayType

	dur, err := ComputeDuration(ctx, in, emp.BranchID, s.holidays)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := Request{
		ID:          core.RequestID(s.newID()),
		EmployeeID:  in.EmployeeID,
		LeaveTypeID: lt.ID,
		StartDate:   core.DateOf(in.StartDate),
		EndDate:     core.DateOf(in.EndDate),
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		DayType:     dayType,
		TotalDays:   dur.Days,
		TotalHours:  dur.Hours,
		Reason:      in.Reason,
		Status:      StatusPending,
		Flow:        lt.ApprovalFlow(),
		Manager:     Stage{Status: StagePending},
		HR:          Stage{Status: StagePending},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.EndDate.IsZero() {
		req.EndDate = req.StartDate
	}
	if req.Flow == FlowSingle {
		req.HR = Stage{Status: StageNotRequired}
	}
	autoApprove := !lt.RequiresApproval
	if autoApprove {
		req.Status = StatusApproved
		req.Manager = Stage{Status: StageNotRequired}
		req.HR = Stage{Status: StageNotRequired}
	}

	key := req.BalanceKey()
	err = s.withBalanceLock(ctx, key, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			bal, err := tx.LockBalance(ctx, key)
			if err != nil {
				return err
			}
			if bal == nil {
				return core.NotFound("leave balance", key)
			}
			if bal.Closed() {
				return closedYear(key)
			}
			next, err := Reserve(*bal, req.TotalDays)
			if err != nil {
				return err
			}
			if autoApprove {
				next = Commit(next, req.TotalDays)
			}
			next.UpdatedAt = now
			if _, err := tx.UpdateBalance(ctx, next); err != nil {
				return err
			}
			return tx.InsertRequest(ctx, req)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id":    req.ID,
		"employee_id":   req.EmployeeID,
		"leave_type_id": req.LeaveTypeID,
		"year":          key.Year,
		"days":          req.TotalDays.String(),
		"status":        req.Status,
	}).Info("leave request submitted")

	kind := core.EventLeaveSubmitted
	if autoApprove {
		kind = core.EventLeaveApproved
	}
	s.publish(ctx, core.Event{
		Kind:       kind,
		SubjectID:  string(req.ID),
		EmployeeID: req.EmployeeID,
		ActorID:    req.EmployeeID,
		To:         string(req.Status),
		At:         now,
	})
	return &req, nil
}

// =============================================================================
// APPROVAL ACTIONS
// =============================================================================

func (s *Service) ManagerApprove(ctx context.Context, id core.RequestID, actorID core.EmployeeID, remarks string) (*Request, error) {
	return s.transition(ctx, id, ActionManagerApprove, actorID, remarks)
}

func (s *Service) ManagerReject(ctx context.Context, id core.RequestID, actorID core.EmployeeID, remarks string) (*Request, error) {
	return s.transition(ctx, id, ActionManagerReject, actorID, remarks)
}

func (s *Service) HRApprove(ctx context.Context, id core.RequestID, actorID core.EmployeeID, remarks string) (*Request, error) {
	return s.transition(ctx, id, ActionHRApprove, actorID, remarks)
}

func (s *Service) HRReject(ctx context.Context, id core.RequestID, actorID core.EmployeeID, remarks string) (*Request, error) {
	return s.transition(ctx, id, ActionHRReject, actorID, remarks)
}

// Approve is the single-stage approval for SINGLE-flow leave types.
func (s *Service) Approve(ctx context.Context, id core.RequestID, actorID core.EmployeeID, remarks string) (*Request, error) {
	return s.transition(ctx, id, ActionApprove, actorID, remarks)
}

// Reject is the single-stage rejection for SINGLE-flow leave types.
func (s *Service) Reject(ctx context.Context, id core.RequestID, actorID core.EmployeeID, remarks string) (*Request, error) {
	return s.transition(ctx, id, ActionReject, actorID, remarks)
}

// Cancel withdraws a request that no one has acted on yet.
func (s *Service) Cancel(ctx context.Context, id core.RequestID, actorID core.EmployeeID, remarks string) (*Request, error) {
	return s.transition(ctx, id, ActionCancel, actorID, remarks)
}

// Act dispatches by action name.
func (s *Service) Act(ctx context.Context, id core.RequestID, action Action, actorID core.EmployeeID, remarks string) (*Request, error) {
	return s.transition(ctx, id, action, actorID, remarks)
}

func (s *Service) transition(ctx context.Context, id core.RequestID, action Action, actorID core.EmployeeID, remarks string) (*Request, error) {
	if actorID == "" {
		return nil, core.InvalidInput("actor id is required")
	}
	current, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := current.BalanceKey()
	var (
		from    Status
		updated Request
	)
	err = s.withBalanceLock(ctx, key, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			req, err := tx.LockRequest(ctx, id)
			if err != nil {
				return err
			}
			if req == nil {
				return core.NotFound("leave request", id)
			}

			to, effect, err := Next(req.Status, action, req.Flow)
			if err != nil {
				return err
			}

			if effect != EffectNone {
				bal, err := tx.LockBalance(ctx, key)
				if err != nil {
					return err
				}
				if bal == nil {
					return core.NotFound("leave balance", key)
				}
				next := *bal
				switch effect {
				case EffectCommit:
					next = Commit(next, req.TotalDays)
				case EffectRelease:
					next = Release(next, req.TotalDays)
				}
				next.UpdatedAt = now
				if _, err := tx.UpdateBalance(ctx, next); err != nil {
					return err
				}
			}

			from = req.Status
			next := recordStage(*req, action, actorID, remarks, now)
			next.Status = to
			next.UpdatedAt = now
			updated, err = tx.UpdateRequest(ctx, next)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  updated.ID,
		"employee_id": updated.EmployeeID,
		"actor_id":    actorID,
		"action":      action,
		"from":        from,
		"to":          updated.Status,
	}).Info("leave request transitioned")

	s.publish(ctx, core.Event{
		Kind:       eventFor(updated.Status, action),
		SubjectID:  string(updated.ID),
		EmployeeID: updated.EmployeeID,
		ActorID:    actorID,
		From:       string(from),
		To:         string(updated.Status),
		Remarks:    remarks,
		At:         now,
	})
	return &updated, nil
}

// =============================================================================
// YEAR INITIALIZATION
// =============================================================================

// InitializeYearlyBalances opens the employee's balance for every active
// leave type in year. Accounts that already exist are returned unchanged.
// New accounts carry forward from the prior year per policy, and the prior
// year is closed: its forfeited remainder is booked as lapsed and the carried
// days leave it. A prior year cannot be closed before it has ended.
func (s *Service) InitializeYearlyBalances(ctx context.Context, employeeID core.EmployeeID, year int) ([]Balance, error) {
	if year < 1 {
		return nil, core.InvalidInput("year must be positive, got %d", year)
	}
	if _, err := s.activeEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	types, err := s.store.ListLeaveTypes(ctx, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		out     []Balance
		created int
	)
	err = s.store.WithTx(ctx, func(tx Store) error {
		out, created = out[:0], 0
		for _, lt := range types {
			key := BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year}
			existing, err := tx.GetBalance(ctx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				out = append(out, *existing)
				continue
			}

			prior, err := tx.LockBalance(ctx, key.Prior())
			if err != nil {
				return err
			}
			if prior != nil && !prior.Closed() && now.Before(core.StartOfYear(year)) {
				return &core.PolicyViolationError{
					Policy: "leave year",
					Reason: fmt.Sprintf("leave year %d is still running", key.Prior().Year),
				}
			}
			carried := ComputeCarryForward(lt, prior)
			b := Balance{
				Key:            key,
				OpeningBalance: OpeningFor(lt),
				CarryForward:   carried,
				Version:        1,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			ok, err := tx.InsertBalance(ctx, b)
			if err != nil {
				return err
			}
			if !ok {
				// Initialized concurrently; keep whatever won.
				winner, err := tx.GetBalance(ctx, key)
				if err != nil {
					return err
				}
				if winner != nil {
					out = append(out, *winner)
				}
				continue
			}
			created++

			if prior != nil && !prior.Closed() {
				closed, err := CloseYear(*prior, carried)
				if err != nil {
					return err
				}
				closed.UpdatedAt = now
				if _, err := tx.UpdateBalance(ctx, closed); err != nil {
					return err
				}
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created > 0 {
		s.log.WithFields(logrus.Fields{
			"employee_id": employeeID,
			"year":        year,
			"created":     created,
		}).Info("yearly balances initialized")
	}
	return out, nil
}

// =============================================================================
// ACCRUAL, CREDIT, ENCASHMENT
// =============================================================================

// AccrueMonthly credits every MONTHLY leave type of the employee through the
// given month of year. Months already credited are skipped, so the call is
// idempotent. Types whose balance is not initialized are skipped.
func (s *Service) AccrueMonthly(ctx context.Context, employeeID core.EmployeeID, year, month int) ([]Balance, error) {
	if month < 1 || month > 12 {
		return nil, core.InvalidInput("month must be 1-12, got %d", month)
	}
	types, err := s.store.ListLeaveTypes(ctx, true)
	if err != nil {
		return nil, err
	}

	var out []Balance
	for _, lt := range types {
		if lt.Accrual != AccrualMonthly {
			continue
		}
		key := BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year}
		var (
			result  *Balance
			changed bool
		)
		err := s.withBalanceLock(ctx, key, func() error {
			return s.store.WithTx(ctx, func(tx Store) error {
				bal, err := tx.LockBalance(ctx, key)
				if err != nil || bal == nil {
					return err
				}
				if bal.Closed() {
					return closedYear(key)
				}
				next, ok, err := ApplyMonthlyAccrual(lt, *bal, month)
				if err != nil {
					return err
				}
				if !ok {
					result = bal
					return nil
				}
				next.UpdatedAt = s.now()
				saved, err := tx.UpdateBalance(ctx, next)
				if err != nil {
					return err
				}
				result, changed = &saved, true
				return nil
			})
		})
		if err != nil {
			return out, err
		}
		if result == nil {
			s.log.WithFields(logrus.Fields{"employee_id": employeeID, "leave_type_id": lt.ID, "year": year}).
				Debug("accrual skipped: balance not initialized")
			continue
		}
		if changed {
			s.log.WithFields(logrus.Fields{
				"employee_id":   employeeID,
				"leave_type_id": lt.ID,
				"year":          year,
				"month":         month,
				"credited":      result.Credited.String(),
			}).Info("monthly accrual credited")
		}
		out = append(out, *result)
	}
	return out, nil
}

// Credit grants additional days outside the accrual schedule.
func (s *Service) Credit(ctx context.Context, key BalanceKey, days decimal.Decimal, actorID core.EmployeeID) (*Balance, error) {
	if !days.IsPositive() {
		return nil, core.InvalidInput("credit must be positive, got %s", days)
	}
	return s.mutateBalance(ctx, key, "credit", actorID, days, func(_ LeaveType, b Balance) (Balance, error) {
		return Credit(b, days)
	})
}

// Encash converts unused days into a payout for leave types that allow it.
func (s *Service) Encash(ctx context.Context, key BalanceKey, days decimal.Decimal, actorID core.EmployeeID) (*Balance, error) {
	return s.mutateBalance(ctx, key, "encash", actorID, days, func(lt LeaveType, b Balance) (Balance, error) {
		if !lt.EncashmentAllowed {
			return b, &core.PolicyViolationError{Policy: lt.Code, Reason: "encashment is not allowed for this leave type"}
		}
		return Encash(b, days)
	})
}

func (s *Service) mutateBalance(ctx context.Context, key BalanceKey, op string, actorID core.EmployeeID, days decimal.Decimal, fn func(LeaveType, Balance) (Balance, error)) (*Balance, error) {
	lt, err := s.GetLeaveType(ctx, key.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	var saved Balance
	err = s.withBalanceLock(ctx, key, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			bal, err := tx.LockBalance(ctx, key)
			if err != nil {
				return err
			}
			if bal == nil {
				return core.NotFound("leave balance", key)
			}
			if bal.Closed() {
				return closedYear(key)
			}
			next, err := fn(*lt, *bal)
			if err != nil {
				return err
			}
			next.UpdatedAt = s.now()
			saved, err = tx.UpdateBalance(ctx, next)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"employee_id":   key.EmployeeID,
		"leave_type_id": key.LeaveTypeID,
		"year":          key.Year,
		"actor_id":      actorID,
		"days":          days.String(),
	}).Infof("balance %s applied", op)
	return &saved, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetRequest(ctx context.Context, id core.RequestID) (*Request, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, core.NotFound("leave request", id)
	}
	return r, nil
}

func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error) {
	return s.store.ListRequests(ctx, filter)
}

func (s *Service) GetBalance(ctx context.Context, key BalanceKey) (*Balance, error) {
	b, err := s.store.GetBalance(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, core.NotFound("leave balance", key)
	}
	return b, nil
}

func (s *Service) ListBalances(ctx context.Context, employeeID core.EmployeeID, year int) ([]Balance, error) {
	return s.store.ListBalances(ctx, employeeID, year)
}

// ApprovedLeaveDays sums committed leave of approved requests starting in
// [from, to]. Payroll reads it.
func (s *Service) ApprovedLeaveDays(ctx context.Context, employeeID core.EmployeeID, from, to time.Time) (decimal.Decimal, error) {
	if to.Before(from) {
		return decimal.Zero, core.InvalidTimeRange("period end is before start")
	}
	reqs, err := s.store.ListRequests(ctx, RequestFilter{EmployeeID: employeeID, Status: StatusApproved})
	if err != nil {
		return decimal.Zero, err
	}
	from, to = core.DateOf(from), core.DateOf(to)
	total := decimal.Zero
	for _, r := range reqs {
		if r.StartDate.Before(from) || r.StartDate.After(to) {
			continue
		}
		total = total.Add(r.TotalDays)
	}
	return total, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) activeEmployee(ctx context.Context, id core.EmployeeID) (*core.Employee, error) {
	if id == "" {
		return nil, core.InvalidInput("employee id is required")
	}
	emp, err := s.employees.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("employee lookup failed: %w", err)
	}
	if emp == nil {
		return nil, core.NotFound("employee", id)
	}
	if !emp.Active {
		return nil, &core.PolicyViolationError{Policy: "employee", Reason: fmt.Sprintf("employee %s is inactive", id)}
	}
	return emp, nil
}

func closedYear(key BalanceKey) error {
	return &core.PolicyViolationError{
		Policy: "leave year",
		Reason: fmt.Sprintf("leave year %d is closed", key.Year),
	}
}

func (s *Service) withBalanceLock(ctx context.Context, key BalanceKey, fn func() error) error {
	lease, err := s.locker.Acquire(ctx, "leave-balance:"+key.String())
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithError(err).WithField("balance", key.String()).Warn("failed to release balance lock")
		}
	}()
	return fn()
}

func (s *Service) publish(ctx context.Context, ev core.Event) {
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":      ev.Kind,
			"subject_id": ev.SubjectID,
		}).Warn("notification failed")
	}
}
