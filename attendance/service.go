/*
service.go - Transactional orchestration of attendance capture and approval

PURPOSE:
  Each capture (clock event, manual entry, bulk item) is one transaction:
  read the day's record and the current default rule, apply the lifecycle
  transition, re-derive figures, and upsert. Batch operations run one
  transaction per item and report per-item results.

SEE ALSO:
  - lifecycle.go: Pure transitions applied here
  - rules.go: Derivation
  - store.go: Persistence contract
*/
package attendance

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/core"
)

type Service struct {
	store     TxStore
	employees core.EmployeeDirectory
	notifier  core.Notifier
	log       logrus.FieldLogger
	now       func() time.Time
	newID     func() string
	loc       *time.Location
}

type Option func(*Service)

func WithNotifier(n core.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }

// WithLocation sets the zone in which workbook clock times are interpreted.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func NewService(store TxStore, employees core.EmployeeDirectory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		employees: employees,
		notifier:  core.NopNotifier{},
		log:       logrus.StandardLogger(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the zone clock times are evaluated in.
func (s *Service) Location() *time.Location { return s.loc }

// =============================================================================
// CLOCK EVENTS
// =============================================================================

// ClockIn records the start of the employee's day. A zero at means now; a
// zero date means the calendar day of at.
func (s *Service) ClockIn(ctx context.Context, employeeID core.EmployeeID, date, at time.Time) (*Record, error) {
	if _, err := s.activeEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	now := s.now()
	date, at = s.defaultTimes(date, at, now)

	rec, err := s.captureDay(ctx, employeeID, date, func(existing *Record) (Record, error) {
		return ApplyClockIn(existing, employeeID, date, at, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"date":        core.FormatDate(date),
		"late":        rec.LateArrival,
	}).Info("clocked in")
	return rec, nil
}

// ClockOut records the end of the employee's day and queues it for review.
func (s *Service) ClockOut(ctx context.Context, employeeID core.EmployeeID, date, at time.Time) (*Record, error) {
	if _, err := s.activeEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	now := s.now()
	date, at = s.defaultTimes(date, at, now)

	rec, err := s.captureDay(ctx, employeeID, date, func(existing *Record) (Record, error) {
		return ApplyClockOut(existing, at, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"date":        core.FormatDate(date),
		"regular":     rec.RegularHours.String(),
		"overtime":    rec.OvertimeHours.String(),
	}).Info("clocked out")
	return rec, nil
}

func (s *Service) defaultTimes(date, at, now time.Time) (time.Time, time.Time) {
	if at.IsZero() {
		at = now
	}
	at = at.In(s.loc)
	if date.IsZero() {
		date = at
	}
	return core.DateOf(date), at
}

// =============================================================================
// MANUAL AND BULK ENTRY
// =============================================================================

// ManualEntry upserts one record. Administrative entries are approved on
// write; self-service edits wait for review.
func (s *Service) ManualEntry(ctx context.Context, in EntryInput, source EntrySource) (*Record, error) {
	approval := ApprovalApproved
	if source == SourceSelfService {
		approval = ApprovalPending
	}
	return s.upsertEntry(ctx, in, CaptureManual, approval)
}

// BulkUpload upserts every entry independently. A failed item does not stop
// the batch.
func (s *Service) BulkUpload(ctx context.Context, entries []EntryInput) []EntryResult {
	results := make([]EntryResult, len(entries))
	failed := 0
	for i, in := range entries {
		rec, err := s.upsertEntry(ctx, in, CaptureExcelUpload, ApprovalApproved)
		results[i] = EntryResult{Row: i + 1, EmployeeID: in.EmployeeID, Date: in.Date, Record: rec, Err: err}
		if err != nil {
			failed++
		}
	}
	s.log.WithFields(logrus.Fields{
		"total":  len(entries),
		"failed": failed,
	}).Info("bulk attendance upload processed")
	return results
}

// ImportWorkbook parses an attendance workbook and bulk-uploads its rows.
// Rows that fail to parse are reported alongside rows that fail to save,
// ordered by spreadsheet row.
func (s *Service) ImportWorkbook(ctx context.Context, r io.Reader) ([]EntryResult, error) {
	rows, parseFailures, err := ParseWorkbook(r, s.loc)
	if err != nil {
		return nil, err
	}

	entries := make([]EntryInput, len(rows))
	for i, row := range rows {
		entries[i] = row.Entry
	}
	saved := s.BulkUpload(ctx, entries)
	for i := range saved {
		saved[i].Row = rows[i].Row
	}

	results := append(parseFailures, saved...)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Row < results[j].Row })
	return results, nil
}

func (s *Service) upsertEntry(ctx context.Context, in EntryInput, method CaptureMethod, approval ApprovalStatus) (*Record, error) {
	if _, err := s.activeEmployee(ctx, in.EmployeeID); err != nil {
		return nil, err
	}
	now := s.now()
	return s.captureDay(ctx, in.EmployeeID, in.Date, func(existing *Record) (Record, error) {
		return ApplyEntry(existing, in, method, approval, now)
	})
}

// captureDay runs one read-derive-upsert cycle on the (employee, date) record.
func (s *Service) captureDay(ctx context.Context, employeeID core.EmployeeID, date time.Time, apply func(*Record) (Record, error)) (*Record, error) {
	var saved Record
	err := s.store.WithTx(ctx, func(tx Store) error {
		rule, err := tx.DefaultRule(ctx)
		if err != nil {
			return err
		}
		existing, err := tx.GetRecordByDay(ctx, employeeID, core.DateOf(date))
		if err != nil {
			return err
		}
		rec, err := apply(existing)
		if err != nil {
			return err
		}
		rec = Derive(rec.In(s.loc), rule)

		if existing == nil {
			rec.ID = core.RecordID(s.newID())
			rec.Version = 1
			if err := tx.InsertRecord(ctx, rec); err != nil {
				return err
			}
			saved = rec
			return nil
		}
		saved, err = tx.UpdateRecord(ctx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// =============================================================================
// APPROVAL
// =============================================================================

func (s *Service) Approve(ctx context.Context, id core.RecordID, approverID core.EmployeeID, note string) (*Record, error) {
	return s.review(ctx, id, ApprovalApproved, approverID, note)
}

func (s *Service) Reject(ctx context.Context, id core.RecordID, approverID core.EmployeeID, note string) (*Record, error) {
	return s.review(ctx, id, ApprovalRejected, approverID, note)
}

// BulkApprove approves each record independently.
func (s *Service) BulkApprove(ctx context.Context, ids []core.RecordID, approverID core.EmployeeID, note string) []ApprovalResult {
	results := make([]ApprovalResult, len(ids))
	for i, id := range ids {
		rec, err := s.Approve(ctx, id, approverID, note)
		results[i] = ApprovalResult{RecordID: id, Record: rec, Err: err}
	}
	return results
}

func (s *Service) review(ctx context.Context, id core.RecordID, decision ApprovalStatus, approverID core.EmployeeID, note string) (*Record, error) {
	if approverID == "" {
		return nil, core.InvalidInput("approver id is required")
	}
	now := s.now()
	var (
		saved Record
		from  ApprovalStatus
	)
	err := s.store.WithTx(ctx, func(tx Store) error {
		rec, err := tx.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return core.NotFound("attendance record", id)
		}
		from = rec.ApprovalStatus
		next, err := Review(*rec, decision, approverID, note, now)
		if err != nil {
			return err
		}
		saved, err = tx.UpdateRecord(ctx, next)
		return err
	})
	if err != nil {
		return nil, err
	}

	kind := core.EventAttendanceApproved
	if decision == ApprovalRejected {
		kind = core.EventAttendanceRejected
	}
	s.log.WithFields(logrus.Fields{
		"record_id":   id,
		"employee_id": saved.EmployeeID,
		"approver_id": approverID,
		"decision":    decision,
	}).Info("attendance reviewed")
	if err := s.notifier.Notify(ctx, core.Event{
		Kind:       kind,
		SubjectID:  string(id),
		EmployeeID: saved.EmployeeID,
		ActorID:    approverID,
		From:       string(from),
		To:         string(saved.ApprovalStatus),
		Remarks:    note,
		At:         now,
	}); err != nil {
		s.log.WithError(err).WithField("record_id", id).Warn("notification failed")
	}
	return &saved, nil
}

// =============================================================================
// RULES
// =============================================================================

// CreateRule stores a new rule. If it is marked default, every other rule is
// unmarked in the same transaction.
func (s *Service) CreateRule(ctx context.Context, r Rule) (*Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	if r.ID == "" {
		r.ID = core.RuleID(s.newID())
	}
	r.Version = 1
	r.CreatedAt, r.UpdatedAt = now, now

	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.InsertRule(ctx, r); err != nil {
			return err
		}
		if r.IsDefault {
			return tx.ClearDefault(ctx, r.ID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"rule_id": r.ID, "default": r.IsDefault}).Info("attendance rule created")
	return &r, nil
}

// UpdateRule replaces a rule's settings. A zero Version means "whatever is
// stored"; a non-zero one is checked.
func (s *Service) UpdateRule(ctx context.Context, r Rule) (*Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var saved Rule
	err := s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetRule(ctx, r.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return core.NotFound("attendance rule", r.ID)
		}
		if r.Version == 0 {
			r.Version = existing.Version
		}
		r.CreatedAt = existing.CreatedAt
		r.UpdatedAt = s.now()
		if saved, err = tx.UpdateRule(ctx, r); err != nil {
			return err
		}
		if saved.IsDefault {
			return tx.ClearDefault(ctx, saved.ID, r.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// SetDefaultRule makes id the only default rule.
func (s *Service) SetDefaultRule(ctx context.Context, id core.RuleID) (*Rule, error) {
	now := s.now()
	var saved Rule
	err := s.store.WithTx(ctx, func(tx Store) error {
		rule, err := tx.GetRule(ctx, id)
		if err != nil {
			return err
		}
		if rule == nil {
			return core.NotFound("attendance rule", id)
		}
		saved = *rule
		if !rule.IsDefault {
			rule.IsDefault = true
			rule.UpdatedAt = now
			if saved, err = tx.UpdateRule(ctx, *rule); err != nil {
				return err
			}
		}
		return tx.ClearDefault(ctx, id, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("rule_id", id).Info("default attendance rule set")
	return &saved, nil
}

func (s *Service) GetRule(ctx context.Context, id core.RuleID) (*Rule, error) {
	r, err := s.store.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, core.NotFound("attendance rule", id)
	}
	return r, nil
}

func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	return s.store.ListRules(ctx)
}

// DefaultRule returns the current default, or NotFound when none is set.
func (s *Service) DefaultRule(ctx context.Context) (*Rule, error) {
	r, err := s.store.DefaultRule(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, core.NotFound("attendance rule", "default")
	}
	return r, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetRecord(ctx context.Context, id core.RecordID) (*Record, error) {
	r, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, core.NotFound("attendance record", id)
	}
	return r, nil
}

func (s *Service) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, core.InvalidTimeRange("period end is before start")
	}
	return s.store.ListRecords(ctx, filter)
}

// Summarize aggregates the employee's approved records in [from, to] for
// payroll.
func (s *Service) Summarize(ctx context.Context, employeeID core.EmployeeID, from, to time.Time) (*Summary, error) {
	records, err := s.ListRecords(ctx, RecordFilter{
		EmployeeID:     employeeID,
		From:           core.DateOf(from),
		To:             core.DateOf(to),
		ApprovalStatus: ApprovalApproved,
	})
	if err != nil {
		return nil, err
	}
	sum := Summarize(employeeID, core.DateOf(from), core.DateOf(to), records)
	return &sum, nil
}

// SummarizeAll summarizes every active employee in [from, to].
func (s *Service) SummarizeAll(ctx context.Context, from, to time.Time) ([]Summary, error) {
	employees, err := s.employees.ListActiveEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("employee lookup failed: %w", err)
	}
	out := make([]Summary, 0, len(employees))
	for _, emp := range employees {
		sum, err := s.Summarize(ctx, emp.ID, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, nil
}

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
