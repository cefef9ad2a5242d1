package leave_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type recordingNotifier struct {
	mu     sync.Mutex
	events []core.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev core.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) kinds() []core.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]core.EventKind, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	svc      *leave.Service
	store    *memory.LeaveStore
	dir      *memory.Directory
	notifier *recordingNotifier
}

var testNow = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewLeaveStore()
	dir := memory.NewDirectory()
	require.NoError(t, dir.SaveEmployee(ctx, core.Employee{ID: "emp-1", Name: "Asha", BranchID: "br-1", Active: true}))
	require.NoError(t, dir.SaveEmployee(ctx, core.Employee{ID: "emp-2", Name: "Ravi", BranchID: "br-2", Active: false}))

	log := logrus.New()
	log.SetOutput(io.Discard)

	var seq atomic.Int64
	notifier := &recordingNotifier{}
	svc := leave.NewService(store, dir, dir,
		leave.WithLogger(log),
		leave.WithNotifier(notifier),
		leave.WithClock(func() time.Time { return testNow }),
		leave.WithIDGenerator(func() string { return fmt.Sprintf("req-%d", seq.Add(1)) }),
	)
	return &fixture{svc: svc, store: store, dir: dir, notifier: notifier}
}

// casualLeave is the LT-CL type: 12 days a year, granted up front.
func casualLeave() leave.LeaveType {
	return leave.LeaveType{
		ID:                "lt-cl",
		Code:              "CL",
		Name:              "Casual Leave",
		AnnualEntitlement: d("12"),
		Accrual:           leave.AccrualAnnually,
		RequiresApproval:  true,
		Active:            true,
	}
}

func (f *fixture) saveType(t *testing.T, lt leave.LeaveType) {
	t.Helper()
	_, err := f.svc.SaveLeaveType(context.Background(), lt)
	require.NoError(t, err)
}

func (f *fixture) initYear(t *testing.T, year int) {
	t.Helper()
	_, err := f.svc.InitializeYearlyBalances(context.Background(), "emp-1", year)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, lt core.LeaveTypeID, year int) leave.Balance {
	t.Helper()
	b, err := f.svc.GetBalance(context.Background(), leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: lt, Year: year})
	require.NoError(t, err)
	return *b
}

func days(from, to time.Time) leave.SubmitInput {
	return leave.SubmitInput{EmployeeID: "emp-1", LeaveTypeID: "lt-cl", StartDate: from, EndDate: to}
}

func mar(day int) time.Time { return core.NewDate(2025, time.March, day) }

// =============================================================================
// MULTI-LEVEL APPROVAL
// =============================================================================

func TestSubmit_ManagerThenHR_CommitsDays(t *testing.T) {
	// GIVEN: LT-CL with 12 days
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)

	// WHEN: Filing three days
	req, err := f.svc.Submit(ctx, days(mar(10), mar(12)))
	require.NoError(t, err)

	// THEN: Days are reserved while the request waits
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.True(t, req.TotalDays.Equal(d("3")))
	b := f.balance(t, "lt-cl", 2025)
	assert.True(t, b.Pending.Equal(d("3")))
	assert.True(t, b.Available().Equal(d("9")))

	// WHEN: The manager approves
	req, err = f.svc.ManagerApprove(ctx, req.ID, "mgr-1", "ok")
	require.NoError(t, err)

	// THEN: HR still has to act and the days stay reserved
	assert.Equal(t, leave.StatusPendingHR, req.Status)
	assert.Equal(t, leave.StageApproved, req.Manager.Status)
	assert.Equal(t, core.EmployeeID("mgr-1"), req.Manager.ActorID)
	assert.Equal(t, leave.StagePending, req.HR.Status)
	assert.True(t, f.balance(t, "lt-cl", 2025).Pending.Equal(d("3")))

	// WHEN: HR approves
	req, err = f.svc.HRApprove(ctx, req.ID, "hr-1", "")
	require.NoError(t, err)

	// THEN: Days move from pending to used; 9 remain
	assert.Equal(t, leave.StatusApproved, req.Status)
	b = f.balance(t, "lt-cl", 2025)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Used.Equal(d("3")))
	assert.True(t, b.Available().Equal(d("9")))

	assert.Equal(t, []core.EventKind{
		core.EventLeaveSubmitted,
		core.EventLeaveManagerApproved,
		core.EventLeaveApproved,
	}, f.notifier.kinds())
}

func TestManagerReject_ReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)

	req, err := f.svc.Submit(ctx, days(mar(10), mar(11)))
	require.NoError(t, err)

	req, err = f.svc.ManagerReject(ctx, req.ID, "mgr-1", "busy week")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusRejected, req.Status)
	assert.Equal(t, leave.StageRejected, req.Manager.Status)
	assert.Equal(t, leave.StageNotRequired, req.HR.Status)
	b := f.balance(t, "lt-cl", 2025)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Available().Equal(d("12")))
}

func TestHRReject_ReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)

	req, err := f.svc.Submit(ctx, days(mar(10), mar(10)))
	require.NoError(t, err)
	_, err = f.svc.ManagerApprove(ctx, req.ID, "mgr-1", "")
	require.NoError(t, err)

	req, err = f.svc.HRReject(ctx, req.ID, "hr-1", "")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusRejected, req.Status)
	assert.True(t, f.balance(t, "lt-cl", 2025).Available().Equal(d("12")))
}

func TestCancel_Pending_RestoresBalance(t *testing.T) {
	// GIVEN: A pending two-day request
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)
	req, err := f.svc.Submit(ctx, days(mar(10), mar(11)))
	require.NoError(t, err)
	require.True(t, f.balance(t, "lt-cl", 2025).Available().Equal(d("10")))

	// WHEN: The employee withdraws it
	req, err = f.svc.Cancel(ctx, req.ID, "emp-1", "plans changed")

	// THEN: Nothing stays reserved
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, req.Status)
	assert.Equal(t, "plans changed", req.CancelRemarks)
	b := f.balance(t, "lt-cl", 2025)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Available().Equal(d("12")))
}

func TestTerminalStates_RejectFurtherActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.Flow = leave.FlowSingle
	f.saveType(t, lt)
	f.initYear(t, 2025)

	req, err := f.svc.Submit(ctx, days(mar(10), mar(10)))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, req.ID, "mgr-1", "")
	require.NoError(t, err)
	before := f.balance(t, "lt-cl", 2025)

	for _, action := range []leave.Action{leave.ActionCancel, leave.ActionApprove, leave.ActionReject, leave.ActionHRApprove} {
		_, err := f.svc.Act(ctx, req.ID, action, "mgr-1", "")
		assert.ErrorIs(t, err, core.ErrInvalidTransition, "action %s", action)
	}

	after := f.balance(t, "lt-cl", 2025)
	assert.True(t, before.Used.Equal(after.Used))
	assert.True(t, before.Pending.Equal(after.Pending))
	assert.Equal(t, before.Version, after.Version)
}

func TestCancel_AfterManagerApproval_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)

	req, err := f.svc.Submit(ctx, days(mar(10), mar(10)))
	require.NoError(t, err)
	_, err = f.svc.ManagerApprove(ctx, req.ID, "mgr-1", "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, req.ID, "emp-1", "")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.True(t, f.balance(t, "lt-cl", 2025).Pending.Equal(d("1")))
}

// =============================================================================
// SINGLE FLOW AND AUTO-APPROVAL
// =============================================================================

func TestSingleFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.Flow = leave.FlowSingle
	f.saveType(t, lt)
	f.initYear(t, 2025)

	req, err := f.svc.Submit(ctx, days(mar(10), mar(11)))
	require.NoError(t, err)
	assert.Equal(t, leave.FlowSingle, req.Flow)
	assert.Equal(t, leave.StageNotRequired, req.HR.Status)

	_, err = f.svc.ManagerApprove(ctx, req.ID, "mgr-1", "")
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "multi-level action on a single-flow request")

	req, err = f.svc.Approve(ctx, req.ID, "mgr-1", "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, req.Status)
	assert.True(t, f.balance(t, "lt-cl", 2025).Used.Equal(d("2")))
}

func TestSubmit_NoApprovalRequired_CommitsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.RequiresApproval = false
	f.saveType(t, lt)
	f.initYear(t, 2025)

	req, err := f.svc.Submit(ctx, days(mar(10), mar(10)))
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, req.Status)
	b := f.balance(t, "lt-cl", 2025)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Used.Equal(d("1")))
	assert.Equal(t, []core.EventKind{core.EventLeaveApproved}, f.notifier.kinds())
}

// =============================================================================
// SUBMIT VALIDATION
// =============================================================================

func TestSubmit_InsufficientBalance_LeavesStateUnchanged(t *testing.T) {
	// GIVEN: 12 days available
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)
	before := f.balance(t, "lt-cl", 2025)

	// WHEN: Filing 13 days
	_, err := f.svc.Submit(ctx, days(mar(1), mar(13)))

	// THEN: Rejected with the shortfall, nothing reserved, nothing filed
	var ie *core.InsufficientBalanceError
	require.ErrorAs(t, err, &ie)
	assert.True(t, ie.Available.Equal(d("12")))
	assert.True(t, ie.Requested.Equal(d("13")))
	assert.Equal(t, before, f.balance(t, "lt-cl", 2025))

	reqs, err := f.svc.ListRequests(ctx, leave.RequestFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Empty(t, reqs)
	assert.Empty(t, f.notifier.kinds())
}

func TestSubmit_ExcludesBranchAndGlobalHolidays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)
	require.NoError(t, f.dir.SaveHoliday(ctx, core.Holiday{ID: "h-1", Date: mar(11), Name: "Festival"}))
	require.NoError(t, f.dir.SaveHoliday(ctx, core.Holiday{ID: "h-2", BranchID: "br-1", Date: mar(11), Name: "Branch day"}))
	require.NoError(t, f.dir.SaveHoliday(ctx, core.Holiday{ID: "h-3", BranchID: "br-9", Date: mar(12), Name: "Other branch"}))

	req, err := f.svc.Submit(ctx, days(mar(10), mar(12)))
	require.NoError(t, err)

	assert.True(t, req.TotalDays.Equal(d("2")), "got %s", req.TotalDays)
}

func TestSubmit_HalfDayAndHourly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.HourlyAllowed = true
	f.saveType(t, lt)
	f.initYear(t, 2025)

	half := days(mar(10), time.Time{})
	half.DayType = leave.HalfDayPM
	req, err := f.svc.Submit(ctx, half)
	require.NoError(t, err)
	assert.True(t, req.TotalDays.Equal(d("0.5")))
	assert.True(t, req.EndDate.Equal(req.StartDate))

	start, end := core.NewTimeOfDay(14, 0), core.NewTimeOfDay(16, 0)
	hourly := days(mar(11), mar(11))
	hourly.StartTime, hourly.EndTime = &start, &end
	req, err = f.svc.Submit(ctx, hourly)
	require.NoError(t, err)
	assert.True(t, req.TotalDays.Equal(d("0.25")))
	require.True(t, req.TotalHours.Valid)
	assert.True(t, req.TotalHours.Decimal.Equal(d("2")))

	assert.True(t, f.balance(t, "lt-cl", 2025).Pending.Equal(d("0.75")))
}

func TestSubmit_PolicyChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	inactive := casualLeave()
	inactive.ID, inactive.Code, inactive.Active = "lt-old", "OLD", false
	f.saveType(t, inactive)
	f.initYear(t, 2025)

	start, end := core.NewTimeOfDay(9, 0), core.NewTimeOfDay(10, 0)
	hourly := days(mar(10), mar(10))
	hourly.StartTime, hourly.EndTime = &start, &end
	_, err := f.svc.Submit(ctx, hourly)
	assert.ErrorIs(t, err, core.ErrPolicyViolation, "hourly not allowed")

	in := days(mar(10), mar(10))
	in.LeaveTypeID = "lt-old"
	_, err = f.svc.Submit(ctx, in)
	assert.ErrorIs(t, err, core.ErrPolicyViolation, "inactive type")

	in = days(mar(10), mar(10))
	in.EmployeeID = "emp-2"
	_, err = f.svc.Submit(ctx, in)
	assert.ErrorIs(t, err, core.ErrPolicyViolation, "inactive employee")

	in.EmployeeID = "emp-404"
	_, err = f.svc.Submit(ctx, in)
	assert.ErrorIs(t, err, core.ErrNotFound, "unknown employee")

	in = days(core.NewDate(2026, time.January, 5), core.NewDate(2026, time.January, 5))
	_, err = f.svc.Submit(ctx, in)
	assert.ErrorIs(t, err, core.ErrNotFound, "balance not initialized for the year")

	in = days(mar(10), mar(10))
	in.DayType = "QUARTER_DAY"
	_, err = f.svc.Submit(ctx, in)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSubmit_CrossYear_ChargedToStartYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)

	req, err := f.svc.Submit(ctx, days(core.NewDate(2025, time.December, 30), core.NewDate(2026, time.January, 2)))
	require.NoError(t, err)

	assert.Equal(t, 2025, req.Year())
	assert.True(t, f.balance(t, "lt-cl", 2025).Pending.Equal(d("4")))
}

func TestSubmit_ConcurrentRequests_NeverOverdraw(t *testing.T) {
	// GIVEN: 12 days and ten parallel two-day requests
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := core.NewDate(2025, time.April, 1+2*i)
			if _, err := f.svc.Submit(ctx, days(start, start.AddDate(0, 0, 1))); err == nil {
				succeeded.Add(1)
			} else {
				assert.ErrorIs(t, err, core.ErrInsufficientBalance)
			}
		}(i)
	}
	wg.Wait()

	// THEN: Exactly six fit and the balance is exhausted, not negative
	assert.Equal(t, int32(6), succeeded.Load())
	b := f.balance(t, "lt-cl", 2025)
	assert.True(t, b.Pending.Equal(d("12")))
	assert.True(t, b.Available().IsZero())
}

func TestTransition_RequiresActor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ManagerApprove(context.Background(), "req-1", "", "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.ManagerApprove(context.Background(), "req-404", "mgr-1", "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// =============================================================================
// YEAR INITIALIZATION
// =============================================================================

func TestInitializeYearlyBalances_CarryForwardAndLapse(t *testing.T) {
	// GIVEN: 2024 with 4 of 12 days used and a carry-forward cap of 5
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.Flow = leave.FlowSingle
	lt.CarryForwardAllowed = true
	lt.MaxCarryForward = decimal.NewNullDecimal(d("5"))
	f.saveType(t, lt)
	f.initYear(t, 2024)

	req, err := f.svc.Submit(ctx, days(core.NewDate(2024, time.June, 3), core.NewDate(2024, time.June, 6)))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, req.ID, "mgr-1", "")
	require.NoError(t, err)

	// WHEN: Opening 2025
	out, err := f.svc.InitializeYearlyBalances(ctx, "emp-1", 2025)
	require.NoError(t, err)

	// THEN: 5 carry forward, the other 3 lapse in 2024
	require.Len(t, out, 1)
	assert.True(t, out[0].OpeningBalance.Equal(d("12")))
	assert.True(t, out[0].CarryForward.Equal(d("5")))
	assert.True(t, out[0].Available().Equal(d("17")))

	prior := f.balance(t, "lt-cl", 2024)
	assert.True(t, prior.Lapsed.Equal(d("3")))
	assert.True(t, prior.LapseRecorded)
	assert.True(t, prior.Available().IsZero())

	// WHEN: Initializing again
	again, err := f.svc.InitializeYearlyBalances(ctx, "emp-1", 2025)
	require.NoError(t, err)

	// THEN: Nothing changes
	require.Len(t, again, 1)
	assert.Equal(t, out[0].Version, again[0].Version)
	assert.True(t, f.balance(t, "lt-cl", 2024).Lapsed.Equal(d("3")))
}

func TestInitializeYearlyBalances_NoCarryForward_LapsesAll(t *testing.T) {
	f := newFixture(t)
	f.saveType(t, casualLeave())
	f.initYear(t, 2024)
	f.initYear(t, 2025)

	assert.True(t, f.balance(t, "lt-cl", 2025).CarryForward.IsZero())
	assert.True(t, f.balance(t, "lt-cl", 2024).Lapsed.Equal(d("12")))
}

func TestInitializeYearlyBalances_PendingExcludedFromCarryForward(t *testing.T) {
	// GIVEN: 2 days still pending at the end of 2024
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.CarryForwardAllowed = true
	f.saveType(t, lt)
	f.initYear(t, 2024)
	_, err := f.svc.Submit(ctx, days(core.NewDate(2024, time.December, 23), core.NewDate(2024, time.December, 24)))
	require.NoError(t, err)

	// WHEN: Opening 2025
	f.initYear(t, 2025)

	// THEN: All 12 carry; the prior year keeps the reservation and lapses nothing
	assert.True(t, f.balance(t, "lt-cl", 2025).CarryForward.Equal(d("12")))
	prior := f.balance(t, "lt-cl", 2024)
	assert.True(t, prior.Lapsed.IsZero())
	assert.True(t, prior.Pending.Equal(d("2")))
	assert.True(t, prior.CarriedOut.Equal(d("10")))
	assert.True(t, prior.Available().IsZero())
}

func TestInitializeYearlyBalances_RefusesToCloseRunningYear(t *testing.T) {
	// GIVEN: 2025 is the current year (the clock reads March 2025)
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, leave.LeaveType{
		ID: "lt-el", Code: "EL", AnnualEntitlement: d("12"),
		Accrual: leave.AccrualMonthly, RequiresApproval: true, Active: true,
	})
	f.initYear(t, 2025)

	// WHEN: Opening 2026 early
	_, err := f.svc.InitializeYearlyBalances(ctx, "emp-1", 2026)

	// THEN: 2025 stays open and keeps accruing
	assert.ErrorIs(t, err, core.ErrPolicyViolation)
	_, err = f.svc.GetBalance(ctx, leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-el", Year: 2026})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, f.balance(t, "lt-el", 2025).Closed())

	_, err = f.svc.AccrueMonthly(ctx, "emp-1", 2025, 4)
	require.NoError(t, err)
	assert.True(t, f.balance(t, "lt-el", 2025).Credited.Equal(d("4")))
}

func TestInitializeYearlyBalances_FutureYearWithoutHistory(t *testing.T) {
	f := newFixture(t)
	f.saveType(t, casualLeave())

	// A new hire's first year may be opened ahead of time
	f.initYear(t, 2026)
	assert.True(t, f.balance(t, "lt-cl", 2026).Available().Equal(d("12")))
}

// =============================================================================
// CLOSED YEARS
// =============================================================================

func closedYearFixture(t *testing.T) *fixture {
	t.Helper()
	// 12 days in 2024, 4 used, up to 5 carried into 2025
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.Flow = leave.FlowSingle
	lt.CarryForwardAllowed = true
	lt.EncashmentAllowed = true
	lt.MaxCarryForward = decimal.NewNullDecimal(d("5"))
	f.saveType(t, lt)
	f.initYear(t, 2024)

	req, err := f.svc.Submit(ctx, days(core.NewDate(2024, time.June, 3), core.NewDate(2024, time.June, 6)))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, req.ID, "mgr-1", "")
	require.NoError(t, err)
	f.initYear(t, 2025)
	return f
}

func TestClosedYear_CarriedDaysSpentOnce(t *testing.T) {
	// GIVEN: 2024 closed with 5 days carried into 2025
	f := closedYearFixture(t)
	ctx := context.Background()
	prior := f.balance(t, "lt-cl", 2024)
	assert.True(t, prior.CarriedOut.Equal(d("5")))
	assert.True(t, prior.Lapsed.Equal(d("3")))
	assert.True(t, prior.Available().IsZero())

	// WHEN: Filing a backdated request against 2024
	_, err := f.svc.Submit(ctx, days(core.NewDate(2024, time.December, 16), core.NewDate(2024, time.December, 20)))

	// THEN: The closed year refuses it and nothing moves
	assert.ErrorIs(t, err, core.ErrPolicyViolation)
	assert.True(t, f.balance(t, "lt-cl", 2024).Used.Equal(d("4")))
	assert.True(t, f.balance(t, "lt-cl", 2025).Available().Equal(d("17")))
}

func TestClosedYear_RejectsCreditAndEncash(t *testing.T) {
	f := closedYearFixture(t)
	ctx := context.Background()
	key := leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-cl", Year: 2024}

	_, err := f.svc.Credit(ctx, key, d("2"), "hr-1")
	assert.ErrorIs(t, err, core.ErrPolicyViolation)

	_, err = f.svc.Encash(ctx, key, d("1"), "hr-1")
	assert.ErrorIs(t, err, core.ErrPolicyViolation)

	prior := f.balance(t, "lt-cl", 2024)
	assert.True(t, prior.Credited.IsZero())
	assert.True(t, prior.Encashed.IsZero())
}

func TestClosedYear_RejectsAccrual(t *testing.T) {
	// GIVEN: A monthly type whose 2024 was closed by opening 2025
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, leave.LeaveType{
		ID: "lt-el", Code: "EL", AnnualEntitlement: d("12"),
		Accrual: leave.AccrualMonthly, RequiresApproval: true, Active: true,
	})
	f.initYear(t, 2024)
	_, err := f.svc.AccrueMonthly(ctx, "emp-1", 2024, 11)
	require.NoError(t, err)
	f.initYear(t, 2025)

	// WHEN: December is accrued late
	_, err = f.svc.AccrueMonthly(ctx, "emp-1", 2024, 12)

	// THEN: The closed year takes no more credit
	assert.ErrorIs(t, err, core.ErrPolicyViolation)
	prior := f.balance(t, "lt-el", 2024)
	assert.Equal(t, 11, prior.CreditedThrough)
	assert.True(t, prior.Lapsed.Equal(d("11")))
	assert.True(t, prior.Available().IsZero())
}

func TestClosedYear_PendingRequestStillSettles(t *testing.T) {
	// GIVEN: 2 days pending when 2024 closes with all 12 carried
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.Flow = leave.FlowSingle
	lt.CarryForwardAllowed = true
	f.saveType(t, lt)
	f.initYear(t, 2024)
	req, err := f.svc.Submit(ctx, days(core.NewDate(2024, time.December, 23), core.NewDate(2024, time.December, 24)))
	require.NoError(t, err)
	f.initYear(t, 2025)

	// WHEN: The request is approved after the close
	_, err = f.svc.Approve(ctx, req.ID, "mgr-1", "")
	require.NoError(t, err)

	// THEN: The reservation is committed and the closed year stays at zero
	prior := f.balance(t, "lt-cl", 2024)
	assert.True(t, prior.Used.Equal(d("2")))
	assert.True(t, prior.Pending.IsZero())
	assert.True(t, prior.Available().IsZero())
}

func TestInitializeYearlyBalances_SkipsInactiveTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	old := casualLeave()
	old.ID, old.Code, old.Active = "lt-old", "OLD", false
	f.saveType(t, old)

	out, err := f.svc.InitializeYearlyBalances(ctx, "emp-1", 2025)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, core.LeaveTypeID("lt-cl"), out[0].Key.LeaveTypeID)

	_, err = f.svc.InitializeYearlyBalances(ctx, "emp-2", 2025)
	assert.ErrorIs(t, err, core.ErrPolicyViolation)
}

// =============================================================================
// ACCRUAL, CREDIT, ENCASHMENT
// =============================================================================

func TestAccrueMonthly(t *testing.T) {
	// GIVEN: A monthly type of 12 days and an annual type
	f := newFixture(t)
	ctx := context.Background()
	monthly := leave.LeaveType{
		ID: "lt-el", Code: "EL", Name: "Earned Leave",
		AnnualEntitlement: d("12"), Accrual: leave.AccrualMonthly,
		RequiresApproval: true, Active: true,
	}
	f.saveType(t, monthly)
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)
	assert.True(t, f.balance(t, "lt-el", 2025).Available().IsZero())

	// WHEN: Accruing through March, twice
	out, err := f.svc.AccrueMonthly(ctx, "emp-1", 2025, 3)
	require.NoError(t, err)
	_, err = f.svc.AccrueMonthly(ctx, "emp-1", 2025, 3)
	require.NoError(t, err)

	// THEN: Three months are credited once; annual types are untouched
	require.Len(t, out, 1)
	b := f.balance(t, "lt-el", 2025)
	assert.True(t, b.Credited.Equal(d("3")))
	assert.Equal(t, 3, b.CreditedThrough)
	assert.True(t, f.balance(t, "lt-cl", 2025).Credited.IsZero())

	_, err = f.svc.AccrueMonthly(ctx, "emp-1", 2025, 0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAccrueMonthly_SkipsUninitialized(t *testing.T) {
	f := newFixture(t)
	f.saveType(t, leave.LeaveType{
		ID: "lt-el", Code: "EL", AnnualEntitlement: d("12"),
		Accrual: leave.AccrualMonthly, RequiresApproval: true, Active: true,
	})

	out, err := f.svc.AccrueMonthly(context.Background(), "emp-1", 2025, 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCreditAndEncash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	f.saveType(t, lt)
	f.initYear(t, 2025)
	key := leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-cl", Year: 2025}

	b, err := f.svc.Credit(ctx, key, d("1.5"), "hr-1")
	require.NoError(t, err)
	assert.True(t, b.Available().Equal(d("13.5")))

	_, err = f.svc.Encash(ctx, key, d("2"), "hr-1")
	assert.ErrorIs(t, err, core.ErrPolicyViolation, "encashment not allowed")

	lt.EncashmentAllowed = true
	f.saveType(t, lt)
	b, err = f.svc.Encash(ctx, key, d("2"), "hr-1")
	require.NoError(t, err)
	assert.True(t, b.Encashed.Equal(d("2")))
	assert.True(t, b.Available().Equal(d("11.5")))

	_, err = f.svc.Encash(ctx, key, d("20"), "hr-1")
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)

	_, err = f.svc.Credit(ctx, key, d("-1"), "hr-1")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

// =============================================================================
// READS
// =============================================================================

func TestApprovedLeaveDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lt := casualLeave()
	lt.Flow = leave.FlowSingle
	f.saveType(t, lt)
	f.initYear(t, 2025)

	approved, err := f.svc.Submit(ctx, days(mar(3), mar(4)))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, approved.ID, "mgr-1", "")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, days(mar(10), mar(10)))
	require.NoError(t, err)
	outside, err := f.svc.Submit(ctx, days(core.NewDate(2025, time.April, 1), core.NewDate(2025, time.April, 1)))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, outside.ID, "mgr-1", "")
	require.NoError(t, err)

	total, err := f.svc.ApprovedLeaveDays(ctx, "emp-1", mar(1), mar(31))
	require.NoError(t, err)
	assert.True(t, total.Equal(d("2")), "only approved requests in range count, got %s", total)

	_, err = f.svc.ApprovedLeaveDays(ctx, "emp-1", mar(31), mar(1))
	assert.ErrorIs(t, err, core.ErrInvalidTimeRange)
}

func TestListRequests_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveType(t, casualLeave())
	f.initYear(t, 2025)

	first, err := f.svc.Submit(ctx, days(mar(3), mar(3)))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, days(mar(5), mar(5)))
	require.NoError(t, err)
	_, err = f.svc.ManagerApprove(ctx, first.ID, "mgr-1", "")
	require.NoError(t, err)

	pending, err := f.svc.ListRequests(ctx, leave.RequestFilter{Status: leave.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := f.svc.ListRequests(ctx, leave.RequestFilter{EmployeeID: "emp-1", Year: 2025})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := f.svc.ListRequests(ctx, leave.RequestFilter{Year: 2024})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveLeaveType_Validates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := casualLeave()
	bad.Accrual = "WEEKLY"
	_, err := f.svc.SaveLeaveType(ctx, bad)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	f.saveType(t, casualLeave())
	dup := casualLeave()
	dup.ID = "lt-cl-2"
	_, err = f.svc.SaveLeaveType(ctx, dup)
	assert.ErrorIs(t, err, core.ErrInvalidInput, "code must be unique")

	_, err = f.svc.GetLeaveType(ctx, "lt-404")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
