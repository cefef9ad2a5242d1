/*
scheduler.go - Automated balance maintenance scheduler

PURPOSE:
  Periodically opens the current year's balances for every active employee
  and books the monthly accrual for the current month. Both steps are
  idempotent, so the interval only controls how soon a new year or month is
  picked up.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - A failure for one employee is logged and does not stop the pass

CONFIGURATION:
  - Interval: How often to check (default: 24 hours)
  - Enabled:  Whether scheduler is active (default: false)

USAGE:
  scheduler := NewBalanceScheduler(leaves, directory, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leave/service.go: InitializeYearlyBalances, AccrueMonthly
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
)

// BalanceScheduler handles automated yearly initialization and monthly accrual.
type BalanceScheduler struct {
	Leave     *leave.Service
	Employees core.EmployeeDirectory
	Interval  time.Duration
	Enabled   bool

	log    logrus.FieldLogger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// PassResult counts the outcome of one scheduler pass.
type PassResult struct {
	Employees   int
	Initialized int
	Accrued     int
	Failed      int
}

// NewBalanceScheduler creates a new scheduler. It is disabled until Enabled
// is set.
func NewBalanceScheduler(leaves *leave.Service, employees core.EmployeeDirectory, log logrus.FieldLogger) *BalanceScheduler {
	return &BalanceScheduler{
		Leave:     leaves,
		Employees: employees,
		Interval:  24 * time.Hour,
		log:       log.WithField("component", "scheduler"),
		now:       time.Now,
	}
}

// Start begins the scheduler.
func (bs *BalanceScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.log.Info("scheduler disabled, not starting")
		return
	}
	if bs.ticker != nil {
		return
	}

	bs.ticker = time.NewTicker(bs.Interval)
	bs.stop = make(chan struct{})
	bs.wg.Add(1)

	go bs.run()

	bs.log.WithField("interval", bs.Interval.String()).Info("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (bs *BalanceScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.ticker = nil
		bs.log.Info("scheduler stopped")
	}
}

func (bs *BalanceScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.RunOnce(context.Background())

	for {
		select {
		case <-bs.ticker.C:
			bs.RunOnce(context.Background())
		case <-bs.stop:
			return
		}
	}
}

// RunOnce performs a single pass over every active employee.
func (bs *BalanceScheduler) RunOnce(ctx context.Context) PassResult {
	now := bs.now()
	year, month := now.Year(), int(now.Month())
	var res PassResult

	employees, err := bs.Employees.ListActiveEmployees(ctx)
	if err != nil {
		bs.log.WithError(err).Error("listing active employees")
		return res
	}
	res.Employees = len(employees)

	for _, emp := range employees {
		log := bs.log.WithFields(logrus.Fields{"employee_id": emp.ID, "year": year, "month": month})

		if _, err := bs.Leave.InitializeYearlyBalances(ctx, emp.ID, year); err != nil {
			log.WithError(err).Warn("initializing yearly balances")
			res.Failed++
			continue
		}
		res.Initialized++

		if _, err := bs.Leave.AccrueMonthly(ctx, emp.ID, year, month); err != nil {
			log.WithError(err).Warn("monthly accrual")
			res.Failed++
			continue
		}
		res.Accrued++
	}

	bs.log.WithFields(logrus.Fields{
		"employees":   res.Employees,
		"initialized": res.Initialized,
		"accrued":     res.Accrued,
		"failed":      res.Failed,
	}).Info("balance pass completed")
	return res
}
