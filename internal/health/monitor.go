package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
	"github.com/docrelay/docrelay/internal/faults"
	"github.com/docrelay/docrelay/internal/infra/storage"
)

// ScheduleStatus reports the timer state.
type ScheduleStatus interface {
	IsRunning() bool
	NextRunTime() (time.Time, bool)
}

// Monitor aggregates health from the scheduler, the cycle history and the
// error reporter.
type Monitor struct {
	scheduler ScheduleStatus
	cycles    storage.CycleRepository
	reporter  *faults.Reporter

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a health monitor.
func NewMonitor(scheduler ScheduleStatus, cycles storage.CycleRepository, reporter *faults.Reporter) *Monitor {
	return &Monitor{scheduler: scheduler, cycles: cycles, reporter: reporter}
}

// Check builds the current health report. Results are cached briefly so a
// scraper cannot hammer the cycle store.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := Report{
		SystemStatus:     StatusHealthy,
		SchedulerRunning: m.scheduler.IsRunning(),
		ErrorsByCategory: map[string]int{},
	}
	if next, ok := m.scheduler.NextRunTime(); ok {
		report.NextRun = &next
	}
	if !report.SchedulerRunning {
		report.SystemStatus = StatusCritical
	}

	last, err := m.cycles.GetLatest(ctx)
	if err != nil && !errors.Is(err, storage.ErrCycleNotFound) {
		report.SystemStatus = StatusDegraded
	}
	if last != nil {
		report.LastCycle = &CycleHealth{
			CycleID:          last.ID,
			DateFolder:       last.DateFolder,
			Status:           string(last.Status()),
			EndedAt:          last.EndTime,
			DurationSeconds:  last.Duration().Seconds(),
			RecordsExtracted: last.RecordsExtracted,
			Errors:           len(last.Errors),
		}
		if last.Status() == domain.CycleStatusFailed && report.SystemStatus == StatusHealthy {
			report.SystemStatus = StatusDegraded
		}
	}

	stats := m.reporter.Statistics(24)
	for category, count := range stats.ByCategory {
		report.ErrorsByCategory[category] = count
	}
	report.RecentCritical = len(stats.RecentCritical)
	if report.RecentCritical > 0 && report.SystemStatus == StatusHealthy {
		report.SystemStatus = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
