// Package schedule fires a job on a fixed interval or a cron expression,
// from a dedicated timer goroutine that polls its stop signal at one-second
// granularity.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docrelay/docrelay/internal/metrics"
)

// Config selects the scheduling mode. Exactly one of Interval or CronExpr
// must be set; Timezone applies to cron mode only.
type Config struct {
	Interval time.Duration
	CronExpr string
	Timezone string
}

// Job is the work fired on every tick.
type Job func(context.Context) error

// Scheduler drives a Job on its configured cadence. Firing cadence is
// independent of job duration: the next fire time is re-armed before the job
// runs, so a slow cycle only delays itself, never the schedule.
type Scheduler struct {
	cfg Config
	job Job
	log *slog.Logger
	loc *time.Location

	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	done     chan struct{}
	nextFire time.Time

	// test seams
	clock        func() time.Time
	pollInterval time.Duration
	stopTimeout  time.Duration
}

// New validates the configuration and returns a Scheduler. Construction
// fails fast on an empty configuration, a non-positive interval, an invalid
// cron expression, or an unknown timezone.
func New(cfg Config, job Job, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if job == nil {
		return nil, fmt.Errorf("scheduler job must not be nil")
	}

	s := &Scheduler{
		cfg:          cfg,
		job:          job,
		log:          log,
		loc:          time.UTC,
		clock:        time.Now,
		pollInterval: time.Second,
		stopTimeout:  5 * time.Second,
	}

	switch {
	case cfg.CronExpr != "":
		if _, err := ParseCron(cfg.CronExpr); err != nil {
			return nil, err
		}
		tz := cfg.Timezone
		if tz == "" {
			tz = "UTC"
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		s.loc = loc
		log.Info("scheduler configured", "mode", "cron", "expr", cfg.CronExpr, "timezone", tz)
	case cfg.Interval > 0:
		log.Info("scheduler configured", "mode", "interval", "interval", cfg.Interval)
	case cfg.Interval < 0:
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.Interval)
	default:
		return nil, fmt.Errorf("schedule requires an interval or a cron expression")
	}

	return s, nil
}

// Start launches the timer loop. Calling Start while running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("scheduler already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.nextFire = s.computeNext(s.clock())

	go s.run(s.stop, s.done)
	s.log.Info("scheduler started", "next_run", s.nextFire)
}

// Stop signals the timer loop and waits, bounded by a timeout, for it to
// exit. Calling Stop while idle is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.log.Warn("scheduler is not running")
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-time.After(s.stopTimeout):
		s.log.Warn("scheduler loop did not stop within timeout", "timeout", s.stopTimeout)
	}
}

// IsRunning reports whether the timer loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRunTime returns the next scheduled fire instant, or false when the
// scheduler is idle.
func (s *Scheduler) NextRunTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}, false
	}
	return s.nextFire, true
}

func (s *Scheduler) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := s.clock()

			s.mu.Lock()
			due := !now.Before(s.nextFire)
			if due {
				// Re-arm before running so a failing or slow job can
				// never skip the reschedule.
				s.nextFire = s.computeNext(now)
			}
			s.mu.Unlock()

			if due {
				s.fire()
			}
		}
	}
}

// computeNext derives the fire time following now for the configured mode.
func (s *Scheduler) computeNext(now time.Time) time.Time {
	if s.cfg.CronExpr != "" {
		next, err := NextAfter(s.cfg.CronExpr, s.loc, now)
		if err != nil {
			// Expression was validated at construction; fall back to a
			// one-minute retry rather than stopping the loop.
			s.log.Error("cron computation failed", "error", err)
			return now.Add(time.Minute)
		}
		return next
	}
	return now.Add(s.cfg.Interval)
}

// fire invokes the job through a guard that logs any error or panic without
// terminating the loop: one failing cycle never stops subsequent cycles.
func (s *Scheduler) fire() {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("scheduled job panicked", "panic", p)
		}
	}()

	metrics.SchedulerFires.Inc()
	s.log.Info("executing scheduled job")
	start := s.clock()

	if err := s.job(context.Background()); err != nil {
		s.log.Error("scheduled job failed", "error", err, "duration", s.clock().Sub(start))
		return
	}
	s.log.Info("scheduled job completed", "duration", s.clock().Sub(start))
}
