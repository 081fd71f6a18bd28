// Package executor runs independent named actions concurrently with a
// bounded worker count, isolating each action's failure into an outcome.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docrelay/docrelay/internal/faults"
	"github.com/docrelay/docrelay/internal/metrics"
)

// Action is one unit of work submitted to a batch.
type Action struct {
	Name string
	Run  func(context.Context) error
}

// Outcome is the result of one action. Consumed immediately by the caller.
type Outcome struct {
	Name         string
	Success      bool
	Duration     time.Duration
	ErrorMessage string
}

// Executor fans out actions over a fixed-size worker pool.
type Executor struct {
	workers  int
	reporter *faults.Reporter
	log      *slog.Logger
	now      func() time.Time
}

// New creates an Executor with the given worker count (minimum 1).
func New(workers int, reporter *faults.Reporter, log *slog.Logger) *Executor {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{workers: workers, reporter: reporter, log: log, now: time.Now}
}

// RunBatch runs all actions concurrently, bounded by the worker count, and
// returns their outcomes in completion order. An action's failure never
// cancels or blocks its siblings; it becomes a failed Outcome reported at
// MEDIUM severity. Actions without a callable fail immediately without
// consuming a worker slot.
func (e *Executor) RunBatch(ctx context.Context, actions []Action) []Outcome {
	if len(actions) == 0 {
		e.log.Warn("no actions to execute")
		return nil
	}
	e.log.Info("starting parallel batch", "actions", len(actions), "workers", e.workers)

	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	collect := func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, action := range actions {
		if action.Run == nil {
			e.log.Error("action has no callable", "action", action.Name)
			collect(Outcome{Name: action.Name, ErrorMessage: "no callable provided"})
			continue
		}
		action := action
		g.Go(func() error {
			collect(e.runOne(gctx, action))
			return nil
		})
	}
	g.Wait()

	ok := 0
	for _, o := range outcomes {
		if o.Success {
			ok++
		}
	}
	e.log.Info("parallel batch complete", "successful", ok, "failed", len(outcomes)-ok)
	return outcomes
}

// RunStaged runs the first wave, then builds and runs a dependent follow-up
// action from the collected wave-one outcomes. The follow-up is never
// submitted before every first-wave outcome has been returned, which makes
// the ordering dependency part of the call signature rather than a calling
// convention.
func (e *Executor) RunStaged(ctx context.Context, first []Action, then func([]Outcome) Action) []Outcome {
	outcomes := e.RunBatch(ctx, first)
	followUp := then(outcomes)
	return append(outcomes, e.RunBatch(ctx, []Action{followUp})...)
}

func (e *Executor) runOne(ctx context.Context, action Action) (out Outcome) {
	start := e.now()
	defer func() {
		if p := recover(); p != nil {
			out = e.failed(action.Name, e.now().Sub(start), errors.New("action panicked"))
		}
	}()

	err := action.Run(ctx)
	elapsed := e.now().Sub(start)
	if err != nil {
		return e.failed(action.Name, elapsed, err)
	}

	metrics.ActionDuration.WithLabelValues(action.Name, "success").Observe(elapsed.Seconds())
	e.log.Info("action completed", "action", action.Name, "duration", elapsed)
	return Outcome{Name: action.Name, Success: true, Duration: elapsed}
}

func (e *Executor) failed(name string, elapsed time.Duration, err error) Outcome {
	metrics.ActionDuration.WithLabelValues(name, "failure").Observe(elapsed.Seconds())
	if e.reporter != nil {
		e.reporter.Handle(err, faults.CategorySystemResource, faults.SeverityMedium,
			"executor", name, map[string]any{"duration": elapsed.String()}, 0, 0)
	}
	return Outcome{Name: name, Duration: elapsed, ErrorMessage: err.Error()}
}

// Summary aggregates a batch's outcomes for logging.
type Summary struct {
	Total           int
	Successful      int
	Failed          int
	SuccessRate     float64
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// Summarize computes success/failure counts and durations over outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	if s.Total == 0 {
		return s
	}
	for _, o := range outcomes {
		if o.Success {
			s.Successful++
		}
		s.TotalDuration += o.Duration
	}
	s.Failed = s.Total - s.Successful
	s.SuccessRate = float64(s.Successful) / float64(s.Total) * 100
	s.AverageDuration = s.TotalDuration / time.Duration(s.Total)
	return s
}

// Find returns the outcome with the given action name, if present.
func Find(outcomes []Outcome, name string) (Outcome, bool) {
	for _, o := range outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}
