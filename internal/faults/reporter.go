package faults

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docrelay/docrelay/internal/metrics"
)

const historyCap = 1000

// Reporter categorizes, logs, persists and optionally retries failures.
// A single instance is constructed at process start and handed to every
// component; its counters and history are the only state mutated from
// multiple goroutines and are guarded by mu.
type Reporter struct {
	log      *slog.Logger
	store    *Store
	policies map[Category]RetryPolicy

	mu      sync.Mutex
	history []Record
	counts  map[string]int

	// test seams
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	jitter func() float64
}

// NewReporter creates a Reporter persisting records through store.
// A nil store disables persistence (records still go to the rolling history).
func NewReporter(log *slog.Logger, store *Store) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		log:      log,
		store:    store,
		policies: DefaultPolicies(),
		counts:   make(map[string]int),
		now:      time.Now,
		sleep:    sleepCtx,
		jitter:   rand.Float64,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy returns the retry policy for a category.
func (r *Reporter) Policy(category Category) RetryPolicy {
	if p, ok := r.policies[category]; ok {
		return p
	}
	return fallbackPolicy
}

// Handle records a failure: logs it at a level derived from severity, bumps
// the frequency counter, appends to the persistent store and to the capped
// rolling history. Returns the created record.
func (r *Reporter) Handle(err error, category Category, severity Severity,
	component, operation string, ctxData map[string]any, retryCount, maxRetries int) Record {

	rec := Record{
		ID:          uuid.New().String(),
		Timestamp:   r.now(),
		Category:    category,
		Severity:    severity,
		Component:   component,
		Operation:   operation,
		Message:     err.Error(),
		Kind:        kindOf(err),
		RetryCount:  retryCount,
		MaxRetries:  maxRetries,
		Recoverable: recoverable(err, category),
		Context:     ctxData,
	}

	r.logRecord(rec)
	metrics.ErrorsTotal.WithLabelValues(string(category), string(severity)).Inc()

	key := string(category) + ":" + component + ":" + operation
	r.mu.Lock()
	r.counts[key]++
	count := r.counts[key]
	r.history = append(r.history, rec)
	if len(r.history) > historyCap {
		r.history = r.history[len(r.history)-historyCap:]
	}
	r.mu.Unlock()

	if count%10 == 0 {
		r.log.Warn("recurring failure", "key", key, "occurrences", count)
	}

	if r.store != nil {
		if serr := r.store.Append(rec); serr != nil {
			r.log.Warn("failed to persist error record", "error", serr)
		}
	}
	return rec
}

func (r *Reporter) logRecord(rec Record) {
	attrs := []any{
		"category", rec.Category,
		"component", rec.Component,
		"operation", rec.Operation,
		"kind", rec.Kind,
	}
	if rec.RetryCount > 0 {
		attrs = append(attrs, "retry", rec.RetryCount, "max_retries", rec.MaxRetries)
	}
	for k, v := range rec.Context {
		attrs = append(attrs, k, v)
	}
	attrs = append(attrs, "error", rec.Message)

	switch rec.Severity {
	case SeverityCritical, SeverityHigh:
		r.log.Error("operation failed", attrs...)
	case SeverityMedium:
		r.log.Warn("operation failed", attrs...)
	default:
		r.log.Info("operation failed", attrs...)
	}
}

// ExecuteWithRetry runs op under the category's retry policy. Intermediate
// failures are handled at LOW severity; the final attempt is re-evaluated at
// the category's escalated severity. Retrying stops early when an attempt's
// record is non-recoverable. The last error is returned once attempts are
// exhausted. No sleep happens after the final attempt.
func (r *Reporter) ExecuteWithRetry(ctx context.Context, category Category,
	component, name string, ctxData map[string]any, op func(context.Context) error) error {

	policy := r.Policy(category)
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay(attempt-1, policy)
			r.log.Info("retrying operation",
				"operation", name, "attempt", attempt+1, "of", policy.MaxAttempts, "delay", delay)
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.log.Info("operation succeeded after retry", "operation", name, "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		severity := SeverityLow
		if attempt == policy.MaxAttempts-1 {
			severity = finalSeverity(err, category)
		}
		rec := r.Handle(err, category, severity, component, name, ctxData, attempt, policy.MaxAttempts-1)
		if !rec.Recoverable {
			r.log.Error("non-recoverable error, stopping retries", "operation", name, "error", err)
			break
		}
	}

	r.log.Error("operation failed after retries",
		"operation", name, "attempts", policy.MaxAttempts, "error", lastErr)
	return lastErr
}

// retryDelay computes the backoff after failed attempt (0-indexed):
// min(base * 2^attempt, max), scaled by jitter in [0.5, 1.0).
func (r *Reporter) retryDelay(attempt int, policy RetryPolicy) time.Duration {
	delay := policy.BaseDelay
	if policy.Exponential {
		d := float64(policy.BaseDelay) * math.Pow(2, float64(attempt))
		if d > float64(policy.MaxDelay) {
			d = float64(policy.MaxDelay)
		}
		delay = time.Duration(d)
	}
	if policy.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + r.jitter()*0.5))
	}
	return delay
}

// History returns a copy of the rolling in-memory history.
func (r *Reporter) History() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.history))
	copy(out, r.history)
	return out
}

// CleanupOldRecords prunes both the in-memory history and the persistent
// store to records newer than the retention window. retentionDays <= 0
// disables retention and makes this a no-op.
func (r *Reporter) CleanupOldRecords(retentionDays int) error {
	if retentionDays <= 0 {
		r.log.Info("error record retention disabled, skipping cleanup")
		return nil
	}
	cutoff := r.now().AddDate(0, 0, -retentionDays)

	r.mu.Lock()
	kept := r.history[:0]
	for _, rec := range r.history {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	r.history = kept
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	if err := r.store.Prune(cutoff); err != nil {
		r.log.Warn("failed to prune persistent error store", "error", err)
		return err
	}
	r.log.Info("pruned error records", "retention_days", retentionDays)
	return nil
}
