package faults

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"
)

func newTestReporter() (*Reporter, *[]time.Duration) {
	r := NewReporter(nil, nil)
	sleeps := &[]time.Duration{}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	r.jitter = func() float64 { return 1.0 } // delay * (0.5 + 1.0*0.5) = delay
	return r, sleeps
}

func TestExecuteWithRetryExhaustsAttempts(t *testing.T) {
	r, sleeps := newTestReporter()

	calls := 0
	err := r.ExecuteWithRetry(context.Background(), CategoryRemoteConnection,
		"test", "connect", nil, func(ctx context.Context) error {
			calls++
			return errors.New("connection refused")
		})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}

	policy := r.Policy(CategoryRemoteConnection)
	if calls != policy.MaxAttempts {
		t.Errorf("calls = %d, want %d", calls, policy.MaxAttempts)
	}
	// Sleeps happen between attempts only, never after the final one.
	if len(*sleeps) != policy.MaxAttempts-1 {
		t.Errorf("sleeps = %d, want %d", len(*sleeps), policy.MaxAttempts-1)
	}
}

func TestExecuteWithRetryBackoffDoubles(t *testing.T) {
	r, sleeps := newTestReporter()

	_ = r.ExecuteWithRetry(context.Background(), CategoryRemoteConnection,
		"test", "connect", nil, func(ctx context.Context) error {
			return errors.New("timeout")
		})

	policy := r.Policy(CategoryRemoteConnection)
	for i, got := range *sleeps {
		want := policy.BaseDelay * time.Duration(1<<i)
		if want > policy.MaxDelay {
			want = policy.MaxDelay
		}
		if got != want {
			t.Errorf("delay[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestExecuteWithRetryJitterScalesDown(t *testing.T) {
	r, sleeps := newTestReporter()
	r.jitter = func() float64 { return 0 } // lower bound: delay * 0.5

	_ = r.ExecuteWithRetry(context.Background(), CategoryRemoteConnection,
		"test", "connect", nil, func(ctx context.Context) error {
			return errors.New("timeout")
		})

	policy := r.Policy(CategoryRemoteConnection)
	if len(*sleeps) == 0 {
		t.Fatal("expected at least one sleep")
	}
	want := policy.BaseDelay / 2
	if (*sleeps)[0] != want {
		t.Errorf("first delay = %v, want %v", (*sleeps)[0], want)
	}
}

func TestExecuteWithRetrySucceedsMidway(t *testing.T) {
	r, _ := newTestReporter()

	calls := 0
	err := r.ExecuteWithRetry(context.Background(), CategoryRemoteConnection,
		"test", "connect", nil, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("flaky")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteWithRetryStopsOnNonRecoverable(t *testing.T) {
	r, _ := newTestReporter()

	calls := 0
	err := r.ExecuteWithRetry(context.Background(), CategoryRemoteConnection,
		"test", "connect", nil, func(ctx context.Context) error {
			calls++
			return fmt.Errorf("login: %w", ErrAuthentication)
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on authentication failure)", calls)
	}
}

func TestExecuteWithRetrySingleAttemptCategories(t *testing.T) {
	r, sleeps := newTestReporter()

	for _, cat := range []Category{CategoryConfiguration, CategoryValidation, CategoryDocumentParsing} {
		calls := 0
		_ = r.ExecuteWithRetry(context.Background(), cat,
			"test", "op", nil, func(ctx context.Context) error {
				calls++
				return errors.New("bad input")
			})
		if calls != 1 {
			t.Errorf("%s: calls = %d, want 1", cat, calls)
		}
	}
	if len(*sleeps) != 0 {
		t.Errorf("sleeps = %d, want 0", len(*sleeps))
	}
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category Category
		want     bool
	}{
		{"generic remote error", errors.New("timeout"), CategoryRemoteConnection, true},
		{"authentication", fmt.Errorf("x: %w", ErrAuthentication), CategoryRemoteConnection, false},
		{"permission", fmt.Errorf("x: %w", fs.ErrPermission), CategoryRemoteFile, false},
		{"not found message", errors.New("file not found on server"), CategoryRemoteFile, false},
		{"malformed", fmt.Errorf("x: %w", ErrMalformedInput), CategoryDocumentParsing, false},
		{"configuration never recoverable", errors.New("anything"), CategoryConfiguration, false},
		{"validation never recoverable", errors.New("anything"), CategoryValidation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recoverable(tt.err, tt.category); got != tt.want {
				t.Errorf("recoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleHistoryCap(t *testing.T) {
	r, _ := newTestReporter()

	for i := 0; i < historyCap+50; i++ {
		r.Handle(errors.New("x"), CategoryUnknown, SeverityLow, "test", "op", nil, 0, 0)
	}
	if got := len(r.History()); got != historyCap {
		t.Errorf("history length = %d, want %d", got, historyCap)
	}
}

func TestCleanupOldRecordsDisabled(t *testing.T) {
	r, _ := newTestReporter()
	r.Handle(errors.New("x"), CategoryUnknown, SeverityLow, "test", "op", nil, 0, 0)

	if err := r.CleanupOldRecords(0); err != nil {
		t.Fatalf("cleanup with retention 0 should be a no-op, got %v", err)
	}
	if got := len(r.History()); got != 1 {
		t.Errorf("history length = %d, want 1 (nothing pruned)", got)
	}
}

func TestCleanupOldRecordsPrunesHistory(t *testing.T) {
	r, _ := newTestReporter()

	old := time.Now().AddDate(0, 0, -10)
	r.now = func() time.Time { return old }
	r.Handle(errors.New("old"), CategoryUnknown, SeverityLow, "test", "op", nil, 0, 0)

	r.now = time.Now
	r.Handle(errors.New("recent"), CategoryUnknown, SeverityLow, "test", "op", nil, 0, 0)

	if err := r.CleanupOldRecords(7); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	hist := r.History()
	if len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}
	if hist[0].Message != "recent" {
		t.Errorf("kept record = %q, want the recent one", hist[0].Message)
	}
}

func TestFinalSeverity(t *testing.T) {
	tests := []struct {
		err      error
		category Category
		want     Severity
	}{
		{errors.New("x"), CategoryConfiguration, SeverityCritical},
		{errors.New("x"), CategoryRemoteConnection, SeverityHigh},
		{errors.New("x"), CategoryPersistence, SeverityHigh},
		{errors.New("x"), CategoryDocumentParsing, SeverityLow},
		{errors.New("x"), CategoryValidation, SeverityLow},
		{errors.New("x"), CategoryFileProcessing, SeverityMedium},
	}
	for _, tt := range tests {
		if got := finalSeverity(tt.err, tt.category); got != tt.want {
			t.Errorf("finalSeverity(%s) = %s, want %s", tt.category, got, tt.want)
		}
	}
}
