package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseCron validates a standard five-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// NextAfter computes the next fire instant for expr after now, evaluated in
// loc. It is a pure function so cron semantics are testable without a timer.
func NextAfter(expr string, loc *time.Location, now time.Time) (time.Time, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.In(loc)), nil
}
