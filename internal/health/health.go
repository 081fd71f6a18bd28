// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the service.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// CycleHealth summarizes the most recent processing cycle.
type CycleHealth struct {
	CycleID          string    `json:"cycle_id,omitempty"`
	DateFolder       string    `json:"date_folder,omitempty"`
	Status           string    `json:"status,omitempty"`
	EndedAt          time.Time `json:"ended_at,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds,omitempty"`
	RecordsExtracted int       `json:"records_extracted,omitempty"`
	Errors           int       `json:"errors,omitempty"`
}

// Report is the full health report served on the detailed endpoint.
type Report struct {
	SystemStatus     SystemStatus   `json:"system_status"`
	SchedulerRunning bool           `json:"scheduler_running"`
	NextRun          *time.Time     `json:"next_run,omitempty"`
	LastCycle        *CycleHealth   `json:"last_cycle,omitempty"`
	ErrorsByCategory map[string]int `json:"errors_by_category,omitempty"`
	RecentCritical   int            `json:"recent_critical"`
}
