// Package faults is the categorized error reporting and retry engine shared
// by every component that talks to a remote system or the local disk.
package faults

import (
	"errors"
	"io/fs"
	"strings"
	"time"
)

// Category classifies a failure and selects its retry policy.
type Category string

const (
	CategoryConfiguration    Category = "configuration"
	CategoryRemoteConnection Category = "remote_connection"
	CategoryRemoteFile       Category = "remote_file_operation"
	CategoryFileProcessing   Category = "file_processing"
	CategoryDocumentParsing  Category = "document_parsing"
	CategoryNotification     Category = "notification"
	CategoryPersistence      Category = "persistence"
	CategorySystemResource   Category = "system_resource"
	CategoryValidation       Category = "validation"
	CategoryUnknown          Category = "unknown"
)

// Severity levels for error records.
type Severity string

const (
	SeverityCritical Severity = "critical" // system cannot continue
	SeverityHigh     Severity = "high"     // major functionality affected
	SeverityMedium   Severity = "medium"   // some functionality affected
	SeverityLow      Severity = "low"      // minor, system continues normally
)

// Sentinel errors callers can wrap so the reporter can derive an error kind.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrMalformedInput = errors.New("malformed input")
)

// Record is one handled failure. Appended to the rolling history and the
// persistent store on every Handle call.
type Record struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Category    Category       `json:"category"`
	Severity    Severity       `json:"severity"`
	Component   string         `json:"component"`
	Operation   string         `json:"operation"`
	Message     string         `json:"message"`
	Kind        string         `json:"kind"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
	Recoverable bool           `json:"recoverable"`
	Context     map[string]any `json:"context,omitempty"`
}

// RetryPolicy controls ExecuteWithRetry for one category.
// Read-only at runtime.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Exponential bool
	Jitter      bool
}

// DefaultPolicies maps every category to its retry policy. Categories absent
// here fall back to a single 3-attempt policy.
func DefaultPolicies() map[Category]RetryPolicy {
	return map[Category]RetryPolicy{
		CategoryRemoteConnection: {MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, Exponential: true, Jitter: true},
		CategoryRemoteFile:       {MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second, Exponential: true, Jitter: true},
		CategoryNotification:     {MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, Exponential: true, Jitter: true},
		CategoryPersistence:      {MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 60 * time.Second, Exponential: true, Jitter: true},
		CategoryFileProcessing:   {MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 60 * time.Second, Exponential: true, Jitter: true},
		CategoryDocumentParsing:  {MaxAttempts: 1},
		CategoryConfiguration:    {MaxAttempts: 1},
		CategoryValidation:       {MaxAttempts: 1},
	}
}

var fallbackPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	MaxDelay:    60 * time.Second,
	Exponential: true,
	Jitter:      true,
}

// message substrings that force an error to be treated as permanent.
var nonRecoverablePatterns = []string{
	"authentication failed",
	"invalid credentials",
	"permission denied",
	"file not found",
	"invalid format",
	"malformed",
	"corrupt",
}

// kindOf derives a stable error-kind label from the error chain.
func kindOf(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission_denied"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	default:
		return "generic"
	}
}

// recoverable decides whether retrying could ever succeed.
// Configuration and validation failures never recover, nor do errors of a
// fixed set of kinds or with known-permanent message patterns.
func recoverable(err error, category Category) bool {
	if category == CategoryConfiguration || category == CategoryValidation {
		return false
	}
	if kindOf(err) != "generic" {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range nonRecoverablePatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	return true
}

// finalSeverity is the severity applied to the last retry attempt of an
// operation. Intermediate attempts are logged LOW to avoid alarm fatigue.
func finalSeverity(err error, category Category) Severity {
	if category == CategoryConfiguration {
		return SeverityCritical
	}
	switch category {
	case CategoryRemoteConnection, CategoryPersistence:
		return SeverityHigh
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "authentication") || strings.Contains(msg, "permission") {
		return SeverityHigh
	}
	switch category {
	case CategoryDocumentParsing, CategoryValidation:
		return SeverityLow
	}
	return SeverityMedium
}
