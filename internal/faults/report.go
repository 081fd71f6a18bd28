package faults

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Statistics is an aggregate view over the recent error history.
type Statistics struct {
	TotalErrors    int            `json:"total_errors"`
	PeriodHours    int            `json:"period_hours"`
	BySeverity     map[string]int `json:"by_severity"`
	ByCategory     map[string]int `json:"by_category"`
	ByComponent    map[string]int `json:"by_component"`
	TopErrorTypes  []TypeCount    `json:"top_error_types"`
	RecentCritical []Record       `json:"recent_critical"`
}

// TypeCount pairs a category:kind key with its occurrence count.
type TypeCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Statistics summarizes the in-memory history over the last hours.
func (r *Reporter) Statistics(hours int) Statistics {
	cutoff := r.now().Add(-time.Duration(hours) * time.Hour)

	stats := Statistics{
		PeriodHours: hours,
		BySeverity:  make(map[string]int),
		ByCategory:  make(map[string]int),
		ByComponent: make(map[string]int),
	}
	typeCounts := make(map[string]int)

	for _, rec := range r.History() {
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalErrors++
		stats.BySeverity[string(rec.Severity)]++
		stats.ByCategory[string(rec.Category)]++
		stats.ByComponent[rec.Component]++
		typeCounts[string(rec.Category)+":"+rec.Kind]++
		if rec.Severity == SeverityCritical {
			stats.RecentCritical = append(stats.RecentCritical, rec)
		}
	}

	for k, c := range typeCounts {
		stats.TopErrorTypes = append(stats.TopErrorTypes, TypeCount{Key: k, Count: c})
	}
	sort.Slice(stats.TopErrorTypes, func(i, j int) bool {
		if stats.TopErrorTypes[i].Count != stats.TopErrorTypes[j].Count {
			return stats.TopErrorTypes[i].Count > stats.TopErrorTypes[j].Count
		}
		return stats.TopErrorTypes[i].Key < stats.TopErrorTypes[j].Key
	})
	if len(stats.TopErrorTypes) > 10 {
		stats.TopErrorTypes = stats.TopErrorTypes[:10]
	}
	if len(stats.RecentCritical) > 5 {
		stats.RecentCritical = stats.RecentCritical[len(stats.RecentCritical)-5:]
	}
	return stats
}

// Report renders a human-readable error summary for operators.
func (r *Reporter) Report(hours int) string {
	stats := r.Statistics(hours)

	var b strings.Builder
	fmt.Fprintf(&b, "ERROR REPORT - last %d hours\n", hours)
	fmt.Fprintf(&b, "total errors: %d\n", stats.TotalErrors)

	if len(stats.BySeverity) > 0 {
		b.WriteString("by severity:\n")
		for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
			if c := stats.BySeverity[string(sev)]; c > 0 {
				fmt.Fprintf(&b, "  %s: %d\n", sev, c)
			}
		}
	}
	if len(stats.ByCategory) > 0 {
		b.WriteString("by category:\n")
		keys := make([]string, 0, len(stats.ByCategory))
		for k := range stats.ByCategory {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %d\n", k, stats.ByCategory[k])
		}
	}
	if len(stats.TopErrorTypes) > 0 {
		b.WriteString("most frequent error types:\n")
		for _, tc := range stats.TopErrorTypes {
			fmt.Fprintf(&b, "  %s: %d\n", tc.Key, tc.Count)
		}
	}
	if len(stats.RecentCritical) > 0 {
		b.WriteString("recent critical errors:\n")
		for _, rec := range stats.RecentCritical {
			fmt.Fprintf(&b, "  %s %s.%s: %s\n",
				rec.Timestamp.Format(time.RFC3339), rec.Component, rec.Operation, rec.Message)
		}
	}
	return b.String()
}
