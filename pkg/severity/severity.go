// Package severity provides unified severity level definitions and
// scoring for vulnerability findings across the pipeline.
package severity

import "strings"

// Level represents a severity level for vulnerability findings.
type Level string

const (
	// Critical - Immediate action required. Actively exploited or trivially exploitable.
	Critical Level = "critical"

	// High - Serious vulnerability that should be addressed urgently.
	High Level = "high"

	// Medium - Moderate risk, should be addressed in normal development cycle.
	Medium Level = "medium"

	// Low - Minor issue, address when convenient.
	Low Level = "low"

	// Info - Informational finding, no security impact.
	Info Level = "info"

	// Unknown - Severity could not be determined.
	Unknown Level = "unknown"
)

// AllLevels returns all severity levels in order of priority (highest first).
func AllLevels() []Level {
	return []Level{Critical, High, Medium, Low, Info, Unknown}
}

// String returns the string representation of the severity level.
func (l Level) String() string {
	return string(l)
}

// Priority returns the numeric priority of the severity level.
// Higher numbers = higher priority.
func (l Level) Priority() int {
	switch l {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// IsHigherThan returns true if this severity is higher than the other.
func (l Level) IsHigherThan(other Level) bool {
	return l.Priority() > other.Priority()
}

// IsAtLeast returns true if this severity is at least as high as the other.
func (l Level) IsAtLeast(other Level) bool {
	return l.Priority() >= other.Priority()
}

// FromString normalizes various severity string formats to a standard Level.
func FromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL", "CRIT":
		return Critical
	case "HIGH", "ERROR", "SEVERE":
		return High
	case "MEDIUM", "MODERATE", "WARNING", "WARN", "MED":
		return Medium
	case "LOW":
		return Low
	case "INFO", "INFORMATIONAL", "NOTE", "NONE":
		return Info
	default:
		return Unknown
	}
}

// FromScore converts a numeric severity score (0.0-10.0) to a level.
// Based on CVSS v3.0 severity ratings:
//   - 9.0-10.0: Critical
//   - 7.0-8.9: High
//   - 4.0-6.9: Medium
//   - 0.1-3.9: Low
//   - 0.0: Info
func FromScore(score float64) Level {
	switch {
	case score >= 9.0:
		return Critical
	case score >= 7.0:
		return High
	case score >= 4.0:
		return Medium
	case score > 0:
		return Low
	default:
		return Info
	}
}

// Clamp bounds a severity score to the valid 0.0-10.0 range.
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// AdjustedScore combines a raw severity score (0-10) with an
// exploitation likelihood (0-1) into the score used for report
// ordering:
//
//	adjusted = severity * (0.5 + 0.5*likelihood)
//
// The result is deterministic, monotonic non-decreasing in both
// inputs, and bounded by [severity/2, severity]. Likelihood is
// clamped to [0,1] before use.
func AdjustedScore(score, likelihood float64) float64 {
	score = Clamp(score)
	if likelihood < 0 {
		likelihood = 0
	}
	if likelihood > 1 {
		likelihood = 1
	}
	return score * (0.5 + 0.5*likelihood)
}

// Compare returns:
//
//	-1 if a < b (a is lower severity)
//	 0 if a == b
//	+1 if a > b (a is higher severity)
func Compare(a, b Level) int {
	pa, pb := a.Priority(), b.Priority()
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}

// Max returns the higher severity of two levels.
func Max(a, b Level) Level {
	if a.IsHigherThan(b) {
		return a
	}
	return b
}

// CountBySeverity counts findings by severity level.
type CountBySeverity struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Unknown  int `json:"unknown"`
	Total    int `json:"total"`
}

// Increment increases the count for the given severity.
func (c *CountBySeverity) Increment(level Level) {
	c.Total++
	switch level {
	case Critical:
		c.Critical++
	case High:
		c.High++
	case Medium:
		c.Medium++
	case Low:
		c.Low++
	case Info:
		c.Info++
	default:
		c.Unknown++
	}
}

// HighestSeverity returns the highest severity level that has a non-zero count.
func (c *CountBySeverity) HighestSeverity() Level {
	if c.Critical > 0 {
		return Critical
	}
	if c.High > 0 {
		return High
	}
	if c.Medium > 0 {
		return Medium
	}
	if c.Low > 0 {
		return Low
	}
	if c.Info > 0 {
		return Info
	}
	return Unknown
}
