package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// SituationType enumerates ongoing contexts where support helps.
type SituationType string

const (
	SituationBreakup         SituationType = "breakup"
	SituationSickFamily      SituationType = "sick_family"
	SituationWeddingPlanning SituationType = "wedding_planning"
	SituationNewJob          SituationType = "new_job"
	SituationToughTime       SituationType = "tough_time"
	SituationOther           SituationType = "other"
)

// SituationTypes lists every situation type.
var SituationTypes = []SituationType{
	SituationBreakup, SituationSickFamily, SituationWeddingPlanning,
	SituationNewJob, SituationToughTime, SituationOther,
}

// ParseSituationType maps text onto a situation type, defaulting to other.
func ParseSituationType(s string) SituationType {
	switch SituationType(strings.ToLower(strings.TrimSpace(s))) {
	case SituationBreakup:
		return SituationBreakup
	case SituationSickFamily:
		return SituationSickFamily
	case SituationWeddingPlanning:
		return SituationWeddingPlanning
	case SituationNewJob:
		return SituationNewJob
	case SituationToughTime:
		return SituationToughTime
	default:
		return SituationOther
	}
}

// Severity controls how often a situation is surfaced.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Severities lists every severity, most urgent first.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity validates a severity, treating empty as medium.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, nil
	case "", "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Rank orders severities: high sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// SituationStatus is active until an external actor resolves it.
type SituationStatus string

const (
	StatusActive   SituationStatus = "active"
	StatusResolved SituationStatus = "resolved"
)

// Situation is an ongoing relationship-support context.
type Situation struct {
	ID           string
	PersonID     string
	Type         SituationType
	Description  string
	Severity     Severity
	Status       SituationStatus
	StartedAt    civil.Date
	LastReminder *time.Time
}

// SituationWithPerson joins a situation with the person it belongs to.
type SituationWithPerson struct {
	Situation Situation
	Person    Person
}
