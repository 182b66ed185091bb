package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Category identifies one of the independent reminder pipelines.
type Category string

const (
	CategoryEvent       Category = "event"
	CategorySituation   Category = "situation"
	CategoryLastContact Category = "last_contact"
)

// Categories lists every pipeline category.
var Categories = []Category{CategoryEvent, CategorySituation, CategoryLastContact}

// ParseCategory validates a category identifier.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown reminder category %q", s)
}

// ReminderLog is the append-only audit row written per dispatched notification.
type ReminderLog struct {
	ID          string
	Category    Category
	PersonID    string
	EventID     string
	SituationID string
	Message     string
	SentAt      time.Time
}

// DueNotification is one notification an evaluator decided should go out this tick.
// The set of implementations is closed: DueEvent, DueSituation and DueStaleGroup.
type DueNotification interface {
	Category() Category
	// Key identifies the notification within a tick, e.g. "event:<id>:1day".
	Key() string
	isDue()
}

// DueEvent fires one milestone of one event.
type DueEvent struct {
	Item      EventWithPerson
	Milestone Milestone
	DaysUntil int
}

func (DueEvent) Category() Category { return CategoryEvent }
func (d DueEvent) Key() string {
	return fmt.Sprintf("event:%s:%s", d.Item.Event.ID, d.Milestone)
}
func (DueEvent) isDue() {}

// DueSituation fires a support reminder for an active situation.
type DueSituation struct {
	Item        SituationWithPerson
	ElapsedDays int
	Interval    int
}

func (DueSituation) Category() Category { return CategorySituation }
func (d DueSituation) Key() string      { return "situation:" + d.Item.Situation.ID }
func (DueSituation) isDue()             {}

// DueStaleGroup lists every stale contact of one priority tier.
type DueStaleGroup struct {
	Tier      Priority
	Threshold int
	People    []Person
	AsOf      civil.Date
}

func (DueStaleGroup) Category() Category { return CategoryLastContact }
func (d DueStaleGroup) Key() string      { return "last_contact:" + string(d.Tier) }
func (DueStaleGroup) isDue()             {}

// DispatchStatus is the outcome of one notification within a tick.
type DispatchStatus string

const (
	DispatchSent         DispatchStatus = "sent"
	DispatchSendFailed   DispatchStatus = "send_failed"
	DispatchCommitFailed DispatchStatus = "commit_failed"
)

// DispatchResult records what happened to one due notification.
type DispatchResult struct {
	Key      string         `json:"key"`
	Category Category       `json:"category"`
	Status   DispatchStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
}

// CategorySummary aggregates one pipeline's outcome within a tick.
type CategorySummary struct {
	Due          int    `json:"due"`
	Sent         int    `json:"sent"`
	SendFailed   int    `json:"send_failed"`
	CommitFailed int    `json:"commit_failed"`
	CollectError string `json:"collect_error,omitempty"`
}

// TickReport is returned by every tick so operators can derive metrics without parsing logs.
type TickReport struct {
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Today      civil.Date                   `json:"today"`
	Skipped    bool                         `json:"skipped"`
	// Preview marks a tick dated after the real current day; its sends were not committed.
	Preview    bool                         `json:"preview"`
	Categories map[Category]CategorySummary `json:"categories"`
	Results    []DispatchResult             `json:"results"`
}

// Failed counts notifications that did not complete.
func (r TickReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status != DispatchSent {
			n++
		}
	}
	return n
}
