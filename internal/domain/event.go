package domain

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// EventType enumerates the occasions worth a reminder.
type EventType string

const (
	EventBirthday  EventType = "birthday"
	EventWedding   EventType = "wedding"
	EventTrip      EventType = "trip"
	EventInterview EventType = "interview"
	EventSurgery   EventType = "surgery"
	EventOther     EventType = "other"
)

// EventTypes lists every event type.
var EventTypes = []EventType{EventBirthday, EventWedding, EventTrip, EventInterview, EventSurgery, EventOther}

// ParseEventType maps text onto an event type, defaulting to other.
func ParseEventType(s string) EventType {
	switch EventType(strings.ToLower(strings.TrimSpace(s))) {
	case EventBirthday:
		return EventBirthday
	case EventWedding:
		return EventWedding
	case EventTrip:
		return EventTrip
	case EventInterview:
		return EventInterview
	case EventSurgery:
		return EventSurgery
	default:
		return EventOther
	}
}

// Milestone is a fixed lead time before an event date.
type Milestone string

const (
	MilestoneWeek  Milestone = "1week"
	MilestoneDay   Milestone = "1day"
	MilestoneDayOf Milestone = "dayof"
)

// Milestones lists every milestone in firing order.
var Milestones = []Milestone{MilestoneWeek, MilestoneDay, MilestoneDayOf}

// ParseMilestone validates a milestone identifier.
func ParseMilestone(s string) (Milestone, error) {
	for _, m := range Milestones {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown milestone %q", s)
}

// LeadDays is the exact day count before the event at which the milestone fires.
// Unknown milestones return -1, which no day count matches.
func (m Milestone) LeadDays() int {
	switch m {
	case MilestoneWeek:
		return 7
	case MilestoneDay:
		return 1
	case MilestoneDayOf:
		return 0
	}
	return -1
}

// Label is the human readable lead time.
func (m Milestone) Label() string {
	switch m {
	case MilestoneWeek:
		return "1 week"
	case MilestoneDay:
		return "1 day"
	case MilestoneDayOf:
		return "today"
	}
	return string(m)
}

// Event is a dated occurrence in someone's life.
type Event struct {
	ID          string
	PersonID    string
	Type        EventType
	Description string
	// ExactDate is nil when only ApproxDate is known; such events never fire.
	ExactDate  *civil.Date
	ApproxDate string
	Recurring  bool
	Sent1Week  bool
	Sent1Day   bool
	SentDayOf  bool
}

// Sent reports the latch for the given milestone.
func (e Event) Sent(m Milestone) bool {
	switch m {
	case MilestoneWeek:
		return e.Sent1Week
	case MilestoneDay:
		return e.Sent1Day
	case MilestoneDayOf:
		return e.SentDayOf
	}
	// Unknown milestones never fire.
	return true
}

// MarkSent latches the given milestone. Latches never reset.
func (e *Event) MarkSent(m Milestone) {
	switch m {
	case MilestoneWeek:
		e.Sent1Week = true
	case MilestoneDay:
		e.Sent1Day = true
	case MilestoneDayOf:
		e.SentDayOf = true
	}
}

// EventWithPerson joins an event with the person it belongs to.
type EventWithPerson struct {
	Event  Event
	Person Person
}
