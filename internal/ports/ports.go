package ports

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"FriendReminder/internal/domain"
)

// ErrNotFound is returned by stores when the addressed entity does not exist.
var ErrNotFound = errors.New("not found")

// EventReader lists events that may have a milestone due.
type EventReader interface {
	// ListEventsWithExactDateInWindow returns events whose exact date lies in [today, today+days].
	ListEventsWithExactDateInWindow(ctx context.Context, today civil.Date, days int) ([]domain.EventWithPerson, error)
}

// SituationReader lists situations still under evaluation.
type SituationReader interface {
	ListActiveSituations(ctx context.Context) ([]domain.SituationWithPerson, error)
}

// PeopleReader lists contacts whose last interaction is older than their tier threshold.
type PeopleReader interface {
	ListPeopleStale(ctx context.Context, today civil.Date, priorityDays, normalDays int) ([]domain.Person, error)
}

// ReminderWriter commits the state transitions that follow a successful send.
type ReminderWriter interface {
	MarkEventMilestoneSent(ctx context.Context, eventID string, milestone domain.Milestone) error
	MarkSituationReminderSent(ctx context.Context, situationID string, at time.Time) error
	AppendReminderLog(ctx context.Context, entry domain.ReminderLog) error
}

// ReminderStore is everything a tick needs from storage.
type ReminderStore interface {
	EventReader
	SituationReader
	PeopleReader
	ReminderWriter
}

// EntityStore manages people, events and situations outside the tick.
type EntityStore interface {
	UpsertPerson(ctx context.Context, person domain.Person) (domain.Person, error)
	GetPerson(ctx context.Context, id string) (domain.Person, error)
	FindPersonByName(ctx context.Context, name string) (domain.Person, error)
	// RecordContact advances last_contact_date; an older date leaves it unchanged.
	RecordContact(ctx context.Context, personID string, on civil.Date) error
	CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error)
	CreateSituation(ctx context.Context, situation domain.Situation) (domain.Situation, error)
	ResolveSituation(ctx context.Context, situationID string) error
	ListReminderLog(ctx context.Context, limit int) ([]domain.ReminderLog, error)
}

// Notifier delivers a rendered message. A nil error means the channel accepted it.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Extractor turns free text into people, events and situations.
type Extractor interface {
	Extract(ctx context.Context, text string) (domain.ExtractionResult, error)
}

// TickGuard provides mutual exclusion between ticks.
type TickGuard interface {
	// TryAcquire returns false when another tick holds the guard.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler controls when ticks execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
