package reminder

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
)

// Pipeline reads a fresh snapshot for one category and decides what is due.
type Pipeline interface {
	Category() domain.Category
	// Collect evaluates the snapshot at now; today is the calendar date of now in its location.
	Collect(ctx context.Context, now time.Time) ([]domain.DueNotification, error)
}

// EventPipeline emits event milestones.
type EventPipeline struct {
	store     ports.EventReader
	lookahead int
}

var _ Pipeline = (*EventPipeline)(nil)

// NewEventPipeline scans events up to lookahead days ahead; values below 7 fall back to the default.
func NewEventPipeline(store ports.EventReader, lookahead int) *EventPipeline {
	if lookahead < 7 {
		lookahead = DefaultLookaheadDays
	}
	return &EventPipeline{store: store, lookahead: lookahead}
}

func (p *EventPipeline) Category() domain.Category { return domain.CategoryEvent }

func (p *EventPipeline) Collect(ctx context.Context, now time.Time) ([]domain.DueNotification, error) {
	today := civil.DateOf(now)
	events, err := p.store.ListEventsWithExactDateInWindow(ctx, today, p.lookahead)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	due := DueEventMilestones(events, today)
	out := make([]domain.DueNotification, 0, len(due))
	for _, d := range due {
		out = append(out, d)
	}
	return out, nil
}

// SituationPipeline emits support reminders for active situations.
type SituationPipeline struct {
	store ports.SituationReader
}

var _ Pipeline = (*SituationPipeline)(nil)

func NewSituationPipeline(store ports.SituationReader) *SituationPipeline {
	return &SituationPipeline{store: store}
}

func (p *SituationPipeline) Category() domain.Category { return domain.CategorySituation }

func (p *SituationPipeline) Collect(ctx context.Context, now time.Time) ([]domain.DueNotification, error) {
	situations, err := p.store.ListActiveSituations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list situations: %w", err)
	}

	due := DueSituations(situations, civil.DateOf(now), now.Location())
	out := make([]domain.DueNotification, 0, len(due))
	for _, d := range due {
		out = append(out, d)
	}
	return out, nil
}

// StalenessPipeline emits one grouped reminder per priority tier.
type StalenessPipeline struct {
	store      ports.PeopleReader
	thresholds Thresholds
}

var _ Pipeline = (*StalenessPipeline)(nil)

func NewStalenessPipeline(store ports.PeopleReader, thresholds Thresholds) *StalenessPipeline {
	def := DefaultThresholds()
	if thresholds.PriorityDays <= 0 {
		thresholds.PriorityDays = def.PriorityDays
	}
	if thresholds.NormalDays <= 0 {
		thresholds.NormalDays = def.NormalDays
	}
	return &StalenessPipeline{store: store, thresholds: thresholds}
}

func (p *StalenessPipeline) Category() domain.Category { return domain.CategoryLastContact }

func (p *StalenessPipeline) Collect(ctx context.Context, now time.Time) ([]domain.DueNotification, error) {
	today := civil.DateOf(now)
	people, err := p.store.ListPeopleStale(ctx, today, p.thresholds.PriorityDays, p.thresholds.NormalDays)
	if err != nil {
		return nil, fmt.Errorf("list stale people: %w", err)
	}

	groups := StaleGroups(people, today, p.thresholds)
	out := make([]domain.DueNotification, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out, nil
}
