package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
)

var eventColumns = []string{
	"id", "person_id", "event_type", "description", "exact_date", "approximate_date",
	"is_recurring", "sent_1week", "sent_1day", "sent_dayof",
}

var milestoneColumns = map[domain.Milestone]string{
	domain.MilestoneWeek:  "sent_1week",
	domain.MilestoneDay:   "sent_1day",
	domain.MilestoneDayOf: "sent_dayof",
}

// ListEventsWithExactDateInWindow returns events dated within [today, today+days]
// that still have at least one milestone unsent, joined with their person.
func (s *Store) ListEventsWithExactDateInWindow(ctx context.Context, today civil.Date, days int) ([]domain.EventWithPerson, error) {
	cols := append(prefixed("e", eventColumns), prefixed("p", personColumns)...)
	query, args, err := s.sb.Select(cols...).
		From("events e").
		Join("people p ON p.id = e.person_id").
		Where(sq.NotEq{"e.exact_date": nil}).
		Where(sq.GtOrEq{"e.exact_date": today.String()}).
		Where(sq.LtOrEq{"e.exact_date": today.AddDays(days).String()}).
		Where(sq.Or{sq.Eq{"e.sent_1week": false}, sq.Eq{"e.sent_1day": false}, sq.Eq{"e.sent_dayof": false}}).
		OrderBy("e.exact_date", "e.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.EventWithPerson
	for rows.Next() {
		var (
			ev        domain.Event
			eventType string
			exactDate sql.NullString
			person    personRow
		)
		dest := append([]any{
			&ev.ID, &ev.PersonID, &eventType, &ev.Description, &exactDate, &ev.ApproxDate,
			&ev.Recurring, &ev.Sent1Week, &ev.Sent1Day, &ev.SentDayOf,
		}, person.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Type = domain.ParseEventType(eventType)
		if ev.ExactDate, err = decodeDate(exactDate); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		p, err := person.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.EventWithPerson{Event: ev, Person: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// GetEvent loads one event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	query, args, err := s.sb.Select(eventColumns...).From("events").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Event{}, fmt.Errorf("build query: %w", err)
	}

	var (
		ev        domain.Event
		eventType string
		exactDate sql.NullString
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&ev.ID, &ev.PersonID, &eventType, &ev.Description, &exactDate, &ev.ApproxDate,
		&ev.Recurring, &ev.Sent1Week, &ev.Sent1Day, &ev.SentDayOf,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, fmt.Errorf("event %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}

	ev.Type = domain.ParseEventType(eventType)
	if ev.ExactDate, err = decodeDate(exactDate); err != nil {
		return domain.Event{}, fmt.Errorf("event %s: %w", id, err)
	}
	return ev, nil
}

// CreateEvent inserts an event. Re-inserting an existing id is a no-op, so
// re-seeding never resets milestone latches.
func (s *Store) CreateEvent(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if ev.PersonID == "" {
		return domain.Event{}, errors.New("event person is required")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Type == "" {
		ev.Type = domain.EventOther
	}

	b := s.sb.Insert("events").
		Columns(append(eventColumns, "created_at")...).
		Values(ev.ID, ev.PersonID, string(ev.Type), ev.Description, encodeDate(ev.ExactDate), ev.ApproxDate,
			ev.Recurring, ev.Sent1Week, ev.Sent1Day, ev.SentDayOf, encodeTime(s.now())).
		Suffix("ON CONFLICT (id) DO NOTHING")

	if _, err := s.exec(ctx, b); err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return s.GetEvent(ctx, ev.ID)
}

// MarkEventMilestoneSent latches one milestone flag. Latches are never cleared.
func (s *Store) MarkEventMilestoneSent(ctx context.Context, eventID string, milestone domain.Milestone) error {
	col, ok := milestoneColumns[milestone]
	if !ok {
		return fmt.Errorf("unknown milestone %q", milestone)
	}

	n, err := s.exec(ctx, s.sb.Update("events").Set(col, true).Where(sq.Eq{"id": eventID}))
	if err != nil {
		return fmt.Errorf("mark milestone: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", eventID, ports.ErrNotFound)
	}
	return nil
}
