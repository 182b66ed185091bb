package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"FriendReminder/internal/domain"
)

const defaultLogLimit = 50

// AppendReminderLog writes one audit row. Rows are never updated or deleted.
func (s *Store) AppendReminderLog(ctx context.Context, entry domain.ReminderLog) error {
	if entry.PersonID == "" {
		return errors.New("reminder log person is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = s.now()
	}

	b := s.sb.Insert("reminder_log").
		Columns("id", "category", "person_id", "event_id", "situation_id", "message", "sent_at").
		Values(entry.ID, string(entry.Category), entry.PersonID, nullable(entry.EventID), nullable(entry.SituationID),
			entry.Message, encodeTime(entry.SentAt))

	if _, err := s.exec(ctx, b); err != nil {
		return fmt.Errorf("insert reminder log: %w", err)
	}
	return nil
}

// ListReminderLog returns the most recent rows first.
func (s *Store) ListReminderLog(ctx context.Context, limit int) ([]domain.ReminderLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	query, args, err := s.sb.Select("id", "category", "person_id", "event_id", "situation_id", "message", "sent_at").
		From("reminder_log").
		OrderBy("sent_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminder log: %w", err)
	}
	defer rows.Close()

	var out []domain.ReminderLog
	for rows.Next() {
		var (
			entry       domain.ReminderLog
			category    string
			eventID     sql.NullString
			situationID sql.NullString
			sentAt      sql.NullString
		)
		if err := rows.Scan(&entry.ID, &category, &entry.PersonID, &eventID, &situationID, &entry.Message, &sentAt); err != nil {
			return nil, fmt.Errorf("scan reminder log: %w", err)
		}
		if entry.Category, err = domain.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("reminder log %s: %w", entry.ID, err)
		}
		entry.EventID, entry.SituationID = eventID.String, situationID.String
		ts, err := decodeTime(sentAt)
		if err != nil {
			return nil, fmt.Errorf("reminder log %s: %w", entry.ID, err)
		}
		if ts != nil {
			entry.SentAt = *ts
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
