package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
)

var situationColumns = []string{
	"id", "person_id", "situation_type", "description", "severity", "status", "started_at", "last_reminder_sent",
}

type situationRow struct {
	situation     domain.Situation
	situationType string
	severity      string
	status        string
	startedAt     string
	lastReminder  sql.NullString
}

func (r *situationRow) dest() []any {
	return []any{
		&r.situation.ID, &r.situation.PersonID, &r.situationType, &r.situation.Description,
		&r.severity, &r.status, &r.startedAt, &r.lastReminder,
	}
}

func (r *situationRow) decode() (domain.Situation, error) {
	sit := r.situation
	sit.Type = domain.ParseSituationType(r.situationType)

	sev, err := domain.ParseSeverity(r.severity)
	if err != nil {
		return domain.Situation{}, fmt.Errorf("situation %s: %w", sit.ID, err)
	}
	sit.Severity = sev

	switch domain.SituationStatus(r.status) {
	case domain.StatusActive, domain.StatusResolved:
		sit.Status = domain.SituationStatus(r.status)
	default:
		return domain.Situation{}, fmt.Errorf("situation %s: unknown status %q", sit.ID, r.status)
	}

	if sit.StartedAt, err = civil.ParseDate(r.startedAt); err != nil {
		return domain.Situation{}, fmt.Errorf("situation %s: parse start date: %w", sit.ID, err)
	}
	if sit.LastReminder, err = decodeTime(r.lastReminder); err != nil {
		return domain.Situation{}, fmt.Errorf("situation %s: %w", sit.ID, err)
	}
	return sit, nil
}

// ListActiveSituations returns every active situation joined with its person.
func (s *Store) ListActiveSituations(ctx context.Context) ([]domain.SituationWithPerson, error) {
	cols := append(prefixed("s", situationColumns), prefixed("p", personColumns)...)
	query, args, err := s.sb.Select(cols...).
		From("situations s").
		Join("people p ON p.id = s.person_id").
		Where(sq.Eq{"s.status": string(domain.StatusActive)}).
		OrderBy("s.started_at", "s.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query situations: %w", err)
	}
	defer rows.Close()

	var out []domain.SituationWithPerson
	for rows.Next() {
		var (
			sr situationRow
			pr personRow
		)
		if err := rows.Scan(append(sr.dest(), pr.dest()...)...); err != nil {
			return nil, fmt.Errorf("scan situation: %w", err)
		}
		sit, err := sr.decode()
		if err != nil {
			return nil, err
		}
		p, err := pr.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SituationWithPerson{Situation: sit, Person: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// GetSituation loads one situation by id.
func (s *Store) GetSituation(ctx context.Context, id string) (domain.Situation, error) {
	query, args, err := s.sb.Select(situationColumns...).From("situations").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Situation{}, fmt.Errorf("build query: %w", err)
	}

	var sr situationRow
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(sr.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Situation{}, fmt.Errorf("situation %s: %w", id, ports.ErrNotFound)
		}
		return domain.Situation{}, fmt.Errorf("get situation: %w", err)
	}
	return sr.decode()
}

// CreateSituation inserts a situation; an existing id is left untouched.
func (s *Store) CreateSituation(ctx context.Context, sit domain.Situation) (domain.Situation, error) {
	if sit.PersonID == "" {
		return domain.Situation{}, errors.New("situation person is required")
	}
	if sit.StartedAt.IsZero() {
		return domain.Situation{}, errors.New("situation start date is required")
	}
	if sit.ID == "" {
		sit.ID = uuid.NewString()
	}
	if sit.Type == "" {
		sit.Type = domain.SituationOther
	}
	if sit.Severity == "" {
		sit.Severity = domain.SeverityMedium
	}
	if sit.Status == "" {
		sit.Status = domain.StatusActive
	}

	var lastReminder any
	if sit.LastReminder != nil {
		lastReminder = encodeTime(*sit.LastReminder)
	}

	b := s.sb.Insert("situations").
		Columns(append(situationColumns, "created_at")...).
		Values(sit.ID, sit.PersonID, string(sit.Type), sit.Description, string(sit.Severity), string(sit.Status),
			sit.StartedAt.String(), lastReminder, encodeTime(s.now())).
		Suffix("ON CONFLICT (id) DO NOTHING")

	if _, err := s.exec(ctx, b); err != nil {
		return domain.Situation{}, fmt.Errorf("insert situation: %w", err)
	}
	return s.GetSituation(ctx, sit.ID)
}

// MarkSituationReminderSent records when the latest support reminder went out.
func (s *Store) MarkSituationReminderSent(ctx context.Context, situationID string, at time.Time) error {
	n, err := s.exec(ctx, s.sb.Update("situations").
		Set("last_reminder_sent", encodeTime(at)).
		Where(sq.Eq{"id": situationID}))
	if err != nil {
		return fmt.Errorf("mark situation reminded: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("situation %s: %w", situationID, ports.ErrNotFound)
	}
	return nil
}

// ResolveSituation takes a situation out of evaluation for good.
func (s *Store) ResolveSituation(ctx context.Context, situationID string) error {
	n, err := s.exec(ctx, s.sb.Update("situations").
		Set("status", string(domain.StatusResolved)).
		Where(sq.Eq{"id": situationID}))
	if err != nil {
		return fmt.Errorf("resolve situation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("situation %s: %w", situationID, ports.ErrNotFound)
	}
	return nil
}
