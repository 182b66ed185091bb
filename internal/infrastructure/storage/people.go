package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
)

var personColumns = []string{"id", "name", "aliases", "relationship", "priority_level", "last_contact_date"}

func prefixed(prefix string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + "." + c
	}
	return out
}

// personRow holds the raw columns of a person until they are decoded.
type personRow struct {
	person       domain.Person
	aliases      string
	relationship string
	priority     string
	lastContact  sql.NullString
}

func (r *personRow) dest() []any {
	return []any{&r.person.ID, &r.person.Name, &r.aliases, &r.relationship, &r.priority, &r.lastContact}
}

func (r *personRow) decode() (domain.Person, error) {
	p := r.person
	if r.aliases != "" {
		if err := json.Unmarshal([]byte(r.aliases), &p.Aliases); err != nil {
			return domain.Person{}, fmt.Errorf("decode aliases for person %s: %w", p.ID, err)
		}
	}
	p.Relationship = domain.ParseRelationship(r.relationship)

	prio, err := domain.ParsePriority(r.priority)
	if err != nil {
		return domain.Person{}, fmt.Errorf("person %s: %w", p.ID, err)
	}
	p.Priority = prio

	if p.LastContact, err = decodeDate(r.lastContact); err != nil {
		return domain.Person{}, fmt.Errorf("person %s: %w", p.ID, err)
	}
	return p, nil
}

func scanPerson(row rowScanner) (domain.Person, error) {
	var r personRow
	if err := row.Scan(r.dest()...); err != nil {
		return domain.Person{}, err
	}
	return r.decode()
}

// UpsertPerson inserts or updates a person by id, generating one when empty.
// An older last contact date never overwrites a newer stored one.
func (s *Store) UpsertPerson(ctx context.Context, p domain.Person) (domain.Person, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Person{}, errors.New("person name is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Relationship == "" {
		p.Relationship = domain.RelationshipUnknown
	}
	if p.Priority == "" {
		p.Priority = domain.PriorityNormal
	}
	aliases := p.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	rawAliases, err := json.Marshal(aliases)
	if err != nil {
		return domain.Person{}, fmt.Errorf("encode aliases: %w", err)
	}

	now := encodeTime(s.now())
	b := s.sb.Insert("people").
		Columns("id", "name", "aliases", "relationship", "priority_level", "last_contact_date", "created_at", "updated_at").
		Values(p.ID, p.Name, string(rawAliases), string(p.Relationship), string(p.Priority), encodeDate(p.LastContact), now, now).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			aliases = excluded.aliases,
			relationship = excluded.relationship,
			priority_level = excluded.priority_level,
			last_contact_date = CASE
				WHEN excluded.last_contact_date IS NOT NULL
				 AND (people.last_contact_date IS NULL OR excluded.last_contact_date > people.last_contact_date)
				THEN excluded.last_contact_date
				ELSE people.last_contact_date
			END,
			updated_at = excluded.updated_at`)

	if _, err := s.exec(ctx, b); err != nil {
		return domain.Person{}, fmt.Errorf("upsert person: %w", err)
	}
	return s.GetPerson(ctx, p.ID)
}

// GetPerson loads a person by id.
func (s *Store) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	query, args, err := s.sb.Select(personColumns...).From("people").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Person{}, fmt.Errorf("build query: %w", err)
	}

	p, err := scanPerson(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Person{}, fmt.Errorf("person %s: %w", id, ports.ErrNotFound)
		}
		return domain.Person{}, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// FindPersonByName matches the display name or an alias, ignoring case.
// Case folding happens in Go: SQLite's lower() only folds ASCII.
func (s *Store) FindPersonByName(ctx context.Context, name string) (domain.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Person{}, fmt.Errorf("empty name: %w", ports.ErrNotFound)
	}

	query, args, err := s.sb.Select(personColumns...).
		From("people").
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return domain.Person{}, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Person{}, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return domain.Person{}, fmt.Errorf("scan person: %w", err)
		}
		if p.Matches(name) {
			return p, nil
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Person{}, fmt.Errorf("rows iteration: %w", err)
	}
	return domain.Person{}, fmt.Errorf("person %q: %w", name, ports.ErrNotFound)
}

// RecordContact advances last_contact_date to on unless a later date is already stored.
func (s *Store) RecordContact(ctx context.Context, personID string, on civil.Date) error {
	day := on.String()
	b := s.sb.Update("people").
		Set("last_contact_date", day).
		Set("updated_at", encodeTime(s.now())).
		Where(sq.Eq{"id": personID}).
		Where(sq.Or{sq.Eq{"last_contact_date": nil}, sq.Lt{"last_contact_date": day}})

	n, err := s.exec(ctx, b)
	if err != nil {
		return fmt.Errorf("record contact: %w", err)
	}
	if n == 0 {
		// Either the person is missing or the stored date is already newer.
		if _, err := s.GetPerson(ctx, personID); err != nil {
			return err
		}
	}
	return nil
}

// ListPeopleStale returns people never contacted or last contacted before their tier cutoff.
func (s *Store) ListPeopleStale(ctx context.Context, today civil.Date, priorityDays, normalDays int) ([]domain.Person, error) {
	highCutoff := today.AddDays(-priorityDays).String()
	normalCutoff := today.AddDays(-normalDays).String()

	query, args, err := s.sb.Select(personColumns...).
		From("people").
		Where(sq.Or{
			sq.Eq{"last_contact_date": nil},
			sq.And{sq.Eq{"priority_level": string(domain.PriorityHigh)}, sq.Lt{"last_contact_date": highCutoff}},
			sq.And{sq.NotEq{"priority_level": string(domain.PriorityHigh)}, sq.Lt{"last_contact_date": normalCutoff}},
		}).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stale people: %w", err)
	}
	defer rows.Close()

	var people []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return people, nil
}
