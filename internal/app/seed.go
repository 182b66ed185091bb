package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
)

// seedNamespace derives stable ids for seeded events and situations without an explicit id.
var seedNamespace = uuid.MustParse("6f1f8c2e-4f0e-4f0a-9d6b-6a4b1c7e2d10")

// SeedFile is the YAML layout accepted by the seed command.
type SeedFile struct {
	People []SeedPerson `yaml:"people"`
}

// SeedPerson is one contact with its events and situations.
type SeedPerson struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Aliases      []string        `yaml:"aliases"`
	Relationship string          `yaml:"relationship"`
	Priority     string          `yaml:"priority"`
	LastContact  string          `yaml:"lastContact"`
	Events       []SeedEvent     `yaml:"events"`
	Situations   []SeedSituation `yaml:"situations"`
}

// SeedEvent is a dated or approximate life event.
type SeedEvent struct {
	ID              string `yaml:"id"`
	Type            string `yaml:"type"`
	Description     string `yaml:"description"`
	Date            string `yaml:"date"`
	ApproximateDate string `yaml:"approximateDate"`
	Recurring       bool   `yaml:"recurring"`
}

// SeedSituation is an ongoing support context.
type SeedSituation struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
	StartedAt   string `yaml:"startedAt"`
	Resolved    bool   `yaml:"resolved"`
}

// SeedSummary counts what a seed run touched.
type SeedSummary struct {
	People     int
	Events     int
	Situations int
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(raw []byte) (SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed: %w", err)
	}
	for i, p := range f.People {
		if strings.TrimSpace(p.Name) == "" {
			return SeedFile{}, fmt.Errorf("seed person #%d: name is required", i+1)
		}
		if _, err := domain.ParsePriority(p.Priority); err != nil {
			return SeedFile{}, fmt.Errorf("seed person %s: %w", p.Name, err)
		}
		for _, s := range p.Situations {
			if _, err := domain.ParseSeverity(s.Severity); err != nil {
				return SeedFile{}, fmt.Errorf("seed person %s: %w", p.Name, err)
			}
			if s.StartedAt == "" {
				return SeedFile{}, fmt.Errorf("seed person %s: situation startedAt is required", p.Name)
			}
		}
	}
	return f, nil
}

// ApplySeed upserts every person and creates their events and situations.
// Applying the same file twice changes nothing; milestone latches survive re-seeding.
func ApplySeed(ctx context.Context, store ports.EntityStore, f SeedFile) (SeedSummary, error) {
	var summary SeedSummary
	for _, sp := range f.People {
		person, err := seedPerson(ctx, store, sp)
		if err != nil {
			return summary, err
		}
		summary.People++

		for _, se := range sp.Events {
			ev, err := seedEvent(person.ID, se)
			if err != nil {
				return summary, fmt.Errorf("seed %s: %w", sp.Name, err)
			}
			if _, err := store.CreateEvent(ctx, ev); err != nil {
				return summary, fmt.Errorf("seed %s: %w", sp.Name, err)
			}
			summary.Events++
		}

		for _, ss := range sp.Situations {
			sit, err := seedSituation(person.ID, ss)
			if err != nil {
				return summary, fmt.Errorf("seed %s: %w", sp.Name, err)
			}
			if _, err := store.CreateSituation(ctx, sit); err != nil {
				return summary, fmt.Errorf("seed %s: %w", sp.Name, err)
			}
			if ss.Resolved {
				if err := store.ResolveSituation(ctx, sit.ID); err != nil {
					return summary, fmt.Errorf("seed %s: %w", sp.Name, err)
				}
			}
			summary.Situations++
		}
	}
	return summary, nil
}

func seedPerson(ctx context.Context, store ports.EntityStore, sp SeedPerson) (domain.Person, error) {
	priority, err := domain.ParsePriority(sp.Priority)
	if err != nil {
		return domain.Person{}, fmt.Errorf("seed %s: %w", sp.Name, err)
	}

	id := sp.ID
	if id == "" {
		existing, err := store.FindPersonByName(ctx, sp.Name)
		switch {
		case err == nil:
			id = existing.ID
		case !errors.Is(err, ports.ErrNotFound):
			return domain.Person{}, fmt.Errorf("seed %s: %w", sp.Name, err)
		}
	}

	p := domain.Person{
		ID:           id,
		Name:         strings.TrimSpace(sp.Name),
		Aliases:      sp.Aliases,
		Relationship: domain.ParseRelationship(sp.Relationship),
		Priority:     priority,
	}
	if sp.LastContact != "" {
		d, err := civil.ParseDate(sp.LastContact)
		if err != nil {
			return domain.Person{}, fmt.Errorf("seed %s: last contact: %w", sp.Name, err)
		}
		p.LastContact = &d
	}

	saved, err := store.UpsertPerson(ctx, p)
	if err != nil {
		return domain.Person{}, fmt.Errorf("seed %s: %w", sp.Name, err)
	}
	return saved, nil
}

func seedEvent(personID string, se SeedEvent) (domain.Event, error) {
	ev := domain.Event{
		ID:          se.ID,
		PersonID:    personID,
		Type:        domain.ParseEventType(se.Type),
		Description: se.Description,
		ApproxDate:  se.ApproximateDate,
		Recurring:   se.Recurring,
	}
	if se.Date != "" {
		d, err := civil.ParseDate(se.Date)
		if err != nil {
			return domain.Event{}, fmt.Errorf("event date: %w", err)
		}
		ev.ExactDate = &d
	}
	if ev.ID == "" {
		ev.ID = stableID("event", personID, string(ev.Type), se.Date, se.ApproximateDate, se.Description)
	}
	return ev, nil
}

func seedSituation(personID string, ss SeedSituation) (domain.Situation, error) {
	started, err := civil.ParseDate(ss.StartedAt)
	if err != nil {
		return domain.Situation{}, fmt.Errorf("situation start: %w", err)
	}
	severity, err := domain.ParseSeverity(ss.Severity)
	if err != nil {
		return domain.Situation{}, err
	}
	sit := domain.Situation{
		ID:          ss.ID,
		PersonID:    personID,
		Type:        domain.ParseSituationType(ss.Type),
		Description: ss.Description,
		Severity:    severity,
		Status:      domain.StatusActive,
		StartedAt:   started,
	}
	if sit.ID == "" {
		sit.ID = stableID("situation", personID, string(sit.Type), ss.StartedAt, ss.Description)
	}
	return sit, nil
}

func stableID(parts ...string) string {
	return uuid.NewSHA1(seedNamespace, []byte(strings.Join(parts, "\x1f"))).String()
}
