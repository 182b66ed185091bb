package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
)

// IngestSummary describes what one piece of text added to the store.
type IngestSummary struct {
	People     []string `json:"people"`
	Events     int      `json:"events"`
	Situations int      `json:"situations"`
}

// Ingestor applies extraction results to the entity store.
type Ingestor struct {
	extractor ports.Extractor
	store     ports.EntityStore
	loc       *time.Location
	logger    *slog.Logger
}

// NewIngestor builds an ingestor; dates are resolved in loc.
func NewIngestor(extractor ports.Extractor, store ports.EntityStore, loc *time.Location, logger *slog.Logger) *Ingestor {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{extractor: extractor, store: store, loc: loc, logger: logger}
}

// Ingest extracts people, events and situations from text recorded at the given time.
// Every mentioned person gets a contact recorded on that day.
func (i *Ingestor) Ingest(ctx context.Context, text string, at time.Time) (IngestSummary, error) {
	var summary IngestSummary
	if i.extractor == nil || i.store == nil {
		return summary, errors.New("ingestor is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return summary, errors.New("text is empty")
	}

	result, err := i.extractor.Extract(ctx, text)
	if err != nil {
		return summary, fmt.Errorf("extract: %w", err)
	}

	day := civil.DateOf(at.In(i.loc))
	people := map[string]domain.Person{}

	resolve := func(name, relationship string) (domain.Person, error) {
		key := strings.ToLower(strings.TrimSpace(name))
		if p, ok := people[key]; ok {
			return p, nil
		}
		p, err := i.resolvePerson(ctx, name, relationship)
		if err != nil {
			return domain.Person{}, err
		}
		if err := i.store.RecordContact(ctx, p.ID, day); err != nil {
			return domain.Person{}, fmt.Errorf("record contact for %s: %w", p.Name, err)
		}
		people[key] = p
		summary.People = append(summary.People, p.Name)
		return p, nil
	}

	for _, mention := range result.People {
		if _, err := resolve(mention.Name, mention.Relationship); err != nil {
			return summary, err
		}
	}

	for _, ev := range result.Events {
		p, err := resolve(ev.PersonName, "")
		if err != nil {
			return summary, err
		}
		event := domain.Event{
			PersonID:    p.ID,
			Type:        domain.ParseEventType(ev.Type),
			Description: strings.TrimSpace(ev.Description),
			ApproxDate:  strings.TrimSpace(ev.ApproxDate),
			Recurring:   ev.Recurring,
		}
		if ev.Date != "" {
			if d, err := civil.ParseDate(strings.TrimSpace(ev.Date)); err == nil {
				event.ExactDate = &d
			} else {
				i.logger.Debug("ignore unparsable event date", "date", ev.Date, "error", err)
				if event.ApproxDate == "" {
					event.ApproxDate = ev.Date
				}
			}
		}
		if _, err := i.store.CreateEvent(ctx, event); err != nil {
			return summary, fmt.Errorf("create event for %s: %w", p.Name, err)
		}
		summary.Events++
	}

	for _, sit := range result.Situations {
		p, err := resolve(sit.PersonName, "")
		if err != nil {
			return summary, err
		}
		severity, err := domain.ParseSeverity(sit.Severity)
		if err != nil {
			severity = domain.SeverityMedium
		}
		situation := domain.Situation{
			PersonID:    p.ID,
			Type:        domain.ParseSituationType(sit.Type),
			Description: strings.TrimSpace(sit.Description),
			Severity:    severity,
			Status:      domain.StatusActive,
			StartedAt:   day,
		}
		if _, err := i.store.CreateSituation(ctx, situation); err != nil {
			return summary, fmt.Errorf("create situation for %s: %w", p.Name, err)
		}
		summary.Situations++
	}

	i.logger.Info("ingested text", "people", len(summary.People), "events", summary.Events, "situations", summary.Situations)
	return summary, nil
}

func (i *Ingestor) resolvePerson(ctx context.Context, name, relationship string) (domain.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Person{}, errors.New("extracted entity without person name")
	}

	p, err := i.store.FindPersonByName(ctx, name)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return domain.Person{}, fmt.Errorf("find person %s: %w", name, err)
	}

	created, err := i.store.UpsertPerson(ctx, domain.Person{
		Name:         name,
		Relationship: domain.ParseRelationship(relationship),
		Priority:     domain.PriorityNormal,
	})
	if err != nil {
		return domain.Person{}, fmt.Errorf("create person %s: %w", name, err)
	}
	i.logger.Debug("created person from mention", "name", name, "id", created.ID)
	return created, nil
}
