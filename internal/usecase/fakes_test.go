package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
)

type memStore struct {
	mu         sync.Mutex
	events     []domain.EventWithPerson
	situations []domain.SituationWithPerson
	people     []domain.Person
	logs       []domain.ReminderLog

	failAppend  bool
	listEvtErr  error
	contacts    map[string]civil.Date
	createdEvts []domain.Event
	createdSits []domain.Situation
}

var _ ports.ReminderStore = (*memStore)(nil)
var _ ports.EntityStore = (*memStore)(nil)

func (m *memStore) ListEventsWithExactDateInWindow(_ context.Context, today civil.Date, days int) ([]domain.EventWithPerson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listEvtErr != nil {
		return nil, m.listEvtErr
	}
	var out []domain.EventWithPerson
	for _, e := range m.events {
		d := e.Event.ExactDate
		if d == nil || d.Before(today) || d.After(today.AddDays(days)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) ListActiveSituations(context.Context) ([]domain.SituationWithPerson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SituationWithPerson
	for _, s := range m.situations {
		if s.Situation.Status == domain.StatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListPeopleStale(context.Context, civil.Date, int, int) ([]domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Person(nil), m.people...), nil
}

func (m *memStore) MarkEventMilestoneSent(_ context.Context, eventID string, milestone domain.Milestone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].Event.ID == eventID {
			m.events[i].Event.MarkSent(milestone)
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *memStore) MarkSituationReminderSent(_ context.Context, situationID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.situations {
		if m.situations[i].Situation.ID == situationID {
			m.situations[i].Situation.LastReminder = &at
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *memStore) AppendReminderLog(_ context.Context, entry domain.ReminderLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errors.New("disk full")
	}
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) UpsertPerson(_ context.Context, p domain.Person) (domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = "p-" + strings.ToLower(p.Name)
	}
	m.people = append(m.people, p)
	return p, nil
}

func (m *memStore) GetPerson(_ context.Context, id string) (domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.people {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Person{}, ports.ErrNotFound
}

func (m *memStore) FindPersonByName(_ context.Context, name string) (domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.people {
		if p.Matches(name) {
			return p, nil
		}
	}
	return domain.Person{}, ports.ErrNotFound
}

func (m *memStore) RecordContact(_ context.Context, personID string, on civil.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.contacts == nil {
		m.contacts = map[string]civil.Date{}
	}
	if prev, ok := m.contacts[personID]; !ok || prev.Before(on) {
		m.contacts[personID] = on
	}
	return nil
}

func (m *memStore) CreateEvent(_ context.Context, e domain.Event) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdEvts = append(m.createdEvts, e)
	return e, nil
}

func (m *memStore) CreateSituation(_ context.Context, s domain.Situation) (domain.Situation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdSits = append(m.createdSits, s)
	return s, nil
}

func (m *memStore) ResolveSituation(context.Context, string) error { return nil }

func (m *memStore) ListReminderLog(context.Context, int) ([]domain.ReminderLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ReminderLog(nil), m.logs...), nil
}

func (m *memStore) logCount(c domain.Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.logs {
		if l.Category == c {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	// failIf rejects matching messages.
	failIf func(string) bool
	// block, when set, makes Notify wait on it and ignore the context.
	block chan struct{}
	// entered is closed the first time Notify is called.
	entered     chan struct{}
	enteredOnce sync.Once
}

func (f *fakeNotifier) Notify(_ context.Context, msg string) error {
	if f.entered != nil {
		f.enteredOnce.Do(func() { close(f.entered) })
	}
	if f.block != nil {
		<-f.block
	}
	if f.failIf != nil && f.failIf(msg) {
		return errors.New("delivery rejected")
	}
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}
