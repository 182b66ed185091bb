package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/reminder"
)

var (
	today  = civil.Date{Year: 2026, Month: time.October, Day: 14}
	tickAt = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)
)

func datePtr(d civil.Date) *civil.Date { return &d }

func sam() domain.Person {
	return domain.Person{ID: "p-sam", Name: "Sam", Relationship: domain.RelationshipFriend, Priority: domain.PriorityHigh}
}

func eventAt(id string, days int) domain.EventWithPerson {
	return domain.EventWithPerson{
		Event:  domain.Event{ID: id, PersonID: "p-sam", Type: domain.EventBirthday, Description: id, ExactDate: datePtr(today.AddDays(days))},
		Person: sam(),
	}
}

func newTestRunner(store *memStore, notifier *fakeNotifier, categories ...domain.Category) *Runner {
	reg := reminder.NewRegistry()
	reg.Register(reminder.NewEventPipeline(store, 14))
	reg.Register(reminder.NewSituationPipeline(store))
	reg.Register(reminder.NewStalenessPipeline(store, reminder.DefaultThresholds()))

	return NewRunner(RunnerDeps{
		Registry:        reg,
		Categories:      categories,
		Store:           store,
		Notifier:        notifier,
		Location:        time.UTC,
		DispatchTimeout: time.Second,
		Clock:           func() time.Time { return tickAt },
	})
}

func TestTickEventEndToEnd(t *testing.T) {
	t.Parallel()

	store := &memStore{events: []domain.EventWithPerson{eventAt("ev-1", 1)}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, notifier, domain.CategoryEvent)

	report, err := runner.Tick(context.Background(), tickAt)
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Status != domain.DispatchSent {
		t.Fatalf("unexpected results: %+v", report.Results)
	}
	if report.Results[0].Key != "event:ev-1:1day" {
		t.Fatalf("unexpected key: %s", report.Results[0].Key)
	}

	msgs := notifier.sent()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "(1 day)") {
		t.Fatalf("unexpected messages: %q", msgs)
	}
	if !store.events[0].Event.Sent1Day {
		t.Fatal("expected sent_1day to be latched")
	}
	if store.events[0].Event.Sent1Week || store.events[0].Event.SentDayOf {
		t.Fatal("expected other milestones untouched")
	}
	if n := store.logCount(domain.CategoryEvent); n != 1 {
		t.Fatalf("expected 1 event log row, got %d", n)
	}
	log := store.logs[0]
	if log.PersonID != "p-sam" || log.EventID != "ev-1" || log.SituationID != "" || log.ID == "" || !log.SentAt.Equal(tickAt) {
		t.Fatalf("unexpected log row: %+v", log)
	}

	again, err := runner.Tick(context.Background(), tickAt)
	if err != nil {
		t.Fatalf("second Tick returned error: %v", err)
	}
	if len(again.Results) != 0 {
		t.Fatalf("expected latched milestone to be skipped, got %+v", again.Results)
	}

	last, ok := runner.LastReport()
	if !ok || last.Today != today {
		t.Fatalf("unexpected last report: %+v", last)
	}
}

func TestFutureTickSendsWithoutCommitting(t *testing.T) {
	t.Parallel()

	store := &memStore{
		events: []domain.EventWithPerson{eventAt("ev-1", 8)},
		situations: []domain.SituationWithPerson{{
			Situation: domain.Situation{ID: "s-1", PersonID: "p-sam", Type: domain.SituationBreakup, Severity: domain.SeverityHigh, Status: domain.StatusActive, StartedAt: today.AddDays(-3)},
			Person:    sam(),
		}},
	}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, notifier, domain.CategoryEvent, domain.CategorySituation)

	report, err := runner.Tick(context.Background(), tickAt.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if !report.Preview {
		t.Fatal("expected a tick dated tomorrow to be a preview")
	}
	if len(report.Results) != 2 || report.Failed() != 0 || len(notifier.sent()) != 2 {
		t.Fatalf("unexpected preview results: %+v", report.Results)
	}
	if store.events[0].Event.Sent1Week || store.situations[0].Situation.LastReminder != nil || len(store.logs) != 0 {
		t.Fatal("preview tick must not commit state")
	}

	// The real tick today still reminds about the situation and latches it.
	report, err = runner.Tick(context.Background(), tickAt)
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if report.Preview || report.Categories[domain.CategorySituation].Sent != 1 {
		t.Fatalf("unexpected real tick report: %+v", report)
	}
	if store.situations[0].Situation.LastReminder == nil {
		t.Fatal("expected real tick to record the situation reminder")
	}
}

func TestTickIsolatesDeliveryFailures(t *testing.T) {
	t.Parallel()

	store := &memStore{events: []domain.EventWithPerson{eventAt("good", 7), eventAt("bad", 0)}}
	notifier := &fakeNotifier{failIf: func(msg string) bool { return strings.Contains(msg, "bad") }}
	runner := newTestRunner(store, notifier, domain.CategoryEvent)

	report, err := runner.Tick(context.Background(), tickAt)
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}

	summary := report.Categories[domain.CategoryEvent]
	if summary.Due != 2 || summary.Sent != 1 || summary.SendFailed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if report.Failed() != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failed())
	}
	if store.events[1].Event.SentDayOf {
		t.Fatal("failed send must not latch the milestone")
	}
	if !store.events[0].Event.Sent1Week {
		t.Fatal("successful send must latch the milestone")
	}
	if n := store.logCount(domain.CategoryEvent); n != 1 {
		t.Fatalf("expected 1 log row, got %d", n)
	}

	// The failed milestone is retried on the next tick of the same day.
	notifier.failIf = nil
	retry, err := runner.Tick(context.Background(), tickAt)
	if err != nil {
		t.Fatalf("retry Tick returned error: %v", err)
	}
	if len(retry.Results) != 1 || retry.Results[0].Key != "event:bad:dayof" || retry.Results[0].Status != domain.DispatchSent {
		t.Fatalf("unexpected retry results: %+v", retry.Results)
	}
}

func TestTickBoundsHungDelivery(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	store := &memStore{events: []domain.EventWithPerson{eventAt("ev-1", 7)}}
	runner := newTestRunner(store, &fakeNotifier{block: block}, domain.CategoryEvent)
	runner.timeout = 20 * time.Millisecond

	done := make(chan domain.TickReport, 1)
	go func() {
		report, _ := runner.Tick(context.Background(), tickAt)
		done <- report
	}()

	select {
	case report := <-done:
		if len(report.Results) != 1 || report.Results[0].Status != domain.DispatchSendFailed {
			t.Fatalf("expected timed out send to fail, got %+v", report.Results)
		}
		if !strings.Contains(report.Results[0].Error, context.DeadlineExceeded.Error()) {
			t.Fatalf("expected deadline error, got %q", report.Results[0].Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not finish despite dispatch timeout")
	}
	if store.events[0].Event.Sent1Week {
		t.Fatal("timed out send must not latch the milestone")
	}
}

func TestTickSuppressesOverlap(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	store := &memStore{events: []domain.EventWithPerson{eventAt("ev-1", 7)}}
	notifier := &fakeNotifier{block: block, entered: make(chan struct{})}
	runner := newTestRunner(store, notifier, domain.CategoryEvent)

	first := make(chan error, 1)
	go func() {
		_, err := runner.Tick(context.Background(), tickAt)
		first <- err
	}()

	select {
	case <-notifier.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never reached the notifier")
	}

	report, err := runner.Tick(context.Background(), tickAt)
	if !errors.Is(err, ErrTickInProgress) {
		t.Fatalf("expected ErrTickInProgress, got %v", err)
	}
	if !report.Skipped {
		t.Fatal("expected overlapping tick to be marked skipped")
	}

	close(block)
	if err := <-first; err != nil {
		t.Fatalf("first tick returned error: %v", err)
	}
	if got := len(notifier.sent()); got != 1 {
		t.Fatalf("expected exactly one send, got %d", got)
	}
}

type fakeGuard struct {
	ok       bool
	err      error
	released bool
}

func (g *fakeGuard) TryAcquire(context.Context) (bool, error) { return g.ok, g.err }
func (g *fakeGuard) Release(context.Context) error {
	g.released = true
	return nil
}

func TestTickHonoursExternalGuard(t *testing.T) {
	t.Parallel()

	store := &memStore{events: []domain.EventWithPerson{eventAt("ev-1", 7)}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, notifier, domain.CategoryEvent)

	runner.guard = &fakeGuard{ok: false}
	if report, err := runner.Tick(context.Background(), tickAt); !errors.Is(err, ErrTickInProgress) || !report.Skipped {
		t.Fatalf("expected skipped tick, got %+v, %v", report, err)
	}

	guard := &fakeGuard{ok: true}
	runner.guard = guard
	if _, err := runner.Tick(context.Background(), tickAt); err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if !guard.released {
		t.Fatal("expected guard to be released")
	}
	if len(notifier.sent()) != 1 {
		t.Fatalf("expected one send, got %d", len(notifier.sent()))
	}
}

func TestTickCollectErrorDoesNotStopOtherPipelines(t *testing.T) {
	t.Parallel()

	store := &memStore{
		listEvtErr: errors.New("connection reset"),
		situations: []domain.SituationWithPerson{{
			Situation: domain.Situation{ID: "s-1", PersonID: "p-sam", Type: domain.SituationBreakup, Severity: domain.SeverityHigh, Status: domain.StatusActive, StartedAt: today.AddDays(-3)},
			Person:    sam(),
		}},
	}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, notifier, domain.CategoryEvent, domain.CategorySituation)

	report, err := runner.Tick(context.Background(), tickAt)
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if report.Categories[domain.CategoryEvent].CollectError == "" {
		t.Fatal("expected event collect error in report")
	}
	if got := report.Categories[domain.CategorySituation]; got.Sent != 1 {
		t.Fatalf("expected situation reminder to be sent, got %+v", got)
	}

	last := store.situations[0].Situation.LastReminder
	if last == nil || !last.Equal(tickAt) {
		t.Fatalf("expected last reminder at tick time, got %v", last)
	}

	// Same day, interval 1: not due again.
	again, err := runner.Tick(context.Background(), tickAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Tick returned error: %v", err)
	}
	if got := again.Categories[domain.CategorySituation]; got.Due != 0 {
		t.Fatalf("expected no situation due on the same day, got %+v", got)
	}
}

func TestTickStalenessHasNoLatch(t *testing.T) {
	t.Parallel()

	store := &memStore{people: []domain.Person{
		{ID: "p-1", Name: "Ann", Priority: domain.PriorityHigh},
		{ID: "p-2", Name: "Bob", Priority: domain.PriorityHigh},
		{ID: "p-3", Name: "Cy", Priority: domain.PriorityNormal},
	}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, notifier, domain.CategoryLastContact)

	report, err := runner.Tick(context.Background(), tickAt)
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if got := report.Categories[domain.CategoryLastContact]; got.Due != 2 || got.Sent != 2 {
		t.Fatalf("expected two tier messages, got %+v", got)
	}
	if len(notifier.sent()) != 2 {
		t.Fatalf("expected two messages, got %d", len(notifier.sent()))
	}
	if n := store.logCount(domain.CategoryLastContact); n != 3 {
		t.Fatalf("expected one log row per person, got %d", n)
	}

	if _, err := runner.Tick(context.Background(), tickAt.Add(24*time.Hour)); err != nil {
		t.Fatalf("second Tick returned error: %v", err)
	}
	if len(notifier.sent()) != 4 {
		t.Fatalf("expected stale contacts to be notified again, got %d messages", len(notifier.sent()))
	}
}

func TestTickCommitFailure(t *testing.T) {
	t.Parallel()

	store := &memStore{events: []domain.EventWithPerson{eventAt("ev-1", 7)}, failAppend: true}
	runner := newTestRunner(store, &fakeNotifier{}, domain.CategoryEvent)

	report, err := runner.Tick(context.Background(), tickAt)
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Status != domain.DispatchCommitFailed {
		t.Fatalf("expected commit failure, got %+v", report.Results)
	}
	if store.events[0].Event.Sent1Week {
		t.Fatal("milestone must not latch when the log row could not be written")
	}
}

func TestTickUsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	store := &memStore{events: []domain.EventWithPerson{eventAt("ev-1", 0)}}
	runner := newTestRunner(store, &fakeNotifier{}, domain.CategoryEvent)
	runner.loc = time.FixedZone("UTC-10", -10*3600)

	// 05:00 UTC on the 14th is still the 13th ten hours west, so the event is a day out.
	report, err := runner.Tick(context.Background(), time.Date(2026, time.October, 14, 5, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if report.Today != today.AddDays(-1) {
		t.Fatalf("expected local date %s, got %s", today.AddDays(-1), report.Today)
	}
	if len(report.Results) != 1 || report.Results[0].Key != "event:ev-1:1day" {
		t.Fatalf("unexpected results: %+v", report.Results)
	}
}
