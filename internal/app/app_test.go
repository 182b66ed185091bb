package app

import (
	"context"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/civil"

	"FriendReminder/internal/config"
	"FriendReminder/internal/domain"
)

const seedYAML = `
people:
  - id: sam
    name: Sam Reed
    aliases: [Sammy]
    relationship: friend
    priority: high
    lastContact: 2026-09-01
    events:
      - type: birthday
        description: turns 30
        date: 2026-10-15
        recurring: true
      - type: trip
        description: Japan
        approximateDate: next spring
    situations:
      - type: breakup
        description: split with Alex
        severity: high
        startedAt: 2026-10-11
  - name: Jo
    relationship: work
`

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func testConfig() config.Config {
	cfg := config.LoadFile("")
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}
	cfg.Scheduler.Lock.RedisAddr = ""
	return cfg
}

func TestSeedAndTick(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}

	a, err := New(ctx, testConfig(), nil, Options{Notifier: notifier})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	summary, err := a.Seed(ctx, []byte(seedYAML))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if summary.People != 2 || summary.Events != 2 || summary.Situations != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	day := civil.Date{Year: 2026, Month: 10, Day: 14}
	report, err := a.Tick(ctx, &day)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Today != day {
		t.Fatalf("tick ran for %s", report.Today)
	}
	// Sam is an overdue close friend and Jo was never contacted, so both stale tiers fire.
	want := map[domain.Category]int{domain.CategoryEvent: 1, domain.CategorySituation: 1, domain.CategoryLastContact: 2}
	for c, n := range want {
		if got := report.Categories[c].Sent; got != n {
			t.Fatalf("category %s sent %d, want %d (%+v)", c, got, n, report.Categories)
		}
	}
	if len(notifier.messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(notifier.messages))
	}

	// Re-seeding must not reset the latched 1day milestone.
	if _, err := a.Seed(ctx, []byte(seedYAML)); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	if _, err := a.Tick(ctx, &day); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	for _, m := range notifier.messages[4:] {
		if strings.HasPrefix(m, "Event reminder") {
			t.Fatalf("event re-sent after re-seed: %q", m)
		}
	}

	jo, err := a.Store().FindPersonByName(ctx, "jo")
	if err != nil {
		t.Fatalf("FindPersonByName: %v", err)
	}
	if jo.Priority != domain.PriorityNormal || jo.Relationship != domain.RelationshipCoworker {
		t.Fatalf("unexpected Jo: %+v", jo)
	}
}

func TestParseSeedValidates(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing name":  "people:\n  - relationship: friend\n",
		"bad priority":  "people:\n  - name: A\n    priority: urgent\n",
		"bad severity":  "people:\n  - name: A\n    situations:\n      - type: other\n        severity: extreme\n        startedAt: 2026-01-01\n",
		"missing start": "people:\n  - name: A\n    situations:\n      - type: other\n",
	}
	for name, doc := range cases {
		if _, err := ParseSeed([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNewRejectsUnknownCategory(t *testing.T) {
	cfg := testConfig()
	cfg.Reminders.Categories = []string{"birthdays"}

	if _, err := New(context.Background(), cfg, nil, Options{Notifier: &recordingNotifier{}}); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestNewRejectsIncompleteTelegram(t *testing.T) {
	cfg := testConfig()
	cfg.Notifications.Channel = config.ChannelTelegram
	cfg.Notifications.Telegram.BotToken = ""

	if _, err := New(context.Background(), cfg, nil, Options{}); err == nil {
		t.Fatalf("expected error for missing telegram credentials")
	}
}

func TestIngestRequiresExtractor(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = ""

	a, err := New(context.Background(), cfg, nil, Options{Notifier: &recordingNotifier{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, err := a.Ingest(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error without extractor")
	}
}
