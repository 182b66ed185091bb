package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/message"
	"FriendReminder/internal/ports"
	"FriendReminder/internal/reminder"
)

// ErrTickInProgress is returned when a tick is requested while another one runs.
var ErrTickInProgress = errors.New("tick already in progress")

const (
	defaultDispatchTimeout = 10 * time.Second
	defaultConcurrency     = 4
)

// RunnerDeps wires the pipelines and driven adapters into the tick runner.
type RunnerDeps struct {
	Registry   *reminder.Registry
	Categories []domain.Category
	Store      ports.ReminderWriter
	Notifier   ports.Notifier

	// Guard optionally serializes ticks across processes; ticks within one process
	// are always serialized.
	Guard ports.TickGuard

	Location        *time.Location
	DispatchTimeout time.Duration
	Concurrency     int
	Logger          *slog.Logger

	// Clock reports the real current time; ticks dated after its day are
	// previews that send but never commit. Defaults to time.Now.
	Clock func() time.Time
}

// Runner executes one evaluate, format, dispatch and commit cycle per tick.
type Runner struct {
	registry    *reminder.Registry
	categories  []domain.Category
	store       ports.ReminderWriter
	notifier    ports.Notifier
	guard       ports.TickGuard
	loc         *time.Location
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
	clock       func() time.Time
	newID       func() string

	running sync.Mutex

	lastMu sync.RWMutex
	last   *domain.TickReport
}

// NewRunner constructs the tick runner.
func NewRunner(deps RunnerDeps) *Runner {
	r := &Runner{
		registry:    deps.Registry,
		categories:  deps.Categories,
		store:       deps.Store,
		notifier:    deps.Notifier,
		guard:       deps.Guard,
		loc:         deps.Location,
		timeout:     deps.DispatchTimeout,
		concurrency: deps.Concurrency,
		logger:      deps.Logger,
		clock:       deps.Clock,
		newID:       uuid.NewString,
	}
	if r.registry == nil {
		r.registry = reminder.NewRegistry()
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.timeout <= 0 {
		r.timeout = defaultDispatchTimeout
	}
	if r.concurrency <= 0 {
		r.concurrency = defaultConcurrency
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r
}

// LastReport returns the report of the most recent tick that was not skipped.
func (r *Runner) LastReport() (domain.TickReport, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return domain.TickReport{}, false
	}
	return *r.last, true
}

// Tick evaluates every enabled pipeline at now and dispatches what is due.
// Per-item failures are reported in the result, never returned as errors.
// A tick dated after the real current day is a preview: nothing is committed,
// so a simulated future reminder cannot silence later real ticks.
func (r *Runner) Tick(ctx context.Context, now time.Time) (domain.TickReport, error) {
	now = now.In(r.loc)
	report := domain.TickReport{
		StartedAt:  now,
		Today:      civil.DateOf(now),
		Categories: map[domain.Category]domain.CategorySummary{},
	}
	report.Preview = report.Today.After(civil.DateOf(r.clock().In(r.loc)))

	if !r.running.TryLock() {
		report.Skipped = true
		return report, ErrTickInProgress
	}
	defer r.running.Unlock()

	if r.guard != nil {
		ok, err := r.guard.TryAcquire(ctx)
		if err != nil {
			report.Skipped = true
			return report, fmt.Errorf("acquire tick guard: %w", err)
		}
		if !ok {
			report.Skipped = true
			return report, ErrTickInProgress
		}
		defer func() {
			if err := r.guard.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("release tick guard", "error", err)
			}
		}()
	}

	pipelines, err := r.registry.Select(r.categories)
	if err != nil {
		return report, fmt.Errorf("select pipelines: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, p := range pipelines {
		p := p
		g.Go(func() error {
			summary, results := r.runPipeline(ctx, p, now, report.Preview)
			mu.Lock()
			report.Categories[p.Category()] = summary
			report.Results = append(report.Results, results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Key < report.Results[j].Key
	})
	report.FinishedAt = time.Now().In(r.loc)

	r.logger.Info("tick finished",
		"today", report.Today.String(),
		"notifications", len(report.Results),
		"failed", report.Failed(),
		"preview", report.Preview,
	)

	r.lastMu.Lock()
	r.last = &report
	r.lastMu.Unlock()

	return report, nil
}

func (r *Runner) runPipeline(ctx context.Context, p reminder.Pipeline, now time.Time, preview bool) (domain.CategorySummary, []domain.DispatchResult) {
	log := r.logger.With("category", string(p.Category()))

	due, err := p.Collect(ctx, now)
	if err != nil {
		log.Error("collect due reminders", "error", err)
		return domain.CategorySummary{CollectError: err.Error()}, nil
	}
	log.Debug("collected due reminders", "count", len(due))

	results := make([]domain.DispatchResult, len(due))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, n := range due {
		i, n := i, n
		g.Go(func() error {
			results[i] = r.dispatch(ctx, log, n, now, preview)
			return nil
		})
	}
	_ = g.Wait()

	summary := domain.CategorySummary{Due: len(due)}
	for _, res := range results {
		switch res.Status {
		case domain.DispatchSent:
			summary.Sent++
		case domain.DispatchSendFailed:
			summary.SendFailed++
		case domain.DispatchCommitFailed:
			summary.CommitFailed++
		}
	}
	return summary, results
}

// dispatch renders and sends one notification, committing its latch only after a successful send.
func (r *Runner) dispatch(ctx context.Context, log *slog.Logger, n domain.DueNotification, now time.Time, preview bool) domain.DispatchResult {
	res := domain.DispatchResult{Key: n.Key(), Category: n.Category()}

	text, err := message.Render(n)
	if err != nil {
		log.Error("render reminder", "key", res.Key, "error", err)
		res.Status, res.Error = domain.DispatchSendFailed, err.Error()
		return res
	}

	if err := r.send(ctx, text); err != nil {
		log.Warn("send reminder", "key", res.Key, "error", err)
		res.Status, res.Error = domain.DispatchSendFailed, err.Error()
		return res
	}

	if preview {
		log.Debug("preview reminder sent, not committed", "key", res.Key)
		res.Status = domain.DispatchSent
		return res
	}

	if err := r.commit(ctx, n, text, now); err != nil {
		log.Error("commit reminder", "key", res.Key, "error", err)
		res.Status, res.Error = domain.DispatchCommitFailed, err.Error()
		return res
	}

	log.Debug("reminder sent", "key", res.Key)
	res.Status = domain.DispatchSent
	return res
}

// send bounds the notifier call even if the notifier ignores its context.
func (r *Runner) send(ctx context.Context, text string) error {
	if r.notifier == nil {
		return errors.New("notifier is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.notifier.Notify(ctx, text) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("notify: %w", ctx.Err())
	}
}

func (r *Runner) commit(ctx context.Context, n domain.DueNotification, text string, now time.Time) error {
	if r.store == nil {
		return errors.New("reminder store is not configured")
	}

	entry := domain.ReminderLog{Category: n.Category(), Message: text, SentAt: now}

	switch d := n.(type) {
	case domain.DueEvent:
		entry.ID, entry.PersonID, entry.EventID = r.newID(), d.Item.Person.ID, d.Item.Event.ID
		if err := r.store.AppendReminderLog(ctx, entry); err != nil {
			return fmt.Errorf("append reminder log: %w", err)
		}
		if err := r.store.MarkEventMilestoneSent(ctx, d.Item.Event.ID, d.Milestone); err != nil {
			return fmt.Errorf("mark milestone %s: %w", d.Milestone, err)
		}
		return nil

	case domain.DueSituation:
		entry.ID, entry.PersonID, entry.SituationID = r.newID(), d.Item.Person.ID, d.Item.Situation.ID
		if err := r.store.AppendReminderLog(ctx, entry); err != nil {
			return fmt.Errorf("append reminder log: %w", err)
		}
		if err := r.store.MarkSituationReminderSent(ctx, d.Item.Situation.ID, now); err != nil {
			return fmt.Errorf("mark situation reminded: %w", err)
		}
		return nil

	case domain.DueStaleGroup:
		// Staleness has no latch; the group is audited once per person.
		var errs []error
		for _, p := range d.People {
			entry.ID, entry.PersonID = r.newID(), p.ID
			if err := r.store.AppendReminderLog(ctx, entry); err != nil {
				errs = append(errs, fmt.Errorf("append reminder log for %s: %w", p.ID, err))
			}
		}
		return errors.Join(errs...)
	}

	return fmt.Errorf("unsupported notification %T", n)
}
