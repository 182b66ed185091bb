package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	goredis "github.com/redis/go-redis/v9"

	"FriendReminder/internal/config"
	"FriendReminder/internal/domain"
	"FriendReminder/internal/infrastructure/console"
	"FriendReminder/internal/infrastructure/httpapi"
	"FriendReminder/internal/infrastructure/llm"
	"FriendReminder/internal/infrastructure/redislock"
	"FriendReminder/internal/infrastructure/scheduler"
	"FriendReminder/internal/infrastructure/sendgrid"
	"FriendReminder/internal/infrastructure/storage"
	"FriendReminder/internal/infrastructure/telegram"
	"FriendReminder/internal/logging"
	"FriendReminder/internal/ports"
	"FriendReminder/internal/reminder"
	"FriendReminder/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.Store
	rdb      *goredis.Client
	runner   *usecase.Runner
	ingestor *usecase.Ingestor
}

// Options override pieces of the wiring, mostly for tests and dry runs.
type Options struct {
	// Notifier replaces the configured channel.
	Notifier ports.Notifier
	// Extractor replaces the configured LLM client.
	Extractor ports.Extractor
}

// New opens storage and builds the tick runner and ingestor from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	categories, err := parseCategories(cfg.Reminders.Categories)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &Application{cfg: cfg, logger: baseLogger, store: store}

	notifier := opts.Notifier
	if notifier == nil {
		if notifier, err = buildNotifier(cfg, baseLogger); err != nil {
			a.Close()
			return nil, err
		}
	}

	var guard ports.TickGuard
	if addr := cfg.Scheduler.Lock.RedisAddr; addr != "" {
		rdb, err := redislock.Dial(ctx, addr)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect tick lock: %w", err)
		}
		a.rdb = rdb
		guard = redislock.New(rdb, cfg.Scheduler.Lock.Key, cfg.Scheduler.Lock.TTL)
	}

	registry := reminder.NewRegistry()
	registry.Register(reminder.NewEventPipeline(store, cfg.Reminders.LookaheadDays))
	registry.Register(reminder.NewSituationPipeline(store))
	registry.Register(reminder.NewStalenessPipeline(store, reminder.Thresholds{
		PriorityDays: cfg.Reminders.PriorityDays,
		NormalDays:   cfg.Reminders.NormalDays,
	}))

	a.runner = usecase.NewRunner(usecase.RunnerDeps{
		Registry:        registry,
		Categories:      categories,
		Store:           store,
		Notifier:        notifier,
		Guard:           guard,
		Location:        cfg.Scheduler.Location(),
		DispatchTimeout: cfg.Reminders.DispatchTimeout,
		Concurrency:     cfg.Reminders.Concurrency,
		Logger:          logging.Component(baseLogger, "tick"),
	})

	extractor := opts.Extractor
	if extractor == nil && cfg.LLM.APIKey != "" {
		extractor = llm.NewChatGPTClient(cfg.LLM)
	}
	if extractor != nil {
		a.ingestor = usecase.NewIngestor(extractor, store, cfg.Scheduler.Location(), logging.Component(baseLogger, "ingest"))
	}

	return a, nil
}

func buildNotifier(cfg config.Config, logger *slog.Logger) (ports.Notifier, error) {
	switch cfg.Notifications.Channel {
	case config.ChannelTelegram:
		tg := cfg.Notifications.Telegram
		if tg.BotToken == "" || tg.ChatID == "" {
			return nil, errors.New("telegram channel requires bot token and chat id")
		}
		return telegram.NewNotifier(tg.BaseURL, tg.BotToken, tg.ChatID), nil
	case config.ChannelSendGrid:
		sg := cfg.Notifications.SendGrid
		n, err := sendgrid.New(sendgrid.Config{
			APIKey:    sg.APIKey,
			BaseURL:   sg.BaseURL,
			FromEmail: sg.FromEmail,
			FromName:  sg.FromName,
			ToEmail:   sg.ToEmail,
			Subject:   sg.Subject,
		})
		if err != nil {
			return nil, fmt.Errorf("sendgrid channel: %w", err)
		}
		return n, nil
	case config.ChannelConsole, "":
		return console.NewNotifier(logging.Component(logger, "notifier.console")), nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Notifications.Channel)
	}
}

func parseCategories(raw []string) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(raw))
	for _, s := range raw {
		c, err := domain.ParseCategory(s)
		if err != nil {
			return nil, fmt.Errorf("reminders.categories: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Close releases storage and the redis connection.
func (a *Application) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// Store exposes the entity store for seeding and inspection.
func (a *Application) Store() *storage.Store { return a.store }

// Tick runs one tick at the current time, or on day when it is non-nil.
// A day after today yields a preview report with nothing committed.
func (a *Application) Tick(ctx context.Context, day *civil.Date) (domain.TickReport, error) {
	now := time.Now().In(a.cfg.Scheduler.Location())
	if day != nil {
		now = time.Date(day.Year, day.Month, day.Day, now.Hour(), now.Minute(), now.Second(), 0, now.Location())
	}
	return a.runner.Tick(ctx, now)
}

// Ingest applies free text through the extraction oracle.
func (a *Application) Ingest(ctx context.Context, text string) (usecase.IngestSummary, error) {
	if a.ingestor == nil {
		return usecase.IngestSummary{}, errors.New("ingestion requires llm.apiKey")
	}
	return a.ingestor.Ingest(ctx, text, time.Now())
}

// Seed loads a seed document into the store.
func (a *Application) Seed(ctx context.Context, raw []byte) (SeedSummary, error) {
	f, err := ParseSeed(raw)
	if err != nil {
		return SeedSummary{}, err
	}
	return ApplySeed(ctx, a.store, f)
}

// Serve runs the cron scheduler and the admin API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
		return err
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), logging.Component(a.logger, "cron"))
	sched := usecase.NewScheduler(driver, a.runner, logging.Component(a.logger, "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}()

	if a.cfg.HTTP.Addr == "" {
		a.logger.Info("admin api disabled")
		<-ctx.Done()
		return nil
	}

	var ingestor httpapi.TextIngestor
	if a.ingestor != nil {
		ingestor = a.ingestor
	}
	srv := &http.Server{
		Addr: a.cfg.HTTP.Addr,
		Handler: httpapi.NewHandler(httpapi.Deps{
			Runner:   a.runner,
			Store:    a.store,
			Ingestor: ingestor,
			Token:    a.cfg.HTTP.Token,
			Location: a.cfg.Scheduler.Location(),
			Logger:   logging.Component(a.logger, "httpapi"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("admin api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("admin api: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
