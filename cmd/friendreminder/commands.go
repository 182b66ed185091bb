package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"FriendReminder/internal/app"
	"FriendReminder/internal/config"
	"FriendReminder/internal/infrastructure/console"
	"FriendReminder/internal/logging"
	"FriendReminder/internal/ports"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "friendreminder",
		Short:         "Reminds you to stay in touch with the people you care about",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (default $FRIEND_REMINDER_CONFIG)")

	load := func() config.Config {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		return config.Load()
	}

	root.AddCommand(
		newServeCmd(load),
		newTickCmd(load),
		newMigrateCmd(load),
		newSeedCmd(load),
		newIngestCmd(load),
	)
	return root
}

func openApp(ctx context.Context, cfg config.Config, opts app.Options) (*app.Application, error) {
	return app.New(ctx, cfg, logging.New(cfg.Logging.Level), opts)
}

func newServeCmd(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled ticks and the admin API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, load(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
}

func newTickCmd(load func() config.Config) *cobra.Command {
	var (
		date   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run a single tick and print its report",
		Long: `Run a single tick and print its report as JSON.

A --date after today runs as a preview: due reminders are sent but no
milestone, situation reminder or log row is committed.

Examples:
  friendreminder tick
  friendreminder tick --date 2026-12-24 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var day *civil.Date
			if date != "" {
				d, err := civil.ParseDate(date)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				day = &d
			}

			cfg := load()
			var opts app.Options
			if dryRun {
				opts.Notifier = console.NewNotifier(logging.Component(logging.New(cfg.Logging.Level), "notifier.console"))
			}

			a, err := openApp(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Tick(cmd.Context(), day)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if n := report.Failed(); n > 0 {
				return fmt.Errorf("%d notification(s) failed", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "evaluate as if today were YYYY-MM-DD (future dates never commit)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log messages instead of delivering them (state is still committed for today or past dates)")
	return cmd
}

func newMigrateCmd(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), load(), app.Options{Notifier: noopNotifier{}})
			if err != nil {
				return err
			}
			defer a.Close()

			versions, err := a.Store().AppliedMigrations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied migrations: %v\n", versions)
			return nil
		},
	}
}

func newSeedCmd(load func() config.Config) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load people, events and situations from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading seed file: %w", err)
			}

			a, err := openApp(cmd.Context(), load(), app.Options{Notifier: noopNotifier{}})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Seed(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d people, %d events, %d situations\n",
				summary.People, summary.Events, summary.Situations)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed YAML file")
	return cmd
}

func newIngestCmd(load func() config.Config) *cobra.Command {
	var (
		text string
		file string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract people, events and situations from a note",
		Long: `Extract people, events and situations from a note.

Examples:
  friendreminder ingest --text "Lunch with Sam, her interview is on 2026-11-02"
  friendreminder ingest --file ./journal.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && file == "" {
				return errors.New("one of --text or --file is required")
			}
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading file: %w", err)
				}
				text = string(raw)
			}

			a, err := openApp(cmd.Context(), load(), app.Options{Notifier: noopNotifier{}})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Ingest(cmd.Context(), text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "note text")
	cmd.Flags().StringVar(&file, "file", "", "file containing the note")
	return cmd
}

// noopNotifier satisfies the runner for commands that never tick.
type noopNotifier struct{}

var _ ports.Notifier = noopNotifier{}

func (noopNotifier) Notify(context.Context, string) error { return nil }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
