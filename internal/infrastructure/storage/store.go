package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"FriendReminder/internal/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// timestampLayout is fixed-width UTC so stored timestamps sort lexically.
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

// Store persists people, events, situations and the reminder log in Postgres or SQLite.
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var (
	_ ports.ReminderStore = (*Store)(nil)
	_ ports.EntityStore   = (*Store)(nil)
)

// Open connects to the database and applies pending migrations.
// For SQLite, pass ":memory:" as dsn for a throwaway database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverPostgres:
		placeholder = sq.Dollar
	case DriverSQLite:
		placeholder = sq.Question
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if driver == DriverSQLite {
		// A single connection keeps ":memory:" databases shared and avoids "database is locked".
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	s := &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(placeholder),
		now: time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]int, error) {
	query, args, err := s.sb.Select("version").From("schema_version").OrderBy("version").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schema_version: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parse migration version from %q: %w", entry.Name(), err)
		}
		if done[version] {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if err := s.applyMigration(ctx, version, string(content)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", version, err)
	}

	if _, err := tx.ExecContext(ctx, content); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %d: %w", version, err)
	}

	query, args, err := s.sb.Insert("schema_version").
		Columns("version", "applied_at").
		Values(version, encodeTime(s.now())).
		ToSql()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("build migration record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", version, err)
	}
	return nil
}

// exec runs a built statement and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func decodeTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timestampLayout, ns.String)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, ns.String); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ns.String, err)
		}
	}
	return &t, nil
}

func encodeDate(d *civil.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decodeDate(ns sql.NullString) (*civil.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", ns.String, err)
	}
	return &d, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
