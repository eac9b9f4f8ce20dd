package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/nhle/worklist/internal/model"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const snoozeTable = "snoozes"

// upsertSuffix replaces an existing row for the same key. ON CONFLICT ...
// DO UPDATE is shared by SQLite (3.24+) and PostgreSQL.
const upsertSuffix = "ON CONFLICT (source, id) DO UPDATE SET " +
	"wake_at = excluded.wake_at, created_at = excluded.created_at"

// snoozeRow is the stored form of a SnoozedRecord. Times are unix
// nanoseconds so comparisons are numeric and exact on every dialect.
type snoozeRow struct {
	Source    string `db:"source"`
	ID        string `db:"id"`
	WakeAt    int64  `db:"wake_at"`
	CreatedAt int64  `db:"created_at"`
}

func (r snoozeRow) record() model.SnoozedRecord {
	return model.SnoozedRecord{
		Source:    model.SourceType(r.Source),
		ID:        r.ID,
		WakeAt:    time.Unix(0, r.WakeAt).UTC(),
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
}

// SQLStore implements SnoozeStore on SQLite or PostgreSQL.
type SQLStore struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ SnoozeStore = (*SQLStore)(nil)

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithClock overrides the clock used to validate wake times and stamp
// created_at.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		s.now = now
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath. Use
// ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLStore, error) {
	return NewStore(DriverSQLite, dbPath, opts...)
}

// NewFromConfig opens the store described by cfg.
func NewFromConfig(cfg model.StoreConfig, opts ...Option) (*SQLStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	return NewStore(driver, cfg.DSN, opts...)
}

// NewStore opens a database with the given driver and DSN, prepares the
// connection for the dialect, and runs any pending schema migrations.
func NewStore(driver, dsn string, opts ...Option) (*SQLStore, error) {
	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholder = sq.Question
	case DriverPostgres:
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}

	if driver == DriverSQLite {
		// A single connection serializes writers and keeps one shared
		// database for ":memory:".
		db.SetMaxOpenConns(1)

		// Enable WAL mode for better concurrent read performance.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	s := &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// runMigrations reads the current schema version and applies any
// outstanding migrations in order, each in its own transaction.
func (s *SQLStore) runMigrations() error {
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	currentVersion := 0
	err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLStore) applyMigration(m migration) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return err
	}

	query, args, err := s.builder.
		Insert("schema_version").
		Columns("version").
		Values(m.version).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	return tx.Commit()
}

// UpsertSnooze records a snooze for (source, id), replacing any prior
// record for the key whether active or expired. Last writer wins.
func (s *SQLStore) UpsertSnooze(
	ctx context.Context,
	source model.SourceType,
	id string,
	wakeAt time.Time,
) error {
	now := s.now()
	if !wakeAt.After(now) {
		return fmt.Errorf("snoozing %s until %s: %w",
			model.TaskKey{Source: source, ID: id}, wakeAt.Format(time.RFC3339), ErrInvalidDuration)
	}

	query, args, err := s.builder.
		Insert(snoozeTable).
		Columns("source", "id", "wake_at", "created_at").
		Values(string(source), id, wakeAt.UnixNano(), now.UnixNano()).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting snooze %s:%s: %w", source, id, err)
	}
	return nil
}

// ActiveSnoozeKeys returns the keys of every record with wake_at > now.
func (s *SQLStore) ActiveSnoozeKeys(
	ctx context.Context,
	now time.Time,
) (map[model.TaskKey]struct{}, error) {
	rows, err := s.selectActive(ctx, now, "source", "id")
	if err != nil {
		return nil, err
	}

	keys := make(map[model.TaskKey]struct{}, len(rows))
	for _, r := range rows {
		keys[model.TaskKey{Source: model.SourceType(r.Source), ID: r.ID}] = struct{}{}
	}
	return keys, nil
}

// ListActive returns active records ordered by wake time, soonest first.
func (s *SQLStore) ListActive(
	ctx context.Context,
	now time.Time,
) ([]model.SnoozedRecord, error) {
	rows, err := s.selectActive(ctx, now, "source", "id", "wake_at", "created_at")
	if err != nil {
		return nil, err
	}

	records := make([]model.SnoozedRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

func (s *SQLStore) selectActive(
	ctx context.Context,
	now time.Time,
	columns ...string,
) ([]snoozeRow, error) {
	query, args, err := s.builder.
		Select(columns...).
		From(snoozeTable).
		Where(sq.Gt{"wake_at": now.UnixNano()}).
		OrderBy("wake_at ASC", "source ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building active query: %w", err)
	}

	var rows []snoozeRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying active snoozes: %w", err)
	}
	return rows, nil
}

// GetSnooze returns the record for key, active or not.
func (s *SQLStore) GetSnooze(
	ctx context.Context,
	key model.TaskKey,
) (*model.SnoozedRecord, error) {
	query, args, err := s.builder.
		Select("source", "id", "wake_at", "created_at").
		From(snoozeTable).
		Where(sq.Eq{"source": string(key.Source), "id": key.ID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get query: %w", err)
	}

	var row snoozeRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("getting snooze %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("getting snooze %s: %w", key, err)
	}

	rec := row.record()
	return &rec, nil
}

// DeleteSnooze removes the record for key so the task reappears on the
// next aggregation.
func (s *SQLStore) DeleteSnooze(ctx context.Context, key model.TaskKey) error {
	query, args, err := s.builder.
		Delete(snoozeTable).
		Where(sq.Eq{"source": string(key.Source), "id": key.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting snooze %s: %w", key, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting deleted snoozes: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deleting snooze %s: %w", key, ErrNotFound)
	}
	return nil
}

// CleanupExpired deletes records with wake_at <= before.
func (s *SQLStore) CleanupExpired(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := s.builder.
		Delete(snoozeTable).
		Where(sq.LtOrEq{"wake_at": before.UnixNano()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building cleanup: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleaning up expired snoozes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleaned snoozes: %w", err)
	}
	return n, nil
}
