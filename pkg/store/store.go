// Package store keeps the history of finished workout sets in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/teslashibe/fitview/pkg/exercise"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a set does not exist.
var ErrNotFound = errors.New("store: not found")

// Set is one finished set of repetitions.
type Set struct {
	ID        uuid.UUID     `json:"id"`
	Exercise  exercise.Kind `json:"exercise"`
	Reps      int           `json:"reps"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}

// Duration returns how long the set took.
func (s Set) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// Total aggregates the sets of one exercise.
type Total struct {
	Exercise exercise.Kind `json:"exercise"`
	Sets     int           `json:"sets"`
	Reps     int           `json:"reps"`
}

// Store is a SQLite-backed set history.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pragmas: %w", err)
	}

	s := &Store{db: db, log: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("set store ready", "path", path)
	return s, nil
}

// migrateUp applies the embedded migrations.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("store: migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: sqlite driver: %w", err)
	}

	// Not closing m: that would close the underlying database.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("store: migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migration up failed: %w", err)
	}

	version, _, err := m.Version()
	if err == nil {
		s.log.Debug("schema migrated", "version", version)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record saves a finished set. A zero ID is replaced with a new UUID and
// the stored set is returned.
func (s *Store) Record(ctx context.Context, set Set) (Set, error) {
	if !set.Exercise.Valid() {
		return Set{}, fmt.Errorf("store: %w: %d", exercise.ErrUnknownKind, int(set.Exercise))
	}
	if set.Reps < 0 {
		return Set{}, fmt.Errorf("store: negative reps %d", set.Reps)
	}
	if set.EndedAt.Before(set.StartedAt) {
		return Set{}, errors.New("store: set ends before it starts")
	}
	if set.ID == uuid.Nil {
		set.ID = uuid.New()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sets (id, exercise, reps, started_at, ended_at) VALUES (?, ?, ?, ?, ?)`,
		set.ID.String(), set.Exercise.String(), set.Reps,
		set.StartedAt.UnixNano(), set.EndedAt.UnixNano())
	if err != nil {
		return Set{}, fmt.Errorf("store: inserting set: %w", err)
	}

	s.log.Info("set recorded", "id", set.ID, "exercise", set.Exercise, "reps", set.Reps)
	return set, nil
}

// List returns the most recent sets first. A limit <= 0 returns all sets.
func (s *Store) List(ctx context.Context, limit int) ([]Set, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exercise, reps, started_at, ended_at
		 FROM sets
		 ORDER BY ended_at DESC, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: querying sets: %w", err)
	}
	defer rows.Close()

	var result []Set
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, set)
	}
	return result, rows.Err()
}

// Get returns one set by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Set, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, exercise, reps, started_at, ended_at FROM sets WHERE id = ?`, id.String())
	set, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Set{}, fmt.Errorf("%w: set %s", ErrNotFound, id)
	}
	return set, err
}

// Totals returns set and rep totals per exercise, in exercise order.
func (s *Store) Totals(ctx context.Context) ([]Total, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise, COUNT(*), COALESCE(SUM(reps), 0) FROM sets GROUP BY exercise`)
	if err != nil {
		return nil, fmt.Errorf("store: querying totals: %w", err)
	}
	defer rows.Close()

	byKind := make(map[exercise.Kind]Total)
	for rows.Next() {
		var (
			name string
			t    Total
		)
		if err := rows.Scan(&name, &t.Sets, &t.Reps); err != nil {
			return nil, fmt.Errorf("store: scanning totals: %w", err)
		}
		if t.Exercise, err = exercise.ParseKind(name); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		byKind[t.Exercise] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var result []Total
	for _, k := range exercise.All() {
		if t, ok := byKind[k]; ok {
			result = append(result, t)
		}
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSet(sc scanner) (Set, error) {
	var (
		id, name       string
		set            Set
		started, ended int64
	)
	if err := sc.Scan(&id, &name, &set.Reps, &started, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Set{}, err
		}
		return Set{}, fmt.Errorf("store: scanning set: %w", err)
	}

	var err error
	if set.ID, err = uuid.Parse(id); err != nil {
		return Set{}, fmt.Errorf("store: bad set id %q: %w", id, err)
	}
	if set.Exercise, err = exercise.ParseKind(name); err != nil {
		return Set{}, fmt.Errorf("store: %w", err)
	}
	set.StartedAt = time.Unix(0, started).UTC()
	set.EndedAt = time.Unix(0, ended).UTC()
	return set, nil
}
