// Package journal keeps a local SQLite record of staff actions taken through
// tablebook. The upstream API remains the source of truth for reservations;
// the journal only answers "who did what, when".
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"tablebook/internal/events"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one journaled action.
type Entry struct {
	ID              int64
	EventID         string
	Action          string
	Actor           string
	SubjectID       string
	ReservationDate string
	Detail          string
	CreatedAt       time.Time
}

// Store wraps the journal database.
type Store struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// Open creates the database file and schema when missing.
func Open(path string, logger *zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	s := &Store{DB: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	logger.Info().Str("path", path).Msg("Journal initialized")
	return s, nil
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			action TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			subject_id TEXT NOT NULL DEFAULT '',
			reservation_date TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_subject ON actions(subject_id)`,
	}
	for _, q := range queries {
		if _, err := s.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record stores an entry. Re-recording the same event id is a no-op.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.EventID == "" || e.Action == "" {
		return fmt.Errorf("journal entry needs event id and action")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.ExecContext(ctx, `
		INSERT OR IGNORE INTO actions (event_id, action, actor, subject_id, reservation_date, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Action, e.Actor, e.SubjectID, e.ReservationDate, e.Detail,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Action, err)
	}
	return nil
}

// List returns entries created in [from, to), oldest first. A zero bound is
// open.
func (s *Store) List(ctx context.Context, from, to time.Time) ([]Entry, error) {
	query := `SELECT id, event_id, action, actor, subject_id, reservation_date, detail, created_at
		FROM actions WHERE 1=1`
	var args []interface{}
	if !from.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, from.UTC().Format(timeLayout))
	}
	if !to.IsZero() {
		query += " AND created_at < ?"
		args = append(args, to.UTC().Format(timeLayout))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.EventID, &e.Action, &e.Actor, &e.SubjectID, &e.ReservationDate, &e.Detail, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, err = parseStored(created)
		if err != nil {
			s.logger.Warn().Err(err).Int64("id", e.ID).Msg("unreadable journal timestamp")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// The driver may hand DATETIME columns back in RFC 3339 form.
func parseStored(raw string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// HandleEvent journals a bus event.
func (s *Store) HandleEvent(ctx context.Context, ev events.Event) error {
	e := Entry{
		EventID:   ev.ID,
		Action:    string(ev.Type),
		Actor:     ev.Actor,
		SubjectID: ev.SubjectID,
		Detail:    ev.Detail,
		CreatedAt: ev.OccurredAt,
	}
	if ev.Reservation != nil {
		e.ReservationDate = ev.Reservation.ReservationDate
		if e.SubjectID == "" {
			e.SubjectID = ev.Reservation.ID
		}
	}
	return s.Record(ctx, e)
}
