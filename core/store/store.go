// Package store persists assistant preferences in a SQLite key/value table.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	_ "github.com/mattn/go-sqlite3"
)

const (
	KeyVoice = "assistant.voice"
	KeyNotes = "assistant.notes"
)

var ErrEmptyNote = errors.New("note is empty")

type Note struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Preferences is everything the assistant keeps across restarts.
type Preferences struct {
	Voice string
	Notes []Note
}

// Store implements [actions.NoteKeeper]. Reads are served from memory; every
// write goes through to the database.
type Store struct {
	db       *sql.DB
	defaults Preferences
	now      func() time.Time

	mu    sync.Mutex
	prefs Preferences
}

type Option func(*Store)

func WithDefaults(defaults Preferences) Option {
	return func(s *Store) { s.defaults = defaults }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates the database at path and loads the stored
// preferences.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.Load(ctx)
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the in-memory preferences with the stored ones. Missing or
// unreadable values fall back to the defaults.
func (s *Store) Load(ctx context.Context) Preferences {
	prefs := s.copyOf(s.defaults)

	var voice string
	switch found, err := s.get(ctx, KeyVoice, &voice); {
	case err != nil:
		logger.WarnContext(ctx, "Stored voice is unreadable, using default", "error", err)
	case found && strings.TrimSpace(voice) != "":
		prefs.Voice = voice
	}

	var notes []Note
	switch found, err := s.get(ctx, KeyNotes, &notes); {
	case err != nil:
		logger.WarnContext(ctx, "Stored notes are unreadable, using defaults", "error", err)
	case found:
		prefs.Notes = notes
	}

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return s.Snapshot()
}

// Snapshot returns a deep copy of the current preferences.
func (s *Store) Snapshot() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyOf(s.prefs)
}

func (s *Store) Voice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Voice
}

func (s *Store) Notes() []Note {
	return s.Snapshot().Notes
}

func (s *Store) SaveVoice(ctx context.Context, voice string) error {
	if err := s.put(ctx, KeyVoice, voice); err != nil {
		return err
	}
	s.mu.Lock()
	s.prefs.Voice = voice
	s.mu.Unlock()
	return nil
}

func (s *Store) AddNote(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	notes := append(s.copyOf(s.prefs).Notes, Note{ID: uuid.New(), Text: text, CreatedAt: s.now().UTC()})
	if err := s.put(ctx, KeyNotes, notes); err != nil {
		return err
	}
	s.prefs.Notes = notes
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) copyOf(prefs Preferences) Preferences {
	var out Preferences
	if err := copier.CopyWithOption(&out, &prefs, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("Failed to copy preferences", "error", err)
		return prefs
	}
	return out
}
