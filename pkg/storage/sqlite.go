package storage

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using a SQLite backend
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{
		db: db,
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		client_id TEXT,
		detail TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordEvent appends an event to the history log
func (s *SQLiteStore) RecordEvent(event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO events (id, kind, client_id, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.Kind, event.ClientID, event.Detail, event.CreatedAt,
	)
	return err
}

// GetRecentEvents returns up to limit events, newest first
func (s *SQLiteStore) GetRecentEvents(limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT id, kind, client_id, detail, created_at FROM events ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.Kind, &event.ClientID, &event.Detail, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

// CountEvents returns the total number of recorded events
func (s *SQLiteStore) CountEvents() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	return count, err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
