package storage

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLStore implements Store using a MySQL backend
type MySQLStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewMySQLStore creates a new MySQL-backed store. The DSN must include
// parseTime=true so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	store := &MySQLStore{
		db: db,
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *MySQLStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id VARCHAR(36) PRIMARY KEY,
		kind VARCHAR(64) NOT NULL,
		client_id VARCHAR(255),
		detail TEXT,
		created_at DATETIME(3) NOT NULL,
		INDEX idx_events_created_at (created_at),
		INDEX idx_events_kind (kind)
	)`

	_, err := s.db.Exec(schema)
	return err
}

// RecordEvent appends an event to the history log
func (s *MySQLStore) RecordEvent(event *Event) error {
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
func (s *MySQLStore) GetRecentEvents(limit int) ([]*Event, error) {
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
func (s *MySQLStore) CountEvents() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	return count, err
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
