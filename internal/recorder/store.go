// Package recorder captures bus traffic into sqlite recording files and
// plays them back onto the bus with original timing.
package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id            TEXT PRIMARY KEY,
	endpoint      TEXT NOT NULL,
	topics        TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	ended_at      INTEGER,
	message_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS messages (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	topic       TEXT NOT NULL,
	payload     BLOB NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_recorded_at ON messages(recorded_at);
`

// Meta describes one recording session.
type Meta struct {
	SessionID    string
	Endpoint     string
	Topics       []string
	StartedAt    time.Time
	EndedAt      time.Time
	MessageCount int
}

// Recorded is one captured message.
type Recorded struct {
	Topic   string
	Payload []byte
	At      time.Time
}

// Store is a sqlite-backed recording file. Each recording session owns its
// own file, created fresh by Create.
type Store struct {
	db        *sql.DB
	sessionID string
}

// Create makes a new recording file at path with the session metadata row.
func Create(path, endpoint string, topics []string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create recording schema: %w", err)
	}

	id := uuid.NewString()
	topicList := "all"
	if len(topics) > 0 {
		topicList = strings.Join(topics, ",")
	}
	_, err = db.Exec(
		`INSERT INTO session (id, endpoint, topics, started_at) VALUES (?, ?, ?, ?)`,
		id, endpoint, topicList, time.Now().UnixMicro())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("write session row: %w", err)
	}
	return &Store{db: db, sessionID: id}, nil
}

// Open opens an existing recording for playback.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}
	var id string
	if err := db.QueryRow(`SELECT id FROM session LIMIT 1`).Scan(&id); err != nil {
		db.Close()
		return nil, fmt.Errorf("read session row: %w", err)
	}
	return &Store{db: db, sessionID: id}, nil
}

// Append stores one captured message.
func (s *Store) Append(topic string, payload []byte, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (topic, payload, recorded_at) VALUES (?, ?, ?)`,
		topic, payload, at.UnixMicro())
	return err
}

// Finish stamps the session end time and message count.
func (s *Store) Finish() error {
	_, err := s.db.Exec(
		`UPDATE session SET ended_at = ?, message_count = (SELECT COUNT(*) FROM messages) WHERE id = ?`,
		time.Now().UnixMicro(), s.sessionID)
	return err
}

// Meta reads the session metadata.
func (s *Store) Meta() (Meta, error) {
	var (
		m       Meta
		topics  string
		started int64
		ended   sql.NullInt64
	)
	err := s.db.QueryRow(
		`SELECT id, endpoint, topics, started_at, ended_at, message_count FROM session WHERE id = ?`,
		s.sessionID).Scan(&m.SessionID, &m.Endpoint, &topics, &started, &ended, &m.MessageCount)
	if err != nil {
		return Meta{}, fmt.Errorf("read session meta: %w", err)
	}
	if topics != "all" {
		m.Topics = strings.Split(topics, ",")
	}
	m.StartedAt = time.UnixMicro(started)
	if ended.Valid {
		m.EndedAt = time.UnixMicro(ended.Int64)
	}
	return m, nil
}

// Messages returns every captured message in capture order.
func (s *Store) Messages() ([]Recorded, error) {
	rows, err := s.db.Query(
		`SELECT topic, payload, recorded_at FROM messages ORDER BY recorded_at, seq`)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	defer rows.Close()

	var out []Recorded
	for rows.Next() {
		var (
			r  Recorded
			at int64
		)
		if err := rows.Scan(&r.Topic, &r.Payload, &at); err != nil {
			return nil, err
		}
		r.At = time.UnixMicro(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
