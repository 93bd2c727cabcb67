package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"course-bot/internal/workflow"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("storage: record not found")

// Storage persists workflow sessions in sqlite. Writes for a single
// chat key are serialized by the engine's per-session locks; sqlite
// serializes the statements themselves.
type Storage struct {
	db *sql.DB
}

func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	s := &Storage{db: db}
	if err = s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize database schema: %w", err)
	}
	log.Println("Database connection successful and schema initialized.")
	return s, nil
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			chat_id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			state TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS archived_sessions (
			session_id TEXT PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			state TEXT NOT NULL,
			reason TEXT NOT NULL,
			archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("schema execution failed: %w", err)
		}
	}
	return nil
}

// Save upserts the chat's active session.
func (s *Storage) Save(state *workflow.State) error {
	encoded, err := state.Encode()
	if err != nil {
		return err
	}
	query := `INSERT INTO sessions (chat_id, session_id, state, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET session_id = excluded.session_id, state = excluded.state, updated_at = excluded.updated_at`
	_, err = s.db.Exec(query, state.ChatID, state.SessionID, encoded, state.UpdatedAt)
	return err
}

func (s *Storage) Load(chatID int64) (*workflow.State, error) {
	var encoded string
	query := `SELECT state FROM sessions WHERE chat_id = ?`
	err := s.db.QueryRow(query, chatID).Scan(&encoded)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return workflow.DecodeState(encoded)
}

// Archive moves a session out of the active table in one transaction.
func (s *Storage) Archive(state *workflow.State, reason string) error {
	encoded, err := state.Encode()
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO archived_sessions (session_id, chat_id, state, reason) VALUES (?, ?, ?, ?)`,
		state.SessionID, state.ChatID, encoded, reason,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE chat_id = ?`, state.ChatID); err != nil {
		return err
	}
	return tx.Commit()
}

// ExpireBefore archives every session idle since before the cutoff and
// returns how many were reclaimed.
func (s *Storage) ExpireBefore(cutoff time.Time) (int, error) {
	rows, err := s.db.Query(`SELECT state FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var expired []*workflow.State
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return 0, err
		}
		state, err := workflow.DecodeState(encoded)
		if err != nil {
			log.Printf("Skipping undecodable session during expiry sweep: %v", err)
			continue
		}
		expired = append(expired, state)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	count := 0
	for _, state := range expired {
		if err := s.Archive(state, "expired"); err != nil {
			log.Printf("Could not archive expired session %s: %v", state.SessionID, err)
			continue
		}
		count++
	}
	return count, nil
}

func (s *Storage) Close() {
	s.db.Close()
}
