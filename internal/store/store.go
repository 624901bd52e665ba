package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound reports that no record exists for the requested user.
	ErrNotFound = errors.New("record not found")
	// ErrNoItems reports that a user has no stored items at all, which is
	// distinct from a search that simply produced no matches.
	ErrNoItems = errors.New("no items stored for this user")
)

// Store is the per-user keyed persistence repository backing profiles,
// trait vectors, conversation histories and extraction items.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func Open(path string, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			name TEXT,
			image_url TEXT,
			subscription TEXT,
			credit INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS mbti_profiles (
			user_id TEXT PRIMARY KEY,
			extraversion_introversion REAL NOT NULL DEFAULT 0,
			sensing_intuition REAL NOT NULL DEFAULT 0,
			thinking_feeling REAL NOT NULL DEFAULT 0,
			judging_perceiving REAL NOT NULL DEFAULT 0,
			response_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ocean_profiles (
			user_id TEXT PRIMARY KEY,
			openness REAL NOT NULL DEFAULT 0,
			conscientiousness REAL NOT NULL DEFAULT 0,
			extraversion REAL NOT NULL DEFAULT 0,
			agreeableness REAL NOT NULL DEFAULT 0,
			neuroticism REAL NOT NULL DEFAULT 0,
			response_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_history (
			user_id TEXT PRIMARY KEY,
			history TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS user_knowledge (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding TEXT,
			value_score REAL NOT NULL,
			topics TEXT NOT NULL DEFAULT '[]',
			reason TEXT,
			mention_count INTEGER NOT NULL DEFAULT 1,
			last_updated TIMESTAMP NOT NULL,
			UNIQUE(user_id, text)
		)`,
		`CREATE TABLE IF NOT EXISTS user_slang (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding TEXT,
			value_score REAL NOT NULL,
			topics TEXT NOT NULL DEFAULT '[]',
			reason TEXT,
			mention_count INTEGER NOT NULL DEFAULT 1,
			last_updated TIMESTAMP NOT NULL,
			UNIQUE(user_id, text)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_user ON user_knowledge(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_slang_user ON user_slang(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
