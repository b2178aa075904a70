package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Fixed-width UTC layout so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists messages through database/sql and go-sqlite3.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("sqlite db path is required")
	}
	if !isMemoryDSN(dbPath) {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func isMemoryDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return lower == ":memory:" || strings.HasPrefix(lower, "file::memory:") || strings.Contains(lower, "mode=memory")
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			is_chatbot INTEGER NOT NULL DEFAULT 0,
			created_at_utc TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at_utc);",
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, content string, isChatbot bool) (Message, error) {
	msg := Message{
		ID:        uuid.NewString(),
		Content:   content,
		IsChatbot: isChatbot,
		CreatedAt: now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, content, is_chatbot, created_at_utc) VALUES (?, ?, ?, ?)",
		msg.ID, msg.Content, boolToInt(msg.IsChatbot), msg.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, content, is_chatbot, created_at_utc FROM messages WHERE id = ?", id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return msg, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, is_chatbot, created_at_utc FROM messages ORDER BY created_at_utc ASC, rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (Message, error) {
	var (
		msg       Message
		isChatbot int
		createdAt string
	)
	if err := row.Scan(&msg.ID, &msg.Content, &isChatbot, &createdAt); err != nil {
		return Message{}, err
	}
	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Message{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	msg.IsChatbot = isChatbot != 0
	msg.CreatedAt = parsed.UTC()
	return msg, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
