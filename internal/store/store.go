package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite3  = "sqlite3"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrNotFound = errors.New("message not found")

// Message is one entry of the conversation log. Chatbot messages carry an
// encoded transcript as content; user messages carry the raw text.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsChatbot bool      `json:"isChatbot"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists the message log. List returns messages ordered by creation
// time, with insertion order breaking ties.
type Store interface {
	Append(ctx context.Context, content string, isChatbot bool) (Message, error)
	Get(ctx context.Context, id string) (Message, error)
	List(ctx context.Context) ([]Message, error)
	Close() error
}

// Open returns the store for driver. An empty driver selects sqlite3.
func Open(driver, dsn string) (Store, error) {
	switch normalizeDriver(driver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite3:
		return NewSQLiteStore(dsn)
	case DriverSQLite, DriverPostgres:
		return NewGormStore(driver, dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// ValidDriver reports whether Open accepts driver.
func ValidDriver(driver string) bool {
	switch normalizeDriver(driver) {
	case DriverMemory, DriverSQLite3, DriverSQLite, DriverPostgres:
		return true
	}
	return false
}

func normalizeDriver(driver string) string {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		return DriverSQLite3
	}
	return driver
}

func now() time.Time {
	return time.Now().UTC()
}
