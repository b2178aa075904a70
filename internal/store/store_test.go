package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	stores := map[string]Store{"memory": NewMemoryStore()}

	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "sqlite3", "chatbot.db"))
	if err != nil {
		t.Fatalf("open sqlite3 store: %v", err)
	}
	stores["sqlite3"] = sqliteStore

	gormStore, err := NewGormStore(DriverSQLite, filepath.Join(dir, "gorm", "chatbot.db"))
	if err != nil {
		t.Fatalf("open gorm sqlite store: %v", err)
	}
	stores["gorm-sqlite"] = gormStore

	if dsn := os.Getenv("CHATBOT_TEST_POSTGRES_DSN"); dsn != "" {
		pgStore, err := NewGormStore(DriverPostgres, dsn)
		if err != nil {
			t.Fatalf("open postgres store: %v", err)
		}
		pgStore.db.Exec("DELETE FROM chat_messages")
		stores["postgres"] = pgStore
	}

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreAppendAndListOrdering(t *testing.T) {
	ctx := context.Background()
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			contents := []struct {
				content   string
				isChatbot bool
			}{
				{"What is Heat about?", false},
				{`[{"type":"text","data":"A heist film."}]`, true},
				{"Who directed it?", false},
				{`[]`, true},
			}

			var appended []Message
			for _, c := range contents {
				msg, err := s.Append(ctx, c.content, c.isChatbot)
				if err != nil {
					t.Fatalf("append: %v", err)
				}
				if msg.ID == "" || msg.CreatedAt.IsZero() {
					t.Fatalf("append returned incomplete message: %+v", msg)
				}
				appended = append(appended, msg)
			}

			listed, err := s.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(listed) != len(contents) {
				t.Fatalf("expected %d messages, got %d", len(contents), len(listed))
			}
			for i, msg := range listed {
				if msg.ID != appended[i].ID {
					t.Fatalf("message %d id = %s, want %s", i, msg.ID, appended[i].ID)
				}
				if msg.Content != contents[i].content || msg.IsChatbot != contents[i].isChatbot {
					t.Fatalf("message %d = %+v, want %+v", i, msg, contents[i])
				}
				if i > 0 && msg.CreatedAt.Before(listed[i-1].CreatedAt) {
					t.Fatalf("messages not ascending at %d", i)
				}
			}
		})
	}
}

func TestStoreGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			msg, err := s.Append(ctx, "hello", false)
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			got, err := s.Get(ctx, msg.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Content != "hello" || got.IsChatbot {
				t.Fatalf("unexpected message: %+v", got)
			}

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreEmptyList(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			listed, err := s.List(context.Background())
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if listed == nil || len(listed) != 0 {
				t.Fatalf("expected empty non-nil list, got %#v", listed)
			}
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot.db")
	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Append(context.Background(), "remember me", false); err != nil {
		t.Fatalf("append: %v", err)
	}
	first.Close()

	second, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	listed, err := second.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Content != "remember me" {
		t.Fatalf("unexpected messages after reopen: %+v", listed)
	}
}

func TestOpenDrivers(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		driver  string
		dsn     string
		wantErr bool
	}{
		{driver: "memory"},
		{driver: "", dsn: filepath.Join(dir, "default.db")},
		{driver: "SQLite3", dsn: filepath.Join(dir, "upper.db")},
		{driver: "sqlite", dsn: filepath.Join(dir, "gorm.db")},
		{driver: "postgres", dsn: "", wantErr: true},
		{driver: "mysql", dsn: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s, err := Open(tt.driver, tt.dsn)
			if tt.wantErr {
				if err == nil {
					s.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			s.Close()
		})
	}
}

func TestValidDriver(t *testing.T) {
	for _, d := range []string{"", "memory", "sqlite3", "sqlite", "postgres", " Postgres "} {
		if !ValidDriver(d) {
			t.Fatalf("expected %q to be valid", d)
		}
	}
	if ValidDriver("mongo") {
		t.Fatal("expected mongo to be invalid")
	}
}

func TestSQLiteFilePath(t *testing.T) {
	tests := []struct {
		dsn    string
		want   string
		wantOK bool
	}{
		{dsn: "data/chatbot.db", want: "data/chatbot.db", wantOK: true},
		{dsn: "data/chatbot.db?_pragma=busy_timeout(5000)", want: "data/chatbot.db", wantOK: true},
		{dsn: ":memory:", wantOK: false},
		{dsn: "file::memory:?cache=shared", wantOK: false},
		{dsn: "file:/tmp/x.db?mode=memory", wantOK: false},
		{dsn: "file:/tmp/chat.db?cache=shared", want: "/tmp/chat.db", wantOK: true},
	}
	for _, tt := range tests {
		got, ok := sqliteFilePath(tt.dsn)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("sqliteFilePath(%q) = %q, %v; want %q, %v", tt.dsn, got, ok, tt.want, tt.wantOK)
		}
	}
}
