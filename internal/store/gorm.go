package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqliteDriver "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore persists messages through gorm, on postgres or pure-Go sqlite.
type GormStore struct {
	db *gorm.DB
}

type messageRow struct {
	Seq       uint      `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"column:message_id;size:36;uniqueIndex;not null"`
	Content   string    `gorm:"type:text;not null"`
	IsChatbot bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index;not null"`
}

func (messageRow) TableName() string {
	return "chat_messages"
}

func (r messageRow) toMessage() Message {
	return Message{
		ID:        r.ID,
		Content:   r.Content,
		IsChatbot: r.IsChatbot,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func NewGormStore(driver, dsn string) (*GormStore, error) {
	db, err := openGorm(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open gorm store: %w", err)
	}
	if err := db.AutoMigrate(&messageRow{}); err != nil {
		return nil, fmt.Errorf("migrate messages: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(ctx context.Context, content string, isChatbot bool) (Message, error) {
	row := messageRow{
		ID:        uuid.NewString(),
		Content:   content,
		IsChatbot: isChatbot,
		CreatedAt: now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return row.toMessage(), nil
}

func (s *GormStore) Get(ctx context.Context, id string) (Message, error) {
	var row messageRow
	err := s.db.WithContext(ctx).Where("message_id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return row.toMessage(), nil
}

func (s *GormStore) List(ctx context.Context) ([]Message, error) {
	var rows []messageRow
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.toMessage())
	}
	return messages, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		if driver == DriverSQLite {
			dsn = "data/chatbot.db"
		} else {
			return nil, fmt.Errorf("dsn is required for driver %q", driver)
		}
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch driver {
	case DriverSQLite:
		if err := ensureSQLiteDirectory(dsn); err != nil {
			return nil, err
		}
		db, err := gorm.Open(sqliteDriver.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func ensureSQLiteDirectory(dsn string) error {
	path, ok := sqliteFilePath(dsn)
	if !ok {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite db dir: %w", err)
	}
	return nil
}

func sqliteFilePath(dsn string) (string, bool) {
	if isMemoryDSN(dsn) {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(dsn), "file:") {
		parsed, err := url.Parse(dsn)
		if err != nil || parsed.Path == "" {
			return stripQuery(strings.TrimPrefix(dsn, "file:")), true
		}
		return parsed.Path, true
	}
	return stripQuery(dsn), true
}

func stripQuery(v string) string {
	if i := strings.Index(v, "?"); i >= 0 {
		return v[:i]
	}
	return v
}
