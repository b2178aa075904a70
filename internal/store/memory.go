package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps messages in process memory. Used by tests and the
// "memory" driver.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, content string, isChatbot bool) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:        uuid.NewString(),
		Content:   content,
		IsChatbot: isChatbot,
		CreatedAt: now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Keep CreatedAt non-decreasing so insertion order and time order agree.
	if n := len(s.messages); n > 0 && msg.CreatedAt.Before(s.messages[n-1].CreatedAt) {
		msg.CreatedAt = s.messages[n-1].CreatedAt
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return Message{}, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
