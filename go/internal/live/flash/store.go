package flash

import (
	"context"
	"encoding/json"
	"sync"
)

// Message is a one-shot notice shown on the next page
type Message struct {
	Text  string `json:"text"`
	Level string `json:"level"`
}

// Store persists flash messages until they are popped once
type Store interface {
	Put(ctx context.Context, key string, msg Message) error
	// Pop returns and removes the message, nil when there is none
	Pop(ctx context.Context, key string) (*Message, error)
}

// MemoryStore keeps flash messages for the process lifetime
type MemoryStore struct {
	mu   sync.Mutex
	msgs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{msgs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[key] = data
	return nil
}

func (s *MemoryStore) Pop(_ context.Context, key string) (*Message, error) {
	s.mu.Lock()
	data, ok := s.msgs[key]
	delete(s.msgs, key)
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
