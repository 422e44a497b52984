// Package session stores server-held conversations between turns.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
)

// ErrNotFound is returned when a conversation does not exist or has expired.
var ErrNotFound = errors.New("conversation not found")

// Store keeps conversations by ID.
type Store interface {
	Get(ctx context.Context, id string) (*model.Conversation, error)
	Set(ctx context.Context, conv *model.Conversation) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]model.Conversation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]model.Conversation)}
}

// Get returns a copy of the stored conversation.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(conv), nil
}

// Set stores a copy of conv.
func (s *MemoryStore) Set(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	s.conversations[conv.ID] = *cloneConversation(*conv)
	s.mu.Unlock()
	return nil
}

// Delete removes a conversation.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// cloneConversation copies the suggested slot so callers cannot mutate
// stored state through the pointer.
func cloneConversation(conv model.Conversation) *model.Conversation {
	if conv.Context.SuggestedSlot != nil {
		iv := *conv.Context.SuggestedSlot
		conv.Context.SuggestedSlot = &iv
	}
	return &conv
}
