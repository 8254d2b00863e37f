// Package checkpoint persists conversation state between turns so a thread
// survives process restarts. Backends: local files, S3, Redis.
package checkpoint

import (
	"context"
	"errors"
	"sync"

	"mealmind/router"
)

// Store is the persistence contract the router saves through. Load reports
// found=false for a thread with no checkpoint; an error means the backend
// itself failed.
type Store interface {
	Save(ctx context.Context, threadID string, state *router.ConversationState) error
	Load(ctx context.Context, threadID string) (*router.ConversationState, bool, error)
}

// TestStore is a simple in-memory implementation for testing.
type TestStore struct {
	mu     sync.Mutex
	states map[string]*router.ConversationState
	err    error
}

func NewTestStore() *TestStore {
	return &TestStore{states: make(map[string]*router.ConversationState)}
}

func NewTestStoreWithError() *TestStore {
	return &TestStore{states: make(map[string]*router.ConversationState), err: errors.New("checkpoint backend down")}
}

func (t *TestStore) Save(ctx context.Context, threadID string, state *router.ConversationState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	copied := *state
	t.states[threadID] = &copied
	return nil
}

func (t *TestStore) Load(ctx context.Context, threadID string) (*router.ConversationState, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, false, t.err
	}
	state, ok := t.states[threadID]
	if !ok {
		return nil, false, nil
	}
	copied := *state
	return &copied, true, nil
}
