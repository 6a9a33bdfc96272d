package repository

import (
	"context"
	"sync"
	"time"

	"leihlokal/internal/models"
)

type memoryEntry struct {
	state     models.DragState
	expiresAt time.Time
}

type MemoryStateRepository struct {
	mu         sync.Mutex
	states     map[string]memoryEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		states:     make(map[string]memoryEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryStateRepository) GetDragState(_ context.Context, sessionID string) (*models.DragState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.states[sessionID]
	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && r.now().After(e.expiresAt) {
		delete(r.states, sessionID)
		return nil, nil
	}
	state := e.state
	return &state, nil
}

func (r *MemoryStateRepository) SetDragState(_ context.Context, state *models.DragState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.SessionID] = memoryEntry{state: *state, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryStateRepository) ClearDragState(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, sessionID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
