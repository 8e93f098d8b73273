package apikey

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]*Key
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]*Key)}
}

func (r *memoryRepository) Create(_ context.Context, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[key.ID]; exists {
		return errors.New("key exists")
	}
	stored := key
	r.storage[key.ID] = &stored
	return nil
}

func (r *memoryRepository) FindByKeyID(_ context.Context, keyID string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.storage {
		if key.KeyID == keyID {
			return *key, nil
		}
	}
	return Key{}, ErrNotFound
}

func (r *memoryRepository) Get(_ context.Context, id, userID string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.storage[id]
	if !ok || key.UserID != userID {
		return Key{}, ErrNotFound
	}
	return *key, nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Key
	for _, key := range r.storage {
		if key.UserID == userID {
			out = append(out, *key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) CountActive(_ context.Context, userID string, now time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, key := range r.storage {
		if key.UserID == userID && key.IsActive(now) {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) MarkInactive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	key.Active = false
	return nil
}

func (r *memoryRepository) MarkExpired(_ context.Context, userID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, key := range r.storage {
		if key.UserID == userID && key.Active && !now.Before(key.ExpiresAt) {
			key.Active = false
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) Revoke(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.storage[id]
	if !ok || key.UserID != userID {
		return ErrNotFound
	}
	key.Revoked = true
	key.Active = false
	return nil
}

func (r *memoryRepository) TouchLastUsed(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	key.LastUsedAt = now
	return nil
}

// expire is a test helper that backdates a key's expiry.
func (r *memoryRepository) expire(id string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.storage[id]; ok {
		key.ExpiresAt = expiresAt
	}
}
