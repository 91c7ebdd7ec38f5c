package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// holder is one row in the lock table.
type holder struct {
	token     Token
	expiresAt time.Time
}

func (h holder) expired(now time.Time) bool {
	return !h.expiresAt.After(now)
}

// Memory is an in-process Locker backed by a mutex-guarded table.
// Each instance owns its own table; construct one per runtime (or per
// test) rather than sharing a process-wide singleton.
type Memory struct {
	mu    sync.Mutex
	table map[string]holder
}

var _ Locker = (*Memory)(nil)

// NewMemory creates an empty in-process lock table.
func NewMemory() *Memory {
	return &Memory{table: make(map[string]holder)}
}

// Acquire inserts a new holder if the key is absent. If the key is
// present but the holder's ttl has elapsed, the stale row is removed and
// the insert retried once (expired-lock takeover). Losing that retry
// reports busy; callers retry at a higher level.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (Token, bool, error) {
	now := time.Now()
	token := Token(uuid.NewString())

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.table[key]
	if exists && !cur.expired(now) {
		return "", false, nil
	}
	if exists {
		// Takeover: drop the expired holder, then insert. Under a single
		// mutex the retry cannot lose, but the shape mirrors the
		// contract so networked implementations behave identically.
		delete(m.table, key)
	}

	m.table[key] = holder{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release deletes the entry only when token is the current owner. An
// expired holder is not an owner anymore even if the row still exists.
func (m *Memory) Release(_ context.Context, key string, token Token) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.table[key]
	if !exists || cur.token != token {
		return false, nil
	}
	delete(m.table, key)
	if cur.expired(now) {
		return false, nil
	}
	return true, nil
}

// Locked reports whether key has an unexpired holder.
func (m *Memory) Locked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.table[key]
	return exists && !cur.expired(time.Now()), nil
}
