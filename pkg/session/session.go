// Package session provides the per-browser-session state the portal pipeline
// reads and writes: the signed-in user id, the sticky locale and device
// classification, and the visited-group trail that drives merged guest
// navigation. Sessions live in Redis in production and in memory in tests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a session id has no stored state.
var ErrNotFound = errors.New("session not found")

// Well-known session keys.
const (
	KeyUserID         = "userId"
	KeyLocale         = "locale"
	KeyDevice         = "device"
	KeyCustomizedView = "customizedView"

	keyVisitedRecent   = "visitedGroupIdRecent"
	keyVisitedPrevious = "visitedGroupIdPrevious"
)

// Session is one browser session's key-value state. Values are mutated in
// place and persisted with Store.Save. Two concurrent requests from the same
// session race last-write-wins; the stored values are advisory hints, not
// correctness-critical state.
type Session struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
}

// New creates an empty session with a fresh id.
func New() *Session {
	return &Session{
		ID:     uuid.NewString(),
		Values: map[string]string{},
	}
}

// Get returns the value for key, or "" when absent.
func (s *Session) Get(key string) string {
	return s.Values[key]
}

// GetInt64 returns the int64 value for key; absent or malformed values
// return (0, false).
func (s *Session) GetInt64(key string) (int64, bool) {
	v, err := strconv.ParseInt(s.Values[key], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Set stores a value under key.
func (s *Session) Set(key, value string) {
	s.Values[key] = value
}

// SetInt64 stores an int64 value under key.
func (s *Session) SetInt64(key string, value int64) {
	s.Values[key] = strconv.FormatInt(value, 10)
}

// Delete removes a key.
func (s *Session) Delete(key string) {
	delete(s.Values, key)
}

// Store persists sessions by id.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error

	// Invalidate destroys the session. Used when a session references a
	// user that no longer exists.
	Invalidate(ctx context.Context, id string) error
}

// RedisStore implements Store over Redis with a TTL per session.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, ttl: ttl}
}

// Get loads a session by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	sess := &Session{}
	if err := json.Unmarshal([]byte(data), sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return sess, nil
}

// Save persists a session, refreshing its TTL.
func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Invalidate destroys a session.
func (s *RedisStore) Invalidate(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return "session:" + id
}

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*Session{}}
}

// Get loads a session by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := &Session{ID: sess.ID, Values: map[string]string{}}
	for k, v := range sess.Values {
		clone.Values[k] = v
	}
	return clone, nil
}

// Save persists a session.
func (s *MemoryStore) Save(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := &Session{ID: session.ID, Values: map[string]string{}}
	for k, v := range session.Values {
		clone.Values[k] = v
	}
	s.sessions[session.ID] = clone
	return nil
}

// Invalidate destroys a session.
func (s *MemoryStore) Invalidate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
