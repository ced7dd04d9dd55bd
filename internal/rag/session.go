package rag

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"veritas-backend/internal/logger"
)

// Session is the per-conversation state: one active document and an
// append-only chat history, cleared whenever a new document is uploaded.
// Callers must hold the session lock across a full request so history appends
// never interleave and an upload reset cannot race an in-flight turn.
type Session struct {
	mu sync.Mutex

	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	History    []ChatTurn `json:"history"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

func (s *Session) appendTurn(role, content string) {
	s.History = append(s.History, ChatTurn{Role: role, Content: content})
	s.UpdatedAt = time.Now()
}

// SessionStore owns session lifecycle: lookup-or-create, reset on upload,
// persistence, and idle sweeping.
type SessionStore interface {
	Get(id string) *Session
	// Reset clears history and binds the session to a new document. An empty
	// documentID clears the binding entirely.
	Reset(id, documentID string) *Session
	// Save persists the session after a request mutates it. Implementations
	// may treat it as a no-op.
	Save(sess *Session)
	// SweepIdle drops sessions untouched for longer than maxAge and reports
	// how many were removed.
	SweepIdle(maxAge time.Duration) int
}

// MemorySessionStore is the in-process store. Sessions live until swept.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (m *MemorySessionStore) Get(id string) *Session {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return sess
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		return sess
	}
	sess = &Session{ID: id, UpdatedAt: time.Now()}
	m.sessions[id] = sess
	return sess
}

func (m *MemorySessionStore) Reset(id, documentID string) *Session {
	sess := m.Get(id)
	sess.Lock()
	defer sess.Unlock()
	sess.DocumentID = documentID
	sess.History = nil
	sess.UpdatedAt = time.Now()
	return sess
}

func (m *MemorySessionStore) Save(sess *Session) {}

func (m *MemorySessionStore) SweepIdle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RedisSessionStore layers write-through persistence over the in-memory
// store, so sessions survive a process restart. Redis failures degrade to
// memory-only behavior.
type RedisSessionStore struct {
	mem *MemorySessionStore
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		mem: NewMemorySessionStore(),
		rdb: rdb,
		ttl: ttl,
	}
}

func sessionKey(id string) string { return "session:" + id }

func (r *RedisSessionStore) Get(id string) *Session {
	sess := r.mem.Get(id)

	sess.Lock()
	defer sess.Unlock()
	if sess.History != nil || sess.DocumentID != "" {
		return sess
	}

	// Cold session: try to restore a snapshot.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		return sess
	}
	var snapshot Session
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logger.Warn("Discarding corrupt session snapshot", "session", id, "error", err)
		return sess
	}
	sess.DocumentID = snapshot.DocumentID
	sess.History = snapshot.History
	sess.UpdatedAt = snapshot.UpdatedAt
	return sess
}

func (r *RedisSessionStore) Reset(id, documentID string) *Session {
	sess := r.mem.Reset(id, documentID)
	r.Save(sess)
	return sess
}

func (r *RedisSessionStore) Save(sess *Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.Set(ctx, sessionKey(sess.ID), data, r.ttl).Err(); err != nil {
		logger.Warn("Session snapshot write failed", "session", sess.ID, "error", err)
	}
}

func (r *RedisSessionStore) SweepIdle(maxAge time.Duration) int {
	// Redis entries expire through their TTL; only the memory layer needs
	// sweeping.
	return r.mem.SweepIdle(maxAge)
}
