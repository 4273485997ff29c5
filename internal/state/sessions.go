// internal/state/sessions.go
//
// Package state owns per-session runtime state and its durable pieces: the
// in-memory session registry, the on-disk event archive, and the stored
// task definitions.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/user/cloudclaw/internal/memory"
	"github.com/user/cloudclaw/internal/tracker"
	"github.com/user/cloudclaw/internal/types"
)

// Session bundles everything scoped to one session key: identity, the
// bounded event log, and the interaction memory.
type Session struct {
	ID        types.SessionID  `json:"id"`
	Key       types.SessionKey `json:"key"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	Log    *tracker.Log   `json:"-"`
	Memory *memory.Memory `json:"-"`
}

// Touch bumps the session's activity timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now()
}

// Sessions is the registry mapping session keys to live sessions. Each
// session gets its own Log and Memory instance.
type Sessions struct {
	mu        sync.Mutex
	byKey     map[types.SessionKey]*Session
	sink      types.EventSink
	maxEvents int
	memOpts   []memory.Option
}

// SessionsOption configures the registry.
type SessionsOption func(*Sessions)

// WithArchive attaches an event sink wired into every new session's log.
func WithArchive(sink types.EventSink) SessionsOption {
	return func(s *Sessions) { s.sink = sink }
}

// WithLogCapacity sets the per-session event cap for new logs.
func WithLogCapacity(n int) SessionsOption {
	return func(s *Sessions) {
		if n > 0 {
			s.maxEvents = n
		}
	}
}

// WithMemoryOptions sets the options applied to every new session's memory.
func WithMemoryOptions(opts ...memory.Option) SessionsOption {
	return func(s *Sessions) { s.memOpts = opts }
}

// NewSessions creates an empty registry.
func NewSessions(opts ...SessionsOption) *Sessions {
	s := &Sessions{
		byKey:     make(map[types.SessionKey]*Session),
		maxEvents: tracker.DefaultMaxEvents,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveOrCreate returns the session for a key, creating it on first use.
func (s *Sessions) ResolveOrCreate(key types.SessionKey) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byKey[key]; ok {
		sess.Touch()
		return sess
	}

	id := types.NewSessionID()
	logOpts := []tracker.Option{tracker.WithMaxEvents(s.maxEvents)}
	if s.sink != nil {
		logOpts = append(logOpts, tracker.WithSink(s.sink))
	}

	now := time.Now()
	sess := &Session{
		ID:        id,
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
		Log:       tracker.New(id, logOpts...),
		Memory:    memory.New(s.memOpts...),
	}
	s.byKey[key] = sess
	return sess
}

// Get returns the session for a key if it exists.
func (s *Sessions) Get(key types.SessionKey) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byKey[key]
	return sess, ok
}

// List returns all sessions ordered by most recent activity.
func (s *Sessions) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.byKey))
	for _, sess := range s.byKey {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}
