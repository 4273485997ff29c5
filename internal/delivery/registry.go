// internal/delivery/registry.go
//
// Package delivery routes agent responses back to the front-end that owns a
// session, chosen by session key prefix.
package delivery

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/cloudclaw/internal/types"
)

// Handler delivers a response to the session's front-end.
type Handler func(sessionKey types.SessionKey, message string) error

// Registry maps session key prefixes ("telegram:", "web:") to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for session keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver calls the handler whose prefix matches the session key. An
// unmatched key is an error so dropped responses are visible.
func (r *Registry) Deliver(sessionKey types.SessionKey, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(string(sessionKey), prefix) {
			return handler(sessionKey, message)
		}
	}
	return fmt.Errorf("no delivery handler for session key: %s", sessionKey)
}
