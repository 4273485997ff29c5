// internal/memory/memory.go
//
// Package memory keeps a short rolling window of past interactions per
// session so prompts can reference what the user already asked for. The
// window is token-budgeted with tiktoken so the context summary never
// crowds out the actual request.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultMaxInteractions bounds the rolling window.
	DefaultMaxInteractions = 20
	// DefaultTokenBudget caps the rendered context summary.
	DefaultTokenBudget = 1000

	encodingName = "cl100k_base"
)

// Interaction is one completed query/response cycle.
type Interaction struct {
	Query    string    `json:"query"`
	Command  string    `json:"command,omitempty"`
	Response string    `json:"response"`
	At       time.Time `json:"at"`
}

// Stats is the JSON shape served by the memory endpoints.
type Stats struct {
	TotalInteractions int      `json:"total_interactions"`
	RecentCommands    []string `json:"recent_commands"`
	ContextSummary    string   `json:"context_summary"`
}

// Memory is a bounded, token-budgeted interaction history. Safe for
// concurrent use.
type Memory struct {
	mu           sync.Mutex
	interactions []Interaction
	total        int
	max          int
	tokenBudget  int
	encoder      *tiktoken.Tiktoken
}

// Option configures a Memory.
type Option func(*Memory)

// WithMaxInteractions overrides the rolling window size.
func WithMaxInteractions(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithTokenBudget overrides the context summary token cap.
func WithTokenBudget(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.tokenBudget = n
		}
	}
}

// New creates an empty Memory. The tokenizer is loaded lazily on first use
// so construction never fails.
func New(opts ...Option) *Memory {
	m := &Memory{
		max:         DefaultMaxInteractions,
		tokenBudget: DefaultTokenBudget,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record appends one interaction, evicting the oldest past the window.
func (m *Memory) Record(query, command, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.interactions = append(m.interactions, Interaction{
		Query:    query,
		Command:  command,
		Response: response,
		At:       time.Now(),
	})
	m.total++
	if len(m.interactions) > m.max {
		m.interactions = m.interactions[len(m.interactions)-m.max:]
	}
}

// Clear drops the window but keeps the lifetime total.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = nil
}

// Total returns the lifetime interaction count, including evicted ones.
func (m *Memory) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// RecentCommands returns the commands from the retained window, newest last,
// skipping interactions that ran no command.
func (m *Memory) RecentCommands(limit int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var commands []string
	for _, it := range m.interactions {
		if it.Command != "" {
			commands = append(commands, it.Command)
		}
	}
	if limit > 0 && len(commands) > limit {
		commands = commands[len(commands)-limit:]
	}
	return commands
}

// ContextSummary renders the retained window for prompt injection, newest
// first, trimmed to the token budget.
func (m *Memory) ContextSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.interactions) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous interactions in this session:\n")
	for i := len(m.interactions) - 1; i >= 0; i-- {
		it := m.interactions[i]
		line := fmt.Sprintf("- User asked: %s", it.Query)
		if it.Command != "" {
			line += fmt.Sprintf(" (ran: %s)", it.Command)
		}
		line += "\n"

		if m.countTokens(b.String()+line) > m.tokenBudget {
			break
		}
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Stats snapshots the memory for the API.
func (m *Memory) Stats() Stats {
	return Stats{
		TotalInteractions: m.Total(),
		RecentCommands:    m.RecentCommands(5),
		ContextSummary:    m.ContextSummary(),
	}
}

// countTokens uses the cl100k encoder when available and falls back to a
// rough 4 chars/token estimate when the encoding data cannot be loaded.
func (m *Memory) countTokens(text string) int {
	if m.encoder == nil {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			return len(text) / 4
		}
		m.encoder = enc
	}
	return len(m.encoder.Encode(text, nil, nil))
}
