// Package gateway turns inbound queries from any front-end (web, telegram,
// CLI, scheduler) into ordered per-session runs.
package gateway

import (
	"context"

	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/types"
)

// Gateway resolves sessions for inbound queries, wraps them in Runs, and
// feeds them through the queue.
type Gateway struct {
	sessions *state.Sessions
	Queue    *Queue
	Retry    *RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Gateway over the session registry with the given concurrency
// cap for simultaneous runs.
func New(sessions *state.Sessions, maxConcurrent int64) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Gateway{
		sessions: sessions,
		Queue:    NewQueue(maxConcurrent),
		Retry:    DefaultRetryPolicy(),
	}
}

// Start initialises the gateway's context and starts the queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the context and drains the queue.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked with the final response text.
func WithOnComplete(fn func(string)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// HandleInbound resolves the query's session and enqueues a Run for it.
func (g *Gateway) HandleInbound(query *types.InboundQuery, opts ...RunOption) error {
	session := g.sessions.ResolveOrCreate(query.SessionKey)
	run := NewRun(session, query)
	for _, opt := range opts {
		opt(run)
	}
	return g.Queue.Enqueue(run)
}
