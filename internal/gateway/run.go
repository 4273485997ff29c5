package gateway

import (
	"context"
	"time"

	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/types"
)

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one inbound query being processed against its session.
type Run struct {
	ID         types.RunID
	Session    *state.Session
	Query      *types.InboundQuery
	Status     RunStatus
	Attempts   int
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Err        error
	Ctx        context.Context
	OnComplete func(response string)
}

// NewRun creates a queued Run for the given session and query.
func NewRun(session *state.Session, query *types.InboundQuery) *Run {
	return &Run{
		ID:        types.NewRunID(),
		Session:   session,
		Query:     query,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Begin marks the run as started.
func (r *Run) Begin() {
	now := time.Now()
	r.StartedAt = &now
	r.Status = RunStatusRunning
	r.Attempts++
}

// Finish marks the run complete or failed depending on err.
func (r *Run) Finish(err error) {
	now := time.Now()
	r.EndedAt = &now
	r.Err = err
	if err != nil {
		r.Status = RunStatusFailed
	} else {
		r.Status = RunStatusComplete
	}
}
