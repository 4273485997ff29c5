// internal/scheduler/scheduler.go
//
// Package scheduler fires stored queries on their cron schedules, so
// recurring questions ("what did we spend yesterday") run unattended.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/types"
)

// Handler is invoked when a scheduled task fires.
type Handler func(sessionKey types.SessionKey, query string)

// Scheduler registers enabled tasks from the store as cron entries.
type Scheduler struct {
	store   *state.TaskStore
	handler Handler
	cron    *cron.Cron
}

// cronParser accepts standard 5-field expressions plus an optional leading
// seconds field and descriptors like @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler over the task store.
func New(store *state.TaskStore, handler Handler) *Scheduler {
	return &Scheduler{
		store:   store,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers every enabled scheduled task and starts the ticker. Tasks
// with invalid schedules are skipped with a logged error, not fatal.
func (s *Scheduler) Start() error {
	for _, task := range s.store.List() {
		if task.Schedule == "" || !task.Enabled {
			continue
		}

		name := task.Name
		sessionKey := task.SessionKey
		query := task.Query

		_, err := s.cron.AddFunc(task.Schedule, func() {
			slog.Info("scheduled task firing", "name", name, "session_key", string(sessionKey))
			s.handler(sessionKey, query)
			if err := s.store.MarkRan(name, time.Now()); err != nil {
				slog.Warn("mark task ran failed", "name", name, "error", err)
			}
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", name, "schedule", task.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled task", "name", name, "schedule", task.Schedule)
	}

	s.cron.Start()
	return nil
}

// Reload rebuilds the cron entries from the store, picking up task changes.
func (s *Scheduler) Reload() error {
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	return s.Start()
}

// Stop stops the ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
