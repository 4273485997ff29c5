// internal/state/task.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/cloudclaw/internal/types"
)

// Task is a stored query run on a cron schedule against a fixed session.
type Task struct {
	Name       string           `json:"name"`
	Query      string           `json:"query"`
	Schedule   string           `json:"schedule"`
	SessionKey types.SessionKey `json:"session_key"`
	Enabled    bool             `json:"enabled"`
	CreatedAt  time.Time        `json:"created_at"`
	LastRunAt  *time.Time       `json:"last_run_at,omitempty"`
}

// TaskStore persists task definitions as a single JSON file with atomic
// writes.
type TaskStore struct {
	mu    sync.Mutex
	path  string
	tasks map[string]*Task
}

// NewTaskStore loads tasks.json from dataDir, creating an empty store when
// the file does not exist yet.
func NewTaskStore(dataDir string) (*TaskStore, error) {
	s := &TaskStore{
		path:  filepath.Join(dataDir, "tasks.json"),
		tasks: make(map[string]*Task),
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task store: %w", err)
	}

	var tasks []*Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse task store: %w", err)
	}
	for _, t := range tasks {
		s.tasks[t.Name] = t
	}
	return s, nil
}

// Put adds or replaces a task and persists the store.
func (s *TaskStore) Put(task *Task) error {
	if task.Name == "" {
		return fmt.Errorf("task name required")
	}
	if task.Query == "" {
		return fmt.Errorf("task query required")
	}
	if task.Schedule == "" {
		return fmt.Errorf("task schedule required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	s.tasks[task.Name] = task
	return s.save()
}

// Get returns a task by name.
func (s *TaskStore) Get(name string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	return t, ok
}

// Delete removes a task and persists the store. Deleting a missing task is
// an error so the CLI can report typos.
func (s *TaskStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; !ok {
		return fmt.Errorf("no task named %q", name)
	}
	delete(s.tasks, name)
	return s.save()
}

// SetEnabled toggles a task and persists the store.
func (s *TaskStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("no task named %q", name)
	}
	t.Enabled = enabled
	return s.save()
}

// MarkRan stamps a task's last run time and persists the store.
func (s *TaskStore) MarkRan(name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("no task named %q", name)
	}
	t.LastRunAt = &at
	return s.save()
}

// List returns all tasks sorted by name.
func (s *TaskStore) List() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// save writes the store atomically: temp file in the same directory, then
// rename over the target.
func (s *TaskStore) save() error {
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write task store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace task store: %w", err)
	}
	return nil
}
