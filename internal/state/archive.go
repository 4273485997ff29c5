// internal/state/archive.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/cloudclaw/internal/types"
)

// Archive persists every recorded event as JSONL, one file per session,
// under <dataDir>/sessions/<session_id>/events.jsonl. It implements
// types.EventSink so logs can stream into it.
type Archive struct {
	mu      sync.Mutex
	dataDir string
}

// NewArchive creates the archive root if needed.
func NewArchive(dataDir string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "sessions"), 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{dataDir: dataDir}, nil
}

// Record appends one event to its session's JSONL file.
func (a *Archive) Record(ev *types.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir := a.sessionDir(ev.SessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Tail returns up to limit of the most recent archived events for a session.
// A limit of zero or less returns all of them.
func (a *Archive) Tail(ctx context.Context, sessionID types.SessionID, limit int) ([]*types.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := filepath.Join(a.sessionDir(sessionID), "events.jsonl")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	defer f.Close()

	var events []*types.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var ev types.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			// Skip torn lines from interrupted writes.
			continue
		}
		events = append(events, &ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event file: %w", err)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Count returns the number of archived events for a session.
func (a *Archive) Count(ctx context.Context, sessionID types.SessionID) (int, error) {
	events, err := a.Tail(ctx, sessionID, 0)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// SessionIDs lists every session with an archive directory.
func (a *Archive) SessionIDs() ([]types.SessionID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(a.dataDir, "sessions"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	var ids []types.SessionID
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, types.SessionID(e.Name()))
		}
	}
	return ids, nil
}

func (a *Archive) sessionDir(id types.SessionID) string {
	return filepath.Join(a.dataDir, "sessions", string(id))
}
