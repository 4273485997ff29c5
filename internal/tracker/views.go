// internal/tracker/views.go
package tracker

import (
	"time"

	"github.com/user/cloudclaw/internal/types"
)

// Tree groups one conversation's events into roots and a parent-to-children
// map. An event whose parent was evicted (or belongs to another conversation)
// is treated as a root. Consumers follow Children transitively for depth.
type Tree struct {
	Events   []*types.Event                   `json:"events"`
	Children map[types.EventID][]*types.Event `json:"children"`
}

// Summary describes the whole session at a glance.
type Summary struct {
	SessionID         types.SessionID         `json:"session_id"`
	TotalEvents       int                     `json:"total_events"`
	ConversationCount int                     `json:"conversation_count"`
	EventCountsByKind map[types.EventType]int `json:"event_counts_by_kind"`
	FirstTimestamp    *time.Time              `json:"first_timestamp,omitempty"`
	LastTimestamp     *time.Time              `json:"last_timestamp,omitempty"`
}

// ConversationEvents returns all events tagged with the given conversation
// id, in log order. Unknown ids yield an empty slice, not an error.
func (l *Log) ConversationEvents(id types.ConversationID) []*types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*types.Event
	for _, ev := range l.events {
		if conversationOf(ev) == id {
			out = append(out, ev)
		}
	}
	return out
}

// ConversationTree partitions the conversation's events into roots and
// direct children keyed by parent id.
func (l *Log) ConversationTree(id types.ConversationID) *Tree {
	events := l.ConversationEvents(id)

	present := make(map[types.EventID]bool, len(events))
	for _, ev := range events {
		present[ev.ID] = true
	}

	tree := &Tree{
		Events:   []*types.Event{},
		Children: make(map[types.EventID][]*types.Event),
	}
	for _, ev := range events {
		if ev.ParentID != "" && present[ev.ParentID] {
			tree.Children[ev.ParentID] = append(tree.Children[ev.ParentID], ev)
		} else {
			tree.Events = append(tree.Events, ev)
		}
	}
	return tree
}

// Recent returns the last limit events across the whole session, in log
// order. A limit at or beyond the log length returns everything.
func (l *Log) Recent(limit int) []*types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit < 0 {
		limit = 0
	}
	start := len(l.events) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*types.Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Summary computes totals over every retained event regardless of
// conversation.
func (l *Log) Summary() *Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := &Summary{
		SessionID:         l.sessionID,
		TotalEvents:       len(l.events),
		EventCountsByKind: make(map[types.EventType]int),
	}

	conversations := make(map[types.ConversationID]bool)
	for _, ev := range l.events {
		s.EventCountsByKind[ev.Type]++
		if cid := conversationOf(ev); cid != "" {
			conversations[cid] = true
		}
	}
	s.ConversationCount = len(conversations)

	if len(l.events) > 0 {
		first := l.events[0].Timestamp
		last := l.events[len(l.events)-1].Timestamp
		s.FirstTimestamp = &first
		s.LastTimestamp = &last
	}
	return s
}

func conversationOf(ev *types.Event) types.ConversationID {
	raw, ok := ev.Metadata["conversation_id"]
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	return types.ConversationID(s)
}
