// internal/tracker/log.go
//
// Package tracker records the full timeline of an LLM-driven AWS interaction:
// user messages, model requests and responses, command executions and their
// results, agent reasoning, and errors. Events form a shallow call tree per
// conversation turn via parent back-references.
package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/user/cloudclaw/internal/types"
)

// DefaultMaxEvents is the event cap applied when no explicit cap is given.
const DefaultMaxEvents = 1000

// Log is an append-only, capacity-bounded conversation event log for one
// session. Appends never fail: when the cap is exceeded the oldest events
// are dropped, which may leave dangling parent references on survivors.
//
// Responses are attributed to their originating call by an explicit
// correlation id: the open-call operations (LogModelRequest, LogToolCall,
// LogCommandExecution) return the event id the caller must pass back to the
// matching close-call operation. A zero id yields a parentless event.
//
// All operations are safe for concurrent use.
type Log struct {
	mu        sync.Mutex
	sessionID types.SessionID
	maxEvents int
	events    []*types.Event
	current   types.ConversationID
	sink      types.EventSink
}

// Option configures a Log.
type Option func(*Log)

// WithMaxEvents overrides the default event cap. Values below 1 are ignored.
func WithMaxEvents(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxEvents = n
		}
	}
}

// WithSink attaches an EventSink that receives a copy of every appended
// event. Sink errors are logged and swallowed.
func WithSink(sink types.EventSink) Option {
	return func(l *Log) { l.sink = sink }
}

// New creates an empty Log for the given session.
func New(sessionID types.SessionID, opts ...Option) *Log {
	l := &Log{
		sessionID: sessionID,
		maxEvents: DefaultMaxEvents,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SessionID returns the owning session's id.
func (l *Log) SessionID() types.SessionID {
	return l.sessionID
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// CurrentConversation returns the id of the conversation started by the most
// recent user message, or the zero value if none is active.
func (l *Log) CurrentConversation() types.ConversationID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// StartConversation begins a new conversation turn. It mints a fresh
// conversation id, makes it current, and records the user message with a
// 1-based turn number counting prior user messages still retained.
func (l *Log) StartConversation(userMessage string) types.ConversationID {
	l.mu.Lock()
	defer l.mu.Unlock()

	conversationID := types.NewConversationID()
	l.current = conversationID

	turn := 1
	for _, ev := range l.events {
		if ev.Type == types.EventUserMessage {
			turn++
		}
	}

	l.append(&types.Event{
		Type:    types.EventUserMessage,
		Content: types.UserMessage{Text: userMessage},
		Metadata: map[string]any{
			"turn_number": turn,
		},
	})
	return conversationID
}

// LogModelRequest records an outbound LLM request and returns its event id,
// which the caller passes to LogModelResponse to link the reply. parent is
// optional and links the request itself under another event.
func (l *Log) LogModelRequest(req types.ModelRequest, parent types.EventID) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:     types.EventModelRequest,
		Content:  req,
		ParentID: parent,
		Metadata: map[string]any{
			"message_count": len(req.Messages),
			"has_tools":     len(req.Tools) > 0,
			"tool_count":    len(req.Tools),
		},
	})
}

// LogModelResponse records an LLM reply. call is the id returned by the
// matching LogModelRequest; a zero id produces a root-level event.
func (l *Log) LogModelResponse(call types.EventID, resp types.ModelResponse, elapsed time.Duration) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:       types.EventModelResponse,
		Content:    resp,
		ParentID:   call,
		DurationMS: durationMS(elapsed),
		Metadata: map[string]any{
			"has_content":     resp.Content != "",
			"has_tool_calls":  len(resp.ToolCalls) > 0,
			"tool_call_count": len(resp.ToolCalls),
		},
	})
}

// LogToolCall records a tool invocation and returns its event id for
// correlation with LogToolResponse.
func (l *Log) LogToolCall(call types.ToolCall, parent types.EventID) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:     types.EventToolCall,
		Content:  call,
		ParentID: parent,
		Metadata: map[string]any{
			"argument_count": len(call.Arguments),
		},
	})
}

// LogToolResponse records a tool's result against the originating call id.
func (l *Log) LogToolResponse(call types.EventID, resp types.ToolResponse, elapsed time.Duration) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:       types.EventToolResponse,
		Content:    resp,
		ParentID:   call,
		DurationMS: durationMS(elapsed),
		Metadata: map[string]any{
			"success":   resp.Success,
			"has_error": resp.Error != "",
		},
	})
}

// LogCommandExecution records the start of an external CLI command and
// returns its event id for correlation with LogCommandResult.
func (l *Log) LogCommandExecution(command string, parent types.EventID) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:     types.EventCommandExecution,
		Content:  types.CommandExecution{Command: command},
		ParentID: parent,
		Metadata: map[string]any{
			"command_length": len(command),
		},
	})
}

// LogCommandResult records a command's outcome against the originating
// execution id.
func (l *Log) LogCommandResult(call types.EventID, result types.CommandResult, elapsed time.Duration) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:       types.EventCommandResult,
		Content:    result,
		ParentID:   call,
		DurationMS: durationMS(elapsed),
		Metadata: map[string]any{
			"success":    result.Success,
			"has_output": result.Output != "",
			"has_error":  result.Error != "",
		},
	})
}

// LogReasoning records free-form agent reasoning. It does not participate in
// call/response correlation.
func (l *Log) LogReasoning(reasoning, reasoningType string, parent types.EventID) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:     types.EventAgentReasoning,
		Content:  types.Reasoning{Reasoning: reasoning, Type: reasoningType},
		ParentID: parent,
		Metadata: map[string]any{
			"reasoning_type":   reasoningType,
			"reasoning_length": len(reasoning),
		},
	})
}

// LogError records an error encountered while serving the turn. Errors from
// recorded operations are events, never failures of the log itself.
func (l *Log) LogError(message, errorType string, parent types.EventID) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:     types.EventError,
		Content:  types.ErrorDetail{Error: message, Type: errorType},
		ParentID: parent,
		Metadata: map[string]any{
			"error_type": errorType,
		},
	})
}

// LogAgentResponse records the final reply delivered to the user, the
// terminal event of a turn.
func (l *Log) LogAgentResponse(text string, parent types.EventID) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:     types.EventAgentResponse,
		Content:  types.AgentResponse{Text: text},
		ParentID: parent,
		Metadata: map[string]any{
			"response_length": len(text),
		},
	})
}

// LogSystemEvent records a lifecycle occurrence (startup, reset, adapter
// attach) not tied to a specific turn.
func (l *Log) LogSystemEvent(description string) types.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.append(&types.Event{
		Type:     types.EventSystemEvent,
		Content:  types.SystemEvent{Description: description},
		Metadata: map[string]any{},
	})
}

// Clear empties the event sequence and resets the current-conversation
// cursor. The session id is preserved.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.current = ""
}

// append finalizes identity fields, tags the event with the current
// conversation, enforces the cap, and hands a copy to the sink. Caller must
// hold l.mu.
func (l *Log) append(ev *types.Event) types.EventID {
	ev.ID = types.NewEventID()
	ev.Timestamp = time.Now()
	ev.SessionID = l.sessionID
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	if l.current != "" {
		ev.Metadata["conversation_id"] = string(l.current)
	}

	l.events = append(l.events, ev)
	l.events = dropOldest(l.events, l.maxEvents)

	if l.sink != nil {
		if err := l.sink.Record(ev); err != nil {
			slog.Warn("event sink failed", "session_id", string(l.sessionID), "event_id", string(ev.ID), "error", err)
		}
	}
	return ev.ID
}

// dropOldest trims events to at most max entries, discarding from the front.
// Eviction is unconditional FIFO; no attempt is made to repair parent links
// into the dropped prefix.
func dropOldest(events []*types.Event, max int) []*types.Event {
	if len(events) <= max {
		return events
	}
	keep := events[len(events)-max:]
	// Copy so the dropped prefix can be collected.
	out := make([]*types.Event, max)
	copy(out, keep)
	return out
}

func durationMS(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
