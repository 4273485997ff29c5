// internal/types/events.go
package types

import (
	"encoding/json"
	"time"

	"github.com/user/cloudclaw/pkg/llm"
)

// EventType identifies the kind of conversation event.
type EventType string

const (
	EventUserMessage      EventType = "user_message"
	EventAgentResponse    EventType = "agent_response"
	EventModelRequest     EventType = "model_request"
	EventModelResponse    EventType = "model_response"
	EventToolCall         EventType = "tool_call"
	EventToolResponse     EventType = "tool_response"
	EventCommandExecution EventType = "command_execution"
	EventCommandResult    EventType = "command_result"
	EventAgentReasoning   EventType = "agent_reasoning"
	EventError            EventType = "error"
	EventSystemEvent      EventType = "system_event"
)

// Event is one recorded occurrence in a conversation turn. ParentID is a
// back-reference to the event that caused this one (a response's originating
// request); it carries no ownership and may dangle after eviction.
type Event struct {
	ID         EventID        `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       EventType      `json:"event_type"`
	Content    any            `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	SessionID  SessionID      `json:"session_id"`
	ParentID   EventID        `json:"parent_id,omitempty"`
	DurationMS float64        `json:"duration_ms,omitempty"`
}

// Per-kind content payloads. Each event type carries exactly one of these in
// Content, so the fields a kind needs are checked at the logging call site.

// UserMessage is the content of a user_message event.
type UserMessage struct {
	Text string `json:"text"`
}

// ModelRequest is the content of a model_request event.
type ModelRequest struct {
	Messages []llm.Message `json:"messages"`
	Tools    []llm.Tool    `json:"tools,omitempty"`
	Model    string        `json:"model,omitempty"`
}

// ModelResponse is the content of a model_response event.
type ModelResponse struct {
	Content   string          `json:"content"`
	ToolCalls []llm.ToolCall  `json:"tool_calls,omitempty"`
	Raw       json.RawMessage `json:"raw_response,omitempty"`
}

// ToolCall is the content of a tool_call event.
type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	CallID    string         `json:"tool_call_id,omitempty"`
}

// ToolResponse is the content of a tool_response event.
type ToolResponse struct {
	Result  any    `json:"result"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CommandExecution is the content of a command_execution event.
type CommandExecution struct {
	Command string `json:"command"`
}

// CommandResult is the content of a command_result event.
type CommandResult struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Reasoning is the content of an agent_reasoning event.
type Reasoning struct {
	Reasoning string `json:"reasoning"`
	Type      string `json:"type"`
}

// ErrorDetail is the content of an error event.
type ErrorDetail struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// AgentResponse is the content of an agent_response event.
type AgentResponse struct {
	Text string `json:"text"`
}

// SystemEvent is the content of a system_event event.
type SystemEvent struct {
	Description string `json:"description"`
}
