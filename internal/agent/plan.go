package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Plan actions the model may choose.
const (
	ActionExecuteCommand   = "execute_command"
	ActionProvideInfo      = "provide_info"
	ActionAskClarification = "ask_clarification"
)

// Plan is the structured decision the model returns for a query: either a
// CLI command to run, an informational answer, or a clarifying question.
type Plan struct {
	Action      string `json:"action"`
	Command     string `json:"command,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Response    string `json:"response,omitempty"`
}

// Suggestion is one candidate command offered without executing it.
type Suggestion struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Service     string `json:"service,omitempty"`
}

// ParsePlan decodes a model reply into a Plan. Markdown code fences around
// the JSON are tolerated. Returns an error when the reply is not a plan at
// all, in which case callers surface the raw text.
func ParsePlan(raw string) (*Plan, error) {
	cleaned := stripFences(raw)

	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	switch plan.Action {
	case ActionExecuteCommand:
		if strings.TrimSpace(plan.Command) == "" {
			return nil, fmt.Errorf("parse plan: execute_command without a command")
		}
	case ActionProvideInfo, ActionAskClarification:
		if strings.TrimSpace(plan.Response) == "" {
			return nil, fmt.Errorf("parse plan: %s without a response", plan.Action)
		}
	default:
		return nil, fmt.Errorf("parse plan: unknown action %q", plan.Action)
	}
	return &plan, nil
}

// ParseSuggestions decodes a model reply into a suggestion list. When the
// reply is not valid JSON the whole text becomes a single description-only
// suggestion so the user still sees something useful.
func ParseSuggestions(raw string) []Suggestion {
	cleaned := stripFences(raw)

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestions); err == nil {
		return suggestions
	}

	// Some models wrap the list in an object.
	var wrapped struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && len(wrapped.Suggestions) > 0 {
		return wrapped.Suggestions
	}

	return []Suggestion{{Description: strings.TrimSpace(raw)}}
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.HasPrefix(first, "{") && !strings.HasPrefix(first, "[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
