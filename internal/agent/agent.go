// Package agent answers natural-language infrastructure questions by asking
// an LLM for a plan, running the proposed AWS CLI command, and asking the
// model to narrate the output. Every step is recorded in the session's
// event log.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/cloudclaw/internal/awscli"
	"github.com/user/cloudclaw/internal/gateway"
	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/types"
	"github.com/user/cloudclaw/pkg/llm"
)

// CommandRunner executes AWS CLI commands. Satisfied by *awscli.Runner.
type CommandRunner interface {
	Execute(ctx context.Context, command string) *awscli.Result
	ReadOnly() bool
}

// Options tunes agent behavior.
type Options struct {
	// Model is recorded on model_request events for traceability.
	Model string
	// Region is surfaced in prompts so the model targets the right region.
	Region string
	// RequireMutationConsent makes the agent describe mutating commands and
	// ask for confirmation instead of running them.
	RequireMutationConsent bool
	// MaxOutputChars truncates command output before the formatting call.
	MaxOutputChars int
}

const defaultMaxOutputChars = 20000

// Agent orchestrates one query end to end.
type Agent struct {
	provider llm.Provider
	runner   CommandRunner
	retry    *gateway.RetryPolicy
	opts     Options
}

// New creates an Agent. A nil retry policy disables retries.
func New(provider llm.Provider, runner CommandRunner, retry *gateway.RetryPolicy, opts Options) *Agent {
	if opts.MaxOutputChars <= 0 {
		opts.MaxOutputChars = defaultMaxOutputChars
	}
	return &Agent{
		provider: provider,
		runner:   runner,
		retry:    retry,
		opts:     opts,
	}
}

// ProcessRun adapts the agent to the gateway queue: it answers the run's
// query and delivers the response through OnComplete.
func (a *Agent) ProcessRun(run *gateway.Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	response := a.ProcessQuery(ctx, run.Session, run.Query.Text)
	if run.OnComplete != nil {
		run.OnComplete(response)
	}
	return nil
}

// ProcessQuery answers one natural-language query against a session. It is
// total: every failure becomes a readable reply, recorded as an error event.
func (a *Agent) ProcessQuery(ctx context.Context, sess *state.Session, query string) string {
	sess.Log.StartConversation(query)
	sess.Touch()

	plan, respID, raw, err := a.plan(ctx, sess, query)
	if err != nil {
		sess.Log.LogError(err.Error(), "llm", "")
		reply := "Sorry, I could not reach the language model. Please try again."
		sess.Log.LogAgentResponse(reply, "")
		return reply
	}
	if plan == nil {
		// The model answered in prose instead of a plan. Surface it as-is.
		sess.Log.LogReasoning("model reply was not a structured plan, returning it verbatim", "plan_parse", respID)
		answer := strings.TrimSpace(raw)
		sess.Log.LogAgentResponse(answer, "")
		sess.Memory.Record(query, "", answer)
		return answer
	}

	var answer, command string
	switch plan.Action {
	case ActionExecuteCommand:
		answer, command = a.runPlan(ctx, sess, query, plan, respID)
	case ActionProvideInfo, ActionAskClarification:
		answer = plan.Response
	}

	sess.Log.LogAgentResponse(answer, "")
	sess.Memory.Record(query, command, answer)
	return answer
}

// plan asks the model for a structured plan. Returns a nil plan with the raw
// text when the reply is not parseable as one.
func (a *Agent) plan(ctx context.Context, sess *state.Session, query string) (*Plan, types.EventID, string, error) {
	system := renderPrompt(planPrompt, promptData{
		Region:   a.opts.Region,
		ReadOnly: a.runner.ReadOnly(),
		Memory:   sess.Memory.ContextSummary(),
	})

	raw, respID, err := a.generate(ctx, sess, system, query, "")
	if err != nil {
		return nil, "", "", err
	}

	plan, perr := ParsePlan(raw)
	if perr != nil {
		return nil, respID, raw, nil
	}
	if plan.Explanation != "" {
		sess.Log.LogReasoning(plan.Explanation, "plan", respID)
	}
	return plan, respID, raw, nil
}

// runPlan executes the planned command and narrates its output. Returns the
// user-facing answer and the command actually run (empty when refused).
func (a *Agent) runPlan(ctx context.Context, sess *state.Session, query string, plan *Plan, parent types.EventID) (answer, command string) {
	command = strings.TrimSpace(plan.Command)

	if a.opts.RequireMutationConsent && awscli.IsMutation(command) {
		sess.Log.LogReasoning("mutating command held for confirmation", "consent", parent)
		return fmt.Sprintf(
			"This will modify your resources:\n\n    %s\n\n%s\n\nRun it explicitly if you want to proceed.",
			command, plan.Explanation), ""
	}

	cmdID := sess.Log.LogCommandExecution(command, parent)
	started := time.Now()
	result := a.runner.Execute(ctx, command)
	sess.Log.LogCommandResult(cmdID, types.CommandResult{
		Command: result.Command,
		Success: result.Success,
		Output:  result.Output,
		Error:   result.Error,
	}, time.Since(started))

	if !result.Success {
		return fmt.Sprintf("The command failed:\n\n    %s\n\n%s", command, result.Error), command
	}

	return a.narrate(ctx, sess, query, command, result.Output, cmdID), command
}

// narrate asks the model to summarize command output, falling back to the
// raw output when the formatting call fails.
func (a *Agent) narrate(ctx context.Context, sess *state.Session, query, command, output string, parent types.EventID) string {
	if len(output) > a.opts.MaxOutputChars {
		output = output[:a.opts.MaxOutputChars] + "\n... (output truncated)"
	}
	if strings.TrimSpace(output) == "" {
		return fmt.Sprintf("Done. `%s` completed with no output.", command)
	}

	system := renderPrompt(formatPrompt, promptData{Query: query, Command: command})
	formatted, _, err := a.generate(ctx, sess, system, output, parent)
	if err != nil || strings.TrimSpace(formatted) == "" {
		slog.Warn("output formatting failed, returning raw output", "error", err)
		return fmt.Sprintf("Command output:\n\n%s", output)
	}
	return formatted
}

// Suggest returns candidate commands for a query without executing anything.
func (a *Agent) Suggest(ctx context.Context, sess *state.Session, query string) ([]Suggestion, error) {
	sess.Log.StartConversation(query)
	sess.Touch()

	system := renderPrompt(suggestPrompt, promptData{Region: a.opts.Region})
	raw, respID, err := a.generate(ctx, sess, system, query, "")
	if err != nil {
		sess.Log.LogError(err.Error(), "llm", "")
		return nil, err
	}

	suggestions := ParseSuggestions(raw)
	sess.Log.LogReasoning(fmt.Sprintf("offered %d command suggestions", len(suggestions)), "suggest", respID)
	return suggestions, nil
}

// ExecuteCommand runs a command the user supplied explicitly. Consent is
// implied, but the runner's read-only guard still applies.
func (a *Agent) ExecuteCommand(ctx context.Context, sess *state.Session, query, command string) string {
	sess.Log.StartConversation(fmt.Sprintf("execute: %s", command))
	sess.Touch()

	cmdID := sess.Log.LogCommandExecution(command, "")
	started := time.Now()
	result := a.runner.Execute(ctx, command)
	sess.Log.LogCommandResult(cmdID, types.CommandResult{
		Command: result.Command,
		Success: result.Success,
		Output:  result.Output,
		Error:   result.Error,
	}, time.Since(started))

	var answer string
	if result.Success {
		answer = a.narrate(ctx, sess, query, command, result.Output, cmdID)
	} else {
		answer = fmt.Sprintf("The command failed:\n\n    %s\n\n%s", command, result.Error)
	}
	sess.Log.LogAgentResponse(answer, "")
	sess.Memory.Record(query, command, answer)
	return answer
}

// generate performs one recorded model exchange and returns the reply text
// and the model_response event id.
func (a *Agent) generate(ctx context.Context, sess *state.Session, system, user string, parent types.EventID) (string, types.EventID, error) {
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	reqID := sess.Log.LogModelRequest(types.ModelRequest{
		Messages: messages,
		Model:    a.opts.Model,
	}, parent)

	started := time.Now()
	var resp *llm.Response
	call := func() error {
		var err error
		resp, err = a.provider.Complete(ctx, messages, nil)
		return err
	}

	var err error
	if a.retry != nil {
		err = a.retry.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		sess.Log.LogError(err.Error(), "llm", reqID)
		return "", "", fmt.Errorf("model call: %w", err)
	}

	respID := sess.Log.LogModelResponse(reqID, types.ModelResponse{
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}, time.Since(started))
	return resp.Content, respID, nil
}
