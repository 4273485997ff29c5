package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/user/cloudclaw/internal/awscli"
	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/types"
	"github.com/user/cloudclaw/pkg/llm"
)

// scriptedProvider returns canned replies in order.
type scriptedProvider struct {
	replies []string
	errs    []error
	calls   int
}

func (p *scriptedProvider) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.replies) {
		return nil, fmt.Errorf("unexpected model call %d", i)
	}
	return &llm.Response{Content: p.replies[i]}, nil
}

// fakeRunner records what it was asked to run.
type fakeRunner struct {
	readOnly bool
	result   *awscli.Result
	ran      []string
}

func (r *fakeRunner) Execute(ctx context.Context, command string) *awscli.Result {
	r.ran = append(r.ran, command)
	if r.result != nil {
		return r.result
	}
	return &awscli.Result{Command: command, Success: true, Output: "bucket-a\nbucket-b\n"}
}

func (r *fakeRunner) ReadOnly() bool { return r.readOnly }

func newTestSession() *state.Session {
	return state.NewSessions().ResolveOrCreate("test:session")
}

func TestProcessQueryExecutesCommand(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"action": "execute_command", "command": "aws s3 ls", "explanation": "lists buckets"}`,
		"You have two buckets: bucket-a and bucket-b.",
	}}
	runner := &fakeRunner{}
	a := New(provider, runner, nil, Options{Region: "us-east-1"})
	sess := newTestSession()

	answer := a.ProcessQuery(context.Background(), sess, "list my buckets")

	if !strings.Contains(answer, "two buckets") {
		t.Errorf("expected the narrated answer, got %q", answer)
	}
	if len(runner.ran) != 1 || runner.ran[0] != "aws s3 ls" {
		t.Errorf("expected aws s3 ls executed, got %v", runner.ran)
	}

	// The turn's full shape is in the log.
	counts := sess.Log.Summary().EventCountsByKind
	for _, want := range []types.EventType{
		types.EventUserMessage,
		types.EventModelRequest,
		types.EventModelResponse,
		types.EventCommandExecution,
		types.EventCommandResult,
		types.EventAgentResponse,
	} {
		if counts[want] == 0 {
			t.Errorf("expected at least one %s event, got %v", want, counts)
		}
	}
	if counts[types.EventModelRequest] != 2 {
		t.Errorf("expected 2 model calls (plan + format), got %d", counts[types.EventModelRequest])
	}

	// Memory captured the interaction.
	if sess.Memory.Total() != 1 {
		t.Errorf("expected 1 memory interaction, got %d", sess.Memory.Total())
	}
	if cmds := sess.Memory.RecentCommands(5); len(cmds) != 1 || cmds[0] != "aws s3 ls" {
		t.Errorf("expected command remembered, got %v", cmds)
	}
}

func TestProcessQueryCorrelation(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"action": "execute_command", "command": "aws s3 ls", "explanation": "x"}`,
		"summary",
	}}
	a := New(provider, &fakeRunner{}, nil, Options{})
	sess := newTestSession()

	a.ProcessQuery(context.Background(), sess, "list buckets")

	byID := make(map[types.EventID]*types.Event)
	var events []*types.Event
	for _, ev := range sess.Log.Recent(100) {
		byID[ev.ID] = ev
		events = append(events, ev)
	}

	var cmdExec, cmdResult *types.Event
	for _, ev := range events {
		switch ev.Type {
		case types.EventCommandExecution:
			cmdExec = ev
		case types.EventCommandResult:
			cmdResult = ev
		}
	}
	if cmdExec == nil || cmdResult == nil {
		t.Fatal("expected command events")
	}
	if cmdResult.ParentID != cmdExec.ID {
		t.Errorf("expected result parented to execution")
	}
	if parent, ok := byID[cmdExec.ParentID]; !ok || parent.Type != types.EventModelResponse {
		t.Errorf("expected execution parented to the model response that planned it")
	}
}

func TestProcessQueryProvideInfo(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"action": "provide_info", "response": "S3 is object storage."}`,
	}}
	runner := &fakeRunner{}
	a := New(provider, runner, nil, Options{})
	sess := newTestSession()

	answer := a.ProcessQuery(context.Background(), sess, "what is s3")

	if answer != "S3 is object storage." {
		t.Errorf("unexpected answer %q", answer)
	}
	if len(runner.ran) != 0 {
		t.Errorf("expected no commands run, got %v", runner.ran)
	}
}

func TestProcessQueryUnstructuredReplyVerbatim(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"Honestly, just open the console.",
	}}
	a := New(provider, &fakeRunner{}, nil, Options{})
	sess := newTestSession()

	answer := a.ProcessQuery(context.Background(), sess, "help")
	if answer != "Honestly, just open the console." {
		t.Errorf("expected verbatim reply, got %q", answer)
	}
	if sess.Log.Summary().EventCountsByKind[types.EventAgentReasoning] == 0 {
		t.Error("expected a reasoning event noting the unstructured reply")
	}
}

func TestProcessQueryMutationConsent(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"action": "execute_command", "command": "aws ec2 terminate-instances --instance-ids i-1", "explanation": "terminates the instance"}`,
	}}
	runner := &fakeRunner{}
	a := New(provider, runner, nil, Options{RequireMutationConsent: true})
	sess := newTestSession()

	answer := a.ProcessQuery(context.Background(), sess, "kill instance i-1")

	if len(runner.ran) != 0 {
		t.Fatalf("expected command withheld, got %v", runner.ran)
	}
	if !strings.Contains(answer, "terminate-instances") {
		t.Errorf("expected the held command shown to the user, got %q", answer)
	}
	if sess.Log.Summary().EventCountsByKind[types.EventCommandExecution] != 0 {
		t.Error("expected no command_execution event for a held command")
	}
}

func TestProcessQueryCommandFailure(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"action": "execute_command", "command": "aws s3 ls", "explanation": "x"}`,
	}}
	runner := &fakeRunner{result: &awscli.Result{
		Command: "aws s3 ls",
		Error:   "Unable to locate credentials",
	}}
	a := New(provider, runner, nil, Options{})
	sess := newTestSession()

	answer := a.ProcessQuery(context.Background(), sess, "list buckets")

	if !strings.Contains(answer, "Unable to locate credentials") {
		t.Errorf("expected the CLI error surfaced, got %q", answer)
	}
	// Only the plan call happened; no formatting call for a failed command.
	if provider.calls != 1 {
		t.Errorf("expected 1 model call, got %d", provider.calls)
	}
}

func TestProcessQueryProviderDown(t *testing.T) {
	provider := &scriptedProvider{errs: []error{fmt.Errorf("connection refused")}}
	a := New(provider, &fakeRunner{}, nil, Options{})
	sess := newTestSession()

	answer := a.ProcessQuery(context.Background(), sess, "list buckets")

	if !strings.Contains(answer, "could not reach") {
		t.Errorf("expected a polite failure reply, got %q", answer)
	}
	counts := sess.Log.Summary().EventCountsByKind
	if counts[types.EventError] == 0 {
		t.Error("expected an error event recorded")
	}
	if counts[types.EventAgentResponse] != 1 {
		t.Error("expected the failure reply recorded as the agent response")
	}
}

func TestNarrationFailureFallsBackToRawOutput(t *testing.T) {
	provider := &scriptedProvider{
		replies: []string{`{"action": "execute_command", "command": "aws s3 ls", "explanation": "x"}`},
		errs:    []error{nil, fmt.Errorf("timeout")},
	}
	a := New(provider, &fakeRunner{}, nil, Options{})
	sess := newTestSession()

	answer := a.ProcessQuery(context.Background(), sess, "list buckets")
	if !strings.Contains(answer, "bucket-a") {
		t.Errorf("expected raw output fallback, got %q", answer)
	}
}

func TestSuggest(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`[{"command": "aws s3 ls", "description": "list buckets", "service": "s3"}]`,
	}}
	a := New(provider, &fakeRunner{}, nil, Options{})
	sess := newTestSession()

	got, err := a.Suggest(context.Background(), sess, "how do I see my buckets")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Command != "aws s3 ls" {
		t.Errorf("unexpected suggestions %+v", got)
	}
}

func TestExecuteCommandExplicit(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"Two buckets."}}
	runner := &fakeRunner{}
	a := New(provider, runner, nil, Options{RequireMutationConsent: true})
	sess := newTestSession()

	answer := a.ExecuteCommand(context.Background(), sess, "list buckets", "aws s3 ls")

	if len(runner.ran) != 1 {
		t.Fatalf("expected explicit command run, got %v", runner.ran)
	}
	if answer != "Two buckets." {
		t.Errorf("unexpected answer %q", answer)
	}
}
