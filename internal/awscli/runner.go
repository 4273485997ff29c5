// internal/awscli/runner.go
//
// Package awscli executes AWS CLI commands on the host on behalf of the
// agent. Execution is a total function: failures are reported inside the
// Result, never as a Go error, so the agent can always narrate the outcome.
package awscli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds a single CLI invocation.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of one CLI invocation.
type Result struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Runner executes aws commands with region/profile defaults and an optional
// read-only guard.
type Runner struct {
	binary   string
	region   string
	profile  string
	timeout  time.Duration
	readOnly bool

	preflight    sync.Once
	preflightErr error
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary overrides the aws executable path (used in tests).
func WithBinary(path string) Option {
	return func(r *Runner) { r.binary = path }
}

// WithRegion sets the default region appended to commands that lack one.
func WithRegion(region string) Option {
	return func(r *Runner) { r.region = region }
}

// WithProfile sets the AWS profile appended to commands that lack one.
func WithProfile(profile string) Option {
	return func(r *Runner) { r.profile = profile }
}

// WithTimeout overrides the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithReadOnly refuses mutating operations when enabled.
func WithReadOnly(readOnly bool) Option {
	return func(r *Runner) { r.readOnly = readOnly }
}

// NewRunner creates a Runner with the default aws binary and timeout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		binary:  "aws",
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadOnly reports whether the runner refuses mutating operations.
func (r *Runner) ReadOnly() bool {
	return r.readOnly
}

// Execute runs a single aws command string. The command must start with
// "aws"; region and profile defaults are appended when the command does not
// set its own. Mutating operations are refused in read-only mode.
func (r *Runner) Execute(ctx context.Context, command string) *Result {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &Result{Command: command, Error: "empty command"}
	}
	if fields[0] != "aws" {
		return &Result{Command: command, Error: fmt.Sprintf("refusing to run non-aws command: %s", fields[0])}
	}

	if r.readOnly && IsMutation(command) {
		return &Result{
			Command: command,
			Error:   "read-only mode: refusing to run a command that modifies resources",
		}
	}

	if err := r.checkCLI(ctx); err != nil {
		return &Result{
			Command: command,
			Error:   "AWS CLI not found. Install the AWS CLI and configure your credentials.",
		}
	}

	args := fields[1:]
	if r.region != "" && !hasFlag(fields, "--region") {
		args = append(args, "--region", r.region)
	}
	if r.profile != "" && !hasFlag(fields, "--profile") {
		args = append(args, "--profile", r.profile)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return &Result{Command: command, Error: "command timed out"}
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("command failed: %v", err)
		}
		return &Result{Command: command, Error: msg}
	}

	return &Result{
		Command: command,
		Success: true,
		Output:  stdout.String(),
	}
}

// checkCLI verifies the aws binary is invocable, once per Runner.
func (r *Runner) checkCLI(ctx context.Context) error {
	r.preflight.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		r.preflightErr = exec.CommandContext(ctx, r.binary, "--version").Run()
	})
	return r.preflightErr
}

// readOnlyVerbs are operation prefixes that never modify resources. Anything
// else is treated as a mutation.
var readOnlyVerbs = []string{
	"describe",
	"get",
	"list",
	"head",
	"ls",
	"help",
	"lookup",
	"search",
	"wait",
}

// IsMutation reports whether an aws command's operation looks like it
// modifies resources. The check is deliberately conservative: unknown verbs
// count as mutations.
func IsMutation(command string) bool {
	fields := strings.Fields(command)

	// Find the operation token: the first non-flag token after the service
	// (aws <service> <operation> ...). "aws s3 ls" and "aws help" included.
	var tokens []string
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "-") {
			break
		}
		tokens = append(tokens, f)
	}
	if len(tokens) == 0 {
		return false
	}

	op := tokens[len(tokens)-1]
	for _, verb := range readOnlyVerbs {
		if op == verb || strings.HasPrefix(op, verb+"-") {
			return false
		}
	}
	return true
}

func hasFlag(fields []string, flag string) bool {
	for _, f := range fields {
		if f == flag || strings.HasPrefix(f, flag+"=") {
			return true
		}
	}
	return false
}
