// internal/memory/memory_test.go
package memory

import (
	"fmt"
	"strings"
	"testing"
)

func TestRecordAndWindow(t *testing.T) {
	m := New(WithMaxInteractions(3))

	for i := 0; i < 5; i++ {
		m.Record(fmt.Sprintf("query %d", i), fmt.Sprintf("aws cmd%d", i), "ok")
	}

	if m.Total() != 5 {
		t.Errorf("expected lifetime total 5, got %d", m.Total())
	}

	commands := m.RecentCommands(10)
	if len(commands) != 3 {
		t.Fatalf("expected 3 retained commands, got %d", len(commands))
	}
	if commands[0] != "aws cmd2" || commands[2] != "aws cmd4" {
		t.Errorf("expected cmd2..cmd4, got %v", commands)
	}
}

func TestRecentCommandsSkipsEmpty(t *testing.T) {
	m := New()
	m.Record("what is s3", "", "S3 is object storage")
	m.Record("list buckets", "aws s3 ls", "two buckets")

	commands := m.RecentCommands(5)
	if len(commands) != 1 || commands[0] != "aws s3 ls" {
		t.Errorf("expected only the executed command, got %v", commands)
	}
}

func TestRecentCommandsLimit(t *testing.T) {
	m := New()
	for i := 0; i < 8; i++ {
		m.Record("q", fmt.Sprintf("aws cmd%d", i), "r")
	}

	commands := m.RecentCommands(2)
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(commands))
	}
	if commands[1] != "aws cmd7" {
		t.Errorf("expected newest command last, got %v", commands)
	}
}

func TestContextSummary(t *testing.T) {
	m := New()
	if got := m.ContextSummary(); got != "" {
		t.Errorf("expected empty summary on empty memory, got %q", got)
	}

	m.Record("list my buckets", "aws s3 ls", "two buckets")
	m.Record("describe instances", "aws ec2 describe-instances", "none running")

	summary := m.ContextSummary()
	if !strings.Contains(summary, "list my buckets") {
		t.Errorf("expected first query in summary, got %q", summary)
	}
	if !strings.Contains(summary, "aws ec2 describe-instances") {
		t.Errorf("expected command in summary, got %q", summary)
	}

	// Newest first.
	newer := strings.Index(summary, "describe instances")
	older := strings.Index(summary, "list my buckets")
	if newer == -1 || older == -1 || newer > older {
		t.Errorf("expected newest interaction first, got %q", summary)
	}
}

func TestContextSummaryRespectsBudget(t *testing.T) {
	m := New(WithTokenBudget(30))

	long := strings.Repeat("very long query about infrastructure ", 10)
	for i := 0; i < 10; i++ {
		m.Record(long, "aws s3 ls", "ok")
	}

	summary := m.ContextSummary()
	if n := m.countTokens(summary); n > 60 {
		t.Errorf("summary blew the budget: %d tokens", n)
	}
	if strings.Count(summary, "User asked") >= 10 {
		t.Error("expected some interactions trimmed from the summary")
	}
}

func TestClearKeepsTotal(t *testing.T) {
	m := New()
	m.Record("q1", "aws s3 ls", "r1")
	m.Record("q2", "", "r2")

	m.Clear()

	if m.Total() != 2 {
		t.Errorf("expected lifetime total preserved, got %d", m.Total())
	}
	if got := m.ContextSummary(); got != "" {
		t.Errorf("expected empty summary after clear, got %q", got)
	}
	if got := m.RecentCommands(5); len(got) != 0 {
		t.Errorf("expected no commands after clear, got %v", got)
	}
}

func TestStats(t *testing.T) {
	m := New()
	m.Record("list buckets", "aws s3 ls", "two buckets")

	s := m.Stats()
	if s.TotalInteractions != 1 {
		t.Errorf("expected 1 interaction, got %d", s.TotalInteractions)
	}
	if len(s.RecentCommands) != 1 || s.RecentCommands[0] != "aws s3 ls" {
		t.Errorf("unexpected recent commands: %v", s.RecentCommands)
	}
	if !strings.Contains(s.ContextSummary, "list buckets") {
		t.Errorf("unexpected context summary: %q", s.ContextSummary)
	}
}
