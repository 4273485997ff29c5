// internal/awscli/runner_test.go
package awscli

import (
	"context"
	"strings"
	"testing"
	"time"
)

// The tests substitute echo for the aws binary so no real CLI is needed.
// echo happily accepts --version, so the preflight passes too.

func TestExecuteSuccess(t *testing.T) {
	r := NewRunner(WithBinary("echo"))

	res := r.Execute(context.Background(), "aws s3 ls")
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if !strings.Contains(res.Output, "s3 ls") {
		t.Errorf("expected echoed args in output, got %q", res.Output)
	}
	if res.Command != "aws s3 ls" {
		t.Errorf("expected original command preserved, got %q", res.Command)
	}
}

func TestExecuteRejectsNonAWS(t *testing.T) {
	r := NewRunner(WithBinary("echo"))

	res := r.Execute(context.Background(), "rm -rf /")
	if res.Success {
		t.Fatal("expected failure for non-aws command")
	}
	if !strings.Contains(res.Error, "rm") {
		t.Errorf("expected offending command in error, got %q", res.Error)
	}

	res = r.Execute(context.Background(), "   ")
	if res.Success || res.Error == "" {
		t.Error("expected failure for empty command")
	}
}

func TestExecuteAppendsRegionAndProfile(t *testing.T) {
	r := NewRunner(WithBinary("echo"), WithRegion("us-west-2"), WithProfile("dev"))

	res := r.Execute(context.Background(), "aws ec2 describe-instances")
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if !strings.Contains(res.Output, "--region us-west-2") {
		t.Errorf("expected region flag appended, got %q", res.Output)
	}
	if !strings.Contains(res.Output, "--profile dev") {
		t.Errorf("expected profile flag appended, got %q", res.Output)
	}

	// Explicit flags win over the defaults.
	res = r.Execute(context.Background(), "aws ec2 describe-instances --region eu-west-1")
	if strings.Contains(res.Output, "us-west-2") {
		t.Errorf("expected default region suppressed, got %q", res.Output)
	}
}

func TestExecuteReadOnlyGuard(t *testing.T) {
	r := NewRunner(WithBinary("echo"), WithReadOnly(true))

	res := r.Execute(context.Background(), "aws ec2 terminate-instances --instance-ids i-123")
	if res.Success {
		t.Fatal("expected mutation refused in read-only mode")
	}
	if !strings.Contains(res.Error, "read-only") {
		t.Errorf("expected read-only error, got %q", res.Error)
	}

	res = r.Execute(context.Background(), "aws ec2 describe-instances")
	if !res.Success {
		t.Errorf("expected read operation allowed, got %q", res.Error)
	}
}

func TestExecuteTimeout(t *testing.T) {
	// With the binary swapped to sleep, "aws 5" runs "sleep 5". The preflight
	// (sleep --version) exits zero on coreutils.
	r := NewRunner(WithBinary("sleep"), WithTimeout(100*time.Millisecond))

	res := r.Execute(context.Background(), "aws 5")
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("expected timeout error, got %q", res.Error)
	}
}

func TestExecuteMissingBinary(t *testing.T) {
	r := NewRunner(WithBinary("definitely-not-a-real-binary-xyz"))

	res := r.Execute(context.Background(), "aws s3 ls")
	if res.Success {
		t.Fatal("expected failure when binary is missing")
	}
	if !strings.Contains(res.Error, "AWS CLI not found") {
		t.Errorf("expected install hint, got %q", res.Error)
	}
}

func TestIsMutation(t *testing.T) {
	readOnly := []string{
		"aws s3 ls",
		"aws ec2 describe-instances",
		"aws iam list-users",
		"aws s3api get-bucket-policy --bucket b",
		"aws lambda get-function --function-name f",
		"aws s3api head-object --bucket b --key k",
		"aws help",
		"aws ec2 wait instance-running",
		"aws logs describe-log-groups",
	}
	for _, cmd := range readOnly {
		if IsMutation(cmd) {
			t.Errorf("%q flagged as mutation", cmd)
		}
	}

	mutations := []string{
		"aws ec2 terminate-instances --instance-ids i-1",
		"aws s3 rb s3://bucket",
		"aws s3api create-bucket --bucket b",
		"aws iam delete-user --user-name u",
		"aws lambda update-function-code --function-name f",
		"aws s3 cp local s3://bucket/key",
		"aws ec2 run-instances --image-id ami-1",
	}
	for _, cmd := range mutations {
		if !IsMutation(cmd) {
			t.Errorf("%q not flagged as mutation", cmd)
		}
	}
}
