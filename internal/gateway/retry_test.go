package gateway

import (
	"errors"
	"testing"
	"time"
)

func TestRetryClassification(t *testing.T) {
	p := DefaultRetryPolicy()

	retryable := []error{
		errors.New("connection refused"),
		errors.New("dial tcp: i/o timeout"),
		errors.New("429 Too Many Requests"),
		errors.New("Rate limit exceeded"),
		errors.New("ThrottlingException from upstream"),
		errors.New("something unheard of"),
	}
	for _, err := range retryable {
		if !p.ShouldRetry(err, 1) {
			t.Errorf("expected %q retryable", err)
		}
	}

	permanent := []error{
		errors.New("invalid request body"),
		errors.New("401 unauthorized"),
		errors.New("403 forbidden"),
	}
	for _, err := range permanent {
		if p.ShouldRetry(err, 1) {
			t.Errorf("expected %q permanent", err)
		}
	}

	if p.ShouldRetry(nil, 1) {
		t.Error("nil error should never retry")
	}
	if p.ShouldRetry(errors.New("timeout"), p.MaxAttempts+1) {
		t.Error("exhausted attempts should never retry")
	}
}

func TestRetryBackoff(t *testing.T) {
	p := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}

	if d := p.NextDelay(1); d != time.Second {
		t.Errorf("attempt 1: expected 1s, got %s", d)
	}
	if d := p.NextDelay(2); d != 2*time.Second {
		t.Errorf("attempt 2: expected 2s, got %s", d)
	}
	if d := p.NextDelay(10); d != 5*time.Second {
		t.Errorf("attempt 10: expected cap 5s, got %s", d)
	}
}

func TestRetryExecute(t *testing.T) {
	p := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1.0, MaxDelay: time.Millisecond}

	calls := 0
	err := p.Execute(func() error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	calls = 0
	err = p.Execute(func() error {
		calls++
		return errors.New("invalid api key")
	})
	if err == nil {
		t.Fatal("expected permanent error surfaced")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for a permanent error, got %d", calls)
	}
}
