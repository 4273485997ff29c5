// internal/delivery/registry_test.go
package delivery

import (
	"testing"

	"github.com/user/cloudclaw/internal/types"
)

func TestRegistryDeliver(t *testing.T) {
	reg := NewRegistry()

	var gotKey types.SessionKey
	var gotMsg string
	reg.Register("test:", func(sessionKey types.SessionKey, message string) error {
		gotKey = sessionKey
		gotMsg = message
		return nil
	})

	if err := reg.Deliver("test:123", "two buckets found"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "test:123" {
		t.Errorf("expected session key test:123, got %s", gotKey)
	}
	if gotMsg != "two buckets found" {
		t.Errorf("unexpected message %q", gotMsg)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Deliver("unknown:123", "hello"); err == nil {
		t.Fatal("expected error for unregistered prefix")
	}
}

func TestRegistryMultiplePrefixes(t *testing.T) {
	reg := NewRegistry()

	var telegramCalls, schedulerCalls int
	reg.Register("telegram:", func(types.SessionKey, string) error {
		telegramCalls++
		return nil
	})
	reg.Register("scheduler:", func(types.SessionKey, string) error {
		schedulerCalls++
		return nil
	})

	if err := reg.Deliver("telegram:42:100", "msg1"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Deliver("scheduler:nightly-costs", "msg2"); err != nil {
		t.Fatal(err)
	}

	if telegramCalls != 1 || schedulerCalls != 1 {
		t.Errorf("expected one call each, got telegram=%d scheduler=%d", telegramCalls, schedulerCalls)
	}
}
