package telegram

import (
	"strings"
	"testing"

	"github.com/user/cloudclaw/internal/types"
)

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestBuildSessionKey(t *testing.T) {
	key := buildSessionKey(12345, 67890)
	if string(key) != "telegram:12345:67890" {
		t.Errorf("expected 'telegram:12345:67890', got %q", key)
	}
}

func TestChatIDFromKey(t *testing.T) {
	chatID, err := chatIDFromKey(buildSessionKey(12345, 67890))
	if err != nil {
		t.Fatal(err)
	}
	if chatID != 67890 {
		t.Errorf("expected chat id 67890, got %d", chatID)
	}
}

func TestChatIDFromKeyRejectsOtherSources(t *testing.T) {
	for _, key := range []string{"web:default", "cli:chat", "telegram:12345", "telegram:12345:notanumber"} {
		if _, err := chatIDFromKey(types.SessionKey(key)); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestSendToRejectsNonTelegramKey(t *testing.T) {
	a := &Adapter{}
	if err := a.SendTo("scheduler:daily-report", "results"); err == nil {
		t.Error("expected error for non-telegram session key")
	}
}
