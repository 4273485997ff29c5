// Package telegram bridges Telegram chats to the gateway, one session per
// user and chat pair.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/cloudclaw/internal/gateway"
	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/types"
)

const maxTelegramMessage = 4096

// Adapter long-polls Telegram and feeds messages through the gateway.
type Adapter struct {
	bot      *tgbotapi.BotAPI
	gateway  *gateway.Gateway
	sessions *state.Sessions
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, sessions *state.Sessions) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:      bot,
		gateway:  gw,
		sessions: sessions,
	}, nil
}

// Start begins long-polling for updates until the context is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(msg)
		return
	}

	chatID := msg.Chat.ID
	query := &types.InboundQuery{
		Source:     "telegram",
		SessionKey: buildSessionKey(msg.From.ID, msg.Chat.ID),
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		Text:       msg.Text,
	}

	err := a.gateway.HandleInbound(query, gateway.WithOnComplete(func(response string) {
		a.sendResponse(chatID, response)
	}))
	if err != nil {
		slog.Error("telegram inbound failed", "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	key := buildSessionKey(msg.From.ID, msg.Chat.ID)

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hi! Ask me about your AWS account in plain language, for example: how many EC2 instances are running?")

	case "new":
		if sess, ok := a.sessions.Get(key); ok {
			sess.Log.Clear()
			sess.Memory.Clear()
			sess.Log.LogSystemEvent("conversation reset via /new")
		}
		a.sendResponse(chatID, "Started fresh. Previous conversation context has been cleared.")

	case "status":
		sess := a.sessions.ResolveOrCreate(key)
		summary := sess.Log.Summary()
		a.sendResponse(chatID, fmt.Sprintf(
			"Session: %s\nEvents: %d\nConversations: %d",
			sess.ID, summary.TotalEvents, summary.ConversationCount))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /new, /status")
	}
}

// SendTo delivers a message to the chat encoded in a telegram session key
// ("telegram:<user-id>:<chat-id>"). The delivery registry uses it to push
// scheduled task results.
func (a *Adapter) SendTo(sessionKey types.SessionKey, message string) error {
	chatID, err := chatIDFromKey(sessionKey)
	if err != nil {
		return err
	}
	a.sendResponse(chatID, message)
	return nil
}

func chatIDFromKey(key types.SessionKey) (int64, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 3 || parts[0] != "telegram" {
		return 0, fmt.Errorf("not a telegram session key: %s", key)
	}
	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id in session key %s: %w", key, err)
	}
	return chatID, nil
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Markdown can fail on CLI output with stray underscores.
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("telegram send failed", "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}
