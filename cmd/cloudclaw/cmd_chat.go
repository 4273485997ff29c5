package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/tracker"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	replyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	sessions, _, err := buildSessions(cfg)
	if err != nil {
		return err
	}
	ag := buildAgent(cfg)
	sess := sessions.ResolveOrCreate("cli:chat")

	fmt.Println(metaStyle.Render("cloudclaw chat. Ask about your AWS account in plain language."))
	fmt.Println(metaStyle.Render("Commands: /summary /memory /export /clear /quit"))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := handleChatCommand(sess, line); quit {
				return nil
			}
			continue
		}

		response := ag.ProcessQuery(ctx, sess, line)
		fmt.Println(replyStyle.Render(response))
		fmt.Println()
	}
	return scanner.Err()
}

// handleChatCommand serves the slash commands; returns true on /quit.
func handleChatCommand(sess *state.Session, line string) bool {
	switch line {
	case "/quit", "/exit":
		return true

	case "/summary":
		s := sess.Log.Summary()
		fmt.Println(metaStyle.Render(fmt.Sprintf(
			"session %s: %d events, %d conversations", s.SessionID, s.TotalEvents, s.ConversationCount)))
		for kind, count := range s.EventCountsByKind {
			fmt.Println(metaStyle.Render(fmt.Sprintf("  %-20s %d", kind, count)))
		}

	case "/memory":
		stats := sess.Memory.Stats()
		fmt.Println(metaStyle.Render(fmt.Sprintf("%d interactions total", stats.TotalInteractions)))
		for _, cmd := range stats.RecentCommands {
			fmt.Println(metaStyle.Render("  " + cmd))
		}

	case "/export":
		data, err := sess.Log.ExportSession(tracker.FormatJSON)
		if err != nil {
			fmt.Println(errStyle.Render(err.Error()))
			break
		}
		fmt.Println(string(data))

	case "/clear":
		sess.Log.Clear()
		sess.Memory.Clear()
		fmt.Println(metaStyle.Render("conversation cleared, session id preserved"))

	default:
		fmt.Println(errStyle.Render("unknown command; available: /summary /memory /export /clear /quit"))
	}
	return false
}
