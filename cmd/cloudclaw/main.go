package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/cloudclaw/internal/agent"
	"github.com/user/cloudclaw/internal/awscli"
	"github.com/user/cloudclaw/internal/config"
	"github.com/user/cloudclaw/internal/gateway"
	"github.com/user/cloudclaw/internal/memory"
	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/pkg/llm"
	"github.com/user/cloudclaw/pkg/llm/openai"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "cloudclaw",
	Short: "Chat with your AWS account in plain language",
	Long: `cloudclaw turns natural-language questions into AWS CLI commands,
runs them, and explains the results. It keeps a full per-session event log
of every model call and command execution.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".cloudclaw", "config.json"),
		"config file path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the config file or exits; subcommands rely on it.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildAgent constructs the provider, runner, and agent from config. Shared
// by serve, chat, and ask.
func buildAgent(cfg *config.Config) *agent.Agent {
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	runner := awscli.NewRunner(
		awscli.WithRegion(cfg.AWS.Region),
		awscli.WithProfile(cfg.AWS.Profile),
		awscli.WithTimeout(cfg.CommandTimeout()),
		awscli.WithReadOnly(cfg.AWS.ReadOnly),
	)

	return agent.New(provider, runner, gateway.DefaultRetryPolicy(), agent.Options{
		Model:                  cfg.LLM.Model,
		Region:                 cfg.AWS.Region,
		RequireMutationConsent: cfg.AWS.RequireMutationConsent,
	})
}

// buildSessions constructs the session registry with the on-disk archive
// attached.
func buildSessions(cfg *config.Config) (*state.Sessions, *state.Archive, error) {
	archive, err := state.NewArchive(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("create archive: %w", err)
	}
	sessions := state.NewSessions(
		state.WithArchive(archive),
		state.WithLogCapacity(cfg.MaxEvents),
		state.WithMemoryOptions(
			memory.WithMaxInteractions(cfg.Memory.MaxInteractions),
			memory.WithTokenBudget(cfg.Memory.TokenBudget),
		),
	)
	return sessions, archive, nil
}
