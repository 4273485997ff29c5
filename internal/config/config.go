package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxEvents     int    `json:"max_events"`
	LLM           struct {
		Provider    string  `json:"provider"`
		BaseURL     string  `json:"base_url"`
		APIKey      string  `json:"api_key"`
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	} `json:"llm"`
	AWS struct {
		Region                 string `json:"region"`
		Profile                string `json:"profile"`
		ReadOnly               bool   `json:"read_only"`
		RequireMutationConsent bool   `json:"require_mutation_consent"`
		CommandTimeoutSeconds  int    `json:"command_timeout_seconds"`
	} `json:"aws"`
	Memory struct {
		MaxInteractions int `json:"max_interactions"`
		TokenBudget     int `json:"token_budget"`
	} `json:"memory"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

// CommandTimeout returns the AWS command timeout as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.AWS.CommandTimeoutSeconds) * time.Second
}

// Load reads the config file, writing one with defaults on first run.
// Environment variables take highest precedence.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".cloudclaw"),
		LogLevel:      "info",
		MaxConcurrent: 2,
		MaxEvents:     1000,
	}
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.2
	cfg.AWS.Region = "us-east-1"
	cfg.AWS.RequireMutationConsent = true
	cfg.AWS.CommandTimeoutSeconds = 30
	cfg.Memory.MaxInteractions = 20
	cfg.Memory.TokenBudget = 1000
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = ":50333"

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWS.Region = region
	}
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		cfg.AWS.Profile = profile
	}
	if v := os.Getenv("READ_OPERATIONS_ONLY"); v == "true" || v == "1" {
		cfg.AWS.ReadOnly = true
	}
	if v := os.Getenv("REQUIRE_MUTATION_CONSENT"); v == "false" || v == "0" {
		cfg.AWS.RequireMutationConsent = false
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config back to disk atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}
