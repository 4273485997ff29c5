package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/cloudclaw/internal/delivery"
	"github.com/user/cloudclaw/internal/docs"
	"github.com/user/cloudclaw/internal/gateway"
	"github.com/user/cloudclaw/internal/scheduler"
	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/telegram"
	"github.com/user/cloudclaw/internal/types"
	"github.com/user/cloudclaw/internal/web"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cloudclaw daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "cloudclaw.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	sessions, _, err := buildSessions(cfg)
	if err != nil {
		return err
	}
	ag := buildAgent(cfg)

	gw := gateway.New(sessions, int64(cfg.MaxConcurrent))
	gw.Queue.SetProcessor(ag.ProcessRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("cloudclaw started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"max_events", cfg.MaxEvents,
		"region", cfg.AWS.Region,
		"read_only", cfg.AWS.ReadOnly,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	taskStore, err := state.NewTaskStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load task store: %w", err)
	}

	deliveryReg := delivery.NewRegistry()

	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, sessions)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")

		// Scheduled results for telegram-keyed tasks go back to the chat.
		deliveryReg.Register("telegram:", func(sessionKey types.SessionKey, message string) error {
			return adapter.SendTo(sessionKey, message)
		})
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Scheduled answers with no front-end land in the log only.
	deliveryReg.Register("scheduler:", func(sessionKey types.SessionKey, message string) error {
		slog.Info("scheduled task completed", "session_key", string(sessionKey))
		return nil
	})

	// Synchronously run a query through the gateway and wait for the answer.
	processQuery := func(sessionKey types.SessionKey, query string) (string, error) {
		done := make(chan string, 1)
		inbound := &types.InboundQuery{
			Source:     "task",
			SessionKey: sessionKey,
			UserID:     "system",
			Text:       query,
		}
		if err := gw.HandleInbound(inbound, gateway.WithOnComplete(func(response string) {
			done <- response
		})); err != nil {
			return "", err
		}
		return <-done, nil
	}

	sched := scheduler.New(taskStore, func(sessionKey types.SessionKey, query string) {
		response, err := processQuery(sessionKey, query)
		if err != nil {
			slog.Error("scheduled task failed", "session_key", string(sessionKey), "error", err)
			return
		}
		if err := deliveryReg.Deliver(sessionKey, response); err != nil {
			slog.Error("scheduled delivery failed", "session_key", string(sessionKey), "error", err)
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	if cfg.HTTP.Enabled {
		webSrv := web.NewServer(ag, sessions, taskStore, docs.NewFetcher())
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: webSrv,
		}
		go func() {
			slog.Info("http server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
