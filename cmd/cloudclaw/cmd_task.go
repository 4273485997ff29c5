package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/types"
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskRemoveCmd, taskEnableCmd, taskDisableCmd)

	taskAddCmd.Flags().String("name", "", "task name (required)")
	taskAddCmd.Flags().String("query", "", "natural-language query to run (required)")
	taskAddCmd.Flags().String("schedule", "", "cron schedule expression (required)")
	taskAddCmd.Flags().String("session-key", "", "session key (defaults to scheduler:<name>)")
	_ = taskAddCmd.MarkFlagRequired("name")
	_ = taskAddCmd.MarkFlagRequired("query")
	_ = taskAddCmd.MarkFlagRequired("schedule")
}

func taskStore() (*state.TaskStore, error) {
	cfg := loadConfig()
	return state.NewTaskStore(cfg.DataDir)
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled queries",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled query",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		query, _ := cmd.Flags().GetString("query")
		schedule, _ := cmd.Flags().GetString("schedule")
		sessionKey, _ := cmd.Flags().GetString("session-key")
		if sessionKey == "" {
			sessionKey = "scheduler:" + name
		}

		store, err := taskStore()
		if err != nil {
			return err
		}
		task := &state.Task{
			Name:       name,
			Query:      query,
			Schedule:   schedule,
			SessionKey: types.SessionKey(sessionKey),
			Enabled:    true,
		}
		if err := store.Put(task); err != nil {
			return fmt.Errorf("add task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Task %q added.\n", name)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled queries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := taskStore()
		if err != nil {
			return err
		}
		tasks := store.List()
		if len(tasks) == 0 {
			fmt.Println("No tasks configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEDULE\tENABLED\tSESSION KEY\tLAST RUN")
		for _, t := range tasks {
			lastRun := "never"
			if t.LastRunAt != nil {
				lastRun = t.LastRunAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
				t.Name, t.Schedule, t.Enabled, t.SessionKey, lastRun)
		}
		return w.Flush()
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a scheduled query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := taskStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return fmt.Errorf("remove task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Task %q removed.\n", args[0])
		return nil
	},
}

var taskEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a scheduled query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := taskStore()
		if err != nil {
			return err
		}
		if err := store.SetEnabled(args[0], true); err != nil {
			return fmt.Errorf("enable task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Task %q enabled.\n", args[0])
		return nil
	},
}

var taskDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a scheduled query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := taskStore()
		if err != nil {
			return err
		}
		if err := store.SetEnabled(args[0], false); err != nil {
			return fmt.Errorf("disable task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Task %q disabled.\n", args[0])
		return nil
	},
}
