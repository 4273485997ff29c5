package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Bool("export-tree", false, "print the conversation's event tree as JSON after the answer")
}

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		sessions, _, err := buildSessions(cfg)
		if err != nil {
			return err
		}
		ag := buildAgent(cfg)
		sess := sessions.ResolveOrCreate("cli:ask")

		response := ag.ProcessQuery(context.Background(), sess, strings.Join(args, " "))
		fmt.Println(response)

		if exportTree, _ := cmd.Flags().GetBool("export-tree"); exportTree {
			tree := sess.Log.ConversationTree(sess.Log.CurrentConversation())
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			if err := enc.Encode(tree); err != nil {
				return fmt.Errorf("export tree: %w", err)
			}
		}
		return nil
	},
}
