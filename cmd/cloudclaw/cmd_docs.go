package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/cloudclaw/internal/docs"
)

func init() {
	rootCmd.AddCommand(docsCmd)
}

var docsCmd = &cobra.Command{
	Use:   "docs <url>",
	Short: "Fetch a documentation page and print it as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fetcher := docs.NewFetcher()
		markdown, err := fetcher.Fetch(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(markdown)
		return nil
	},
}
