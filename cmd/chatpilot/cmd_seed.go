package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/chatpilot/internal/seed"
	"github.com/user/chatpilot/internal/state"
)

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo contacts, conversations, and personas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		ctx := context.Background()
		contacts := state.NewContactStore(cfg.DataDir)
		convs := state.NewConversationStore(cfg.DataDir)
		agents := state.NewAgentStore(cfg.DataDir)

		if err := seed.Apply(ctx, contacts, convs, agents); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Demo data written to %s.\n", cfg.DataDir)
		return nil
	},
}
