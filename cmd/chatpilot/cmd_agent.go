package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/chatpilot/internal/agent"
	"github.com/user/chatpilot/internal/state"
	"github.com/user/chatpilot/internal/types"
)

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentListCmd, agentAddCmd, agentRemoveCmd, agentActivateCmd, agentDeactivateCmd, agentAutoReplyCmd)

	agentAddCmd.Flags().String("name", "", "persona name (required)")
	agentAddCmd.Flags().String("role", "", "role label")
	agentAddCmd.Flags().String("description", "", "short description")
	agentAddCmd.Flags().String("instruction", "", "system instruction steering the generator (required)")
	_ = agentAddCmd.MarkFlagRequired("name")
	_ = agentAddCmd.MarkFlagRequired("instruction")

	agentAutoReplyCmd.Flags().Bool("off", false, "disable auto-reply instead of enabling it")
}

func agentRegistry() *agent.Registry {
	cfg := loadConfig()
	return agent.NewRegistry(state.NewAgentStore(cfg.DataDir))
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage AI personas",
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all personas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, err := agentRegistry().List(context.Background())
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tROLE\tACTIVE\tAUTO-REPLY")
		for _, a := range agents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\n", a.ID, a.Name, a.Role, a.IsActive, a.IsAutoReplyEnabled)
		}
		return w.Flush()
	},
}

var agentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new persona",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		role, _ := cmd.Flags().GetString("role")
		description, _ := cmd.Flags().GetString("description")
		instruction, _ := cmd.Flags().GetString("instruction")

		a := &types.Agent{
			Name:              name,
			Role:              role,
			Description:       description,
			SystemInstruction: instruction,
			IsActive:          true,
		}
		if err := agentRegistry().Add(context.Background(), a); err != nil {
			return fmt.Errorf("add agent: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Agent %q added (%s).\n", name, a.ID)
		return nil
	},
}

var agentRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := agentRegistry().Remove(context.Background(), types.AgentID(args[0])); err != nil {
			return fmt.Errorf("remove agent: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Agent %s removed.\n", args[0])
		return nil
	},
}

var agentActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Activate a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := agentRegistry().SetActive(context.Background(), types.AgentID(args[0]), true); err != nil {
			return fmt.Errorf("activate agent: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Agent %s activated.\n", args[0])
		return nil
	},
}

var agentDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Deactivate a persona (also disables its auto-reply)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := agentRegistry().SetActive(context.Background(), types.AgentID(args[0]), false); err != nil {
			return fmt.Errorf("deactivate agent: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Agent %s deactivated.\n", args[0])
		return nil
	},
}

var agentAutoReplyCmd = &cobra.Command{
	Use:   "autoreply <id>",
	Short: "Enable auto-reply for a persona (no-op while inactive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		off, _ := cmd.Flags().GetBool("off")
		if err := agentRegistry().SetAutoReply(context.Background(), types.AgentID(args[0]), !off); err != nil {
			return fmt.Errorf("toggle auto-reply: %w", err)
		}
		if off {
			fmt.Fprintf(os.Stdout, "Auto-reply disabled for %s.\n", args[0])
		} else {
			fmt.Fprintf(os.Stdout, "Auto-reply requested for %s.\n", args[0])
		}
		return nil
	},
}
