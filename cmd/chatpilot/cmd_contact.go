package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/chatpilot/internal/state"
	"github.com/user/chatpilot/internal/types"
)

func init() {
	rootCmd.AddCommand(contactCmd)
	contactCmd.AddCommand(contactListCmd, contactAddCmd)

	contactAddCmd.Flags().String("name", "", "contact name (required)")
	contactAddCmd.Flags().String("phone", "", "phone number (required for individuals)")
	contactAddCmd.Flags().String("email", "", "email address")
	contactAddCmd.Flags().String("company", "", "company name")
	contactAddCmd.Flags().String("tags", "", "comma-separated tags")
	contactAddCmd.Flags().String("notes", "", "free-text notes (fed to the suggestion provider)")
	contactAddCmd.Flags().Bool("group", false, "contact is a group")
	_ = contactAddCmd.MarkFlagRequired("name")
}

func contactStore() *state.ContactStore {
	cfg := loadConfig()
	return state.NewContactStore(cfg.DataDir)
}

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manage contacts",
}

var contactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all contacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		contacts, err := contactStore().List(context.Background())
		if err != nil {
			return fmt.Errorf("list contacts: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPHONE\tTAGS\tGROUP")
		for _, c := range contacts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", c.ID, c.Name, c.PhoneNumber, strings.Join(c.Tags, ","), c.IsGroup)
		}
		return w.Flush()
	},
}

var contactAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new contact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		phone, _ := cmd.Flags().GetString("phone")
		email, _ := cmd.Flags().GetString("email")
		company, _ := cmd.Flags().GetString("company")
		tags, _ := cmd.Flags().GetString("tags")
		notes, _ := cmd.Flags().GetString("notes")
		group, _ := cmd.Flags().GetBool("group")

		c := &types.Contact{
			Name:        name,
			PhoneNumber: phone,
			Email:       email,
			Company:     company,
			Notes:       notes,
			IsGroup:     group,
		}
		if tags != "" {
			c.Tags = strings.Split(tags, ",")
		}
		if err := contactStore().Add(context.Background(), c); err != nil {
			return fmt.Errorf("add contact: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Contact %q added (%s).\n", name, c.ID)
		return nil
	},
}
