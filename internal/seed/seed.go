// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"

	"github.com/user/chatpilot/internal/types"
)

// Apply loads a small demo workspace: three contacts, two conversations with
// history, and two personas (one with autopilot enabled). Intended for fresh
// data directories; it does not check for existing data.
func Apply(ctx context.Context, contacts types.ContactStore, convs types.ConversationStore, agents types.AgentStore) error {
	support := &types.Contact{
		Name:    "Tech Support Group",
		Tags:    []string{"support", "high-priority"},
		Notes:   "Internal dev group for quick resolution.",
		IsGroup: true,
	}
	maria := &types.Contact{
		Name:        "Maria Rodriguez",
		PhoneNumber: "+54 9 11 1234 5678",
		Email:       "maria.r@example.com",
		Company:     "Logistics SA",
		Tags:        []string{"sales", "lead"},
		Notes:       "Interested in the Enterprise plan. Need to follow up next Tuesday.",
	}
	john := &types.Contact{
		Name:        "John Doe",
		PhoneNumber: "+1 555 0199",
		Tags:        []string{"complaint"},
		Notes:       "Reporting an issue with the API integration.",
	}
	for _, c := range []*types.Contact{support, maria, john} {
		if err := contacts.Add(ctx, c); err != nil {
			return fmt.Errorf("seed contact %s: %w", c.Name, err)
		}
	}

	if err := seedConversation(ctx, convs, support.ID, []types.Message{
		{Content: "Hey team, anyone seeing 500 errors?", SenderID: string(support.ID), Status: types.MessageStatusRead},
		{Content: "Checking now.", SenderID: types.SenderMe, Status: types.MessageStatusRead},
		{Content: "Server is down, checking logs...", SenderID: string(support.ID), Status: types.MessageStatusRead},
	}, false); err != nil {
		return err
	}

	if err := seedConversation(ctx, convs, maria.ID, []types.Message{
		{Content: "Hello! I saw your ad for the CRM.", SenderID: string(maria.ID), Status: types.MessageStatusRead},
		{Content: "Hi Maria! Yes, how can I help you today?", SenderID: types.SenderMe, Status: types.MessageStatusRead},
		{Content: "Is the pricing flexible?", SenderID: string(maria.ID), Status: types.MessageStatusRead},
	}, true); err != nil {
		return err
	}

	closer := &types.Agent{
		Name:               "Deal Closer",
		Role:               "Sales",
		Description:        "Focused on persuasion and booking demos.",
		SystemInstruction:  "You are a sales expert. Your goal is to convince the customer that our CRM is the best option and book a call. Be friendly but direct.",
		IsActive:           true,
		IsAutoReplyEnabled: true,
	}
	helpdesk := &types.Agent{
		Name:              "Support 24/7",
		Role:              "Support",
		Description:       "Resolves technical questions and common problems.",
		SystemInstruction: "You are a support technician. Help the user patiently. If the problem is serious, ask for their details to escalate it.",
		IsActive:          true,
	}
	for _, a := range []*types.Agent{closer, helpdesk} {
		if err := agents.Add(ctx, a); err != nil {
			return fmt.Errorf("seed agent %s: %w", a.Name, err)
		}
	}

	return nil
}

func seedConversation(ctx context.Context, convs types.ConversationStore, contactID types.ContactID, msgs []types.Message, markRead bool) error {
	conv, err := convs.Create(ctx, contactID, "whatsapp")
	if err != nil {
		return fmt.Errorf("seed conversation: %w", err)
	}
	for _, m := range msgs {
		m.Type = types.MessageTypeText
		if _, err := convs.Append(ctx, conv.ID, m); err != nil {
			return fmt.Errorf("seed message: %w", err)
		}
	}
	if markRead {
		if err := convs.MarkRead(ctx, conv.ID); err != nil {
			return fmt.Errorf("seed mark read: %w", err)
		}
	}
	return nil
}
