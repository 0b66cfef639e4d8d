// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type ConversationID string
type ContactID string
type AgentID string
type MessageID string

func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func NewContactID() ContactID {
	return ContactID(uuid.New().String())
}

func NewAgentID() AgentID {
	return AgentID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// SenderMe is the sender ID recorded on outbound messages. Any other sender
// identifies the customer side of the conversation.
const SenderMe = "me"
