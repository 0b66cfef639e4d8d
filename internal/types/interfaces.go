// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

type ConversationStore interface {
	Create(ctx context.Context, contactID ContactID, channel string) (*Conversation, error)
	Get(ctx context.Context, id ConversationID) (*Conversation, error)
	List(ctx context.Context) ([]*Conversation, error)
	Append(ctx context.Context, id ConversationID, msg Message) (*Conversation, error)
	SetStatus(ctx context.Context, id ConversationID, status ConversationStatus) error
	MarkRead(ctx context.Context, id ConversationID) error
	UpdateMessageStatus(ctx context.Context, id ConversationID, msgID MessageID, status MessageStatus) error
	DueScheduled(ctx context.Context, now time.Time) (map[ConversationID][]MessageID, error)
}

type AgentStore interface {
	List(ctx context.Context) ([]*Agent, error)
	Get(ctx context.Context, id AgentID) (*Agent, error)
	Add(ctx context.Context, agent *Agent) error
	Remove(ctx context.Context, id AgentID) error
	Update(ctx context.Context, agent *Agent) error
}

type ContactStore interface {
	List(ctx context.Context) ([]*Contact, error)
	Get(ctx context.Context, id ContactID) (*Contact, error)
	Add(ctx context.Context, contact *Contact) error
	Update(ctx context.Context, contact *Contact) error
}
