// internal/types/models.go
package types

import (
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeAudio MessageType = "audio"
)

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusScheduled MessageStatus = "scheduled"
)

type ConversationStatus string

const (
	ConversationOpen     ConversationStatus = "open"
	ConversationSnoozed  ConversationStatus = "snoozed"
	ConversationResolved ConversationStatus = "resolved"
)

type Message struct {
	ID          MessageID     `json:"id"`
	Content     string        `json:"content"`
	SenderID    string        `json:"sender_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Type        MessageType   `json:"type"`
	Status      MessageStatus `json:"status"`
	AgentID     AgentID       `json:"agent_id,omitempty"`
	AutoReplied bool          `json:"auto_replied,omitempty"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
}

// Outbound reports whether the message was sent by us rather than received
// from the customer.
func (m *Message) Outbound() bool {
	return m.SenderID == SenderMe
}

type Conversation struct {
	ID              ConversationID     `json:"id"`
	ContactID       ContactID          `json:"contact_id"`
	Status          ConversationStatus `json:"status"`
	Channel         string             `json:"channel"`
	LastMessage     string             `json:"last_message"`
	LastMessageTime time.Time          `json:"last_message_time"`
	UnreadCount     int                `json:"unread_count"`
	Messages        []Message          `json:"messages"`
}

// Tail returns the newest message, or nil when the conversation is empty.
func (c *Conversation) Tail() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

type Contact struct {
	ID          ContactID `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email,omitempty"`
	Company     string    `json:"company,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	IsGroup     bool      `json:"is_group"`
}

// Agent is a configured AI persona. IsAutoReplyEnabled may only be true while
// IsActive is true; the registry enforces that as a toggle side effect.
type Agent struct {
	ID                 AgentID   `json:"id"`
	Name               string    `json:"name"`
	Role               string    `json:"role"`
	Description        string    `json:"description,omitempty"`
	SystemInstruction  string    `json:"system_instruction"`
	Avatar             string    `json:"avatar,omitempty"`
	IsActive           bool      `json:"is_active"`
	IsAutoReplyEnabled bool      `json:"is_auto_reply_enabled"`
	CreatedAt          time.Time `json:"created_at"`
}
