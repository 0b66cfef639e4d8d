// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/chatpilot/internal/types"
)

// Handler pushes an outbound message to the transport behind a channel.
type Handler func(conversationID types.ConversationID, msg *types.Message) error

// Registry routes outbound messages to the appropriate transport handler
// based on the conversation's channel (e.g. "whatsapp").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for the given channel.
func (r *Registry) Register(channel string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[channel] = handler
}

// Deliver finds the handler for the channel and calls it. Returns an error if
// no handler is registered for the channel.
func (r *Registry) Deliver(channel string, conversationID types.ConversationID, msg *types.Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handler, ok := r.handlers[channel]; ok {
		return handler(conversationID, msg)
	}
	return fmt.Errorf("no delivery handler for channel: %s", channel)
}

// NewWhatsAppStub returns a handler that records the send without touching a
// real messaging network. The WhatsApp Cloud/Evolution APIs exist only as
// configuration in this system.
func NewWhatsAppStub() Handler {
	return func(conversationID types.ConversationID, msg *types.Message) error {
		slog.Info("whatsapp delivery (stub)",
			"conversation_id", string(conversationID),
			"message_id", string(msg.ID),
			"auto_replied", msg.AutoReplied,
		)
		return nil
	}
}
