// internal/state/conversation.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/chatpilot/internal/types"
)

// ConversationStore is a JSON-file-backed store for conversations and their
// message sequences. The whole collection is snapshotted to
// conversations.json on every mutation.
//
// All mutation goes through Append/SetStatus/MarkRead/UpdateMessageStatus so
// that the summary fields (LastMessage, LastMessageTime) never drift from the
// message tail. Callers hold only IDs, never live references into the store.
type ConversationStore struct {
	path string
	mu   sync.RWMutex
}

// NewConversationStore creates a file-backed ConversationStore rooted at the
// given data directory.
func NewConversationStore(root string) *ConversationStore {
	return &ConversationStore{path: filepath.Join(root, "conversations.json")}
}

// load reads the snapshot file. Returns an empty slice if it doesn't exist.
func (s *ConversationStore) load() ([]*types.Conversation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.Conversation{}, nil
		}
		return nil, fmt.Errorf("read conversations file: %w", err)
	}

	var convs []*types.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("unmarshal conversations: %w", err)
	}
	return convs, nil
}

// save writes the full collection using atomic write (temp file + rename).
func (s *ConversationStore) save(convs []*types.Conversation) error {
	data, err := json.MarshalIndent(convs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversations: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp conversations file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp conversations file: %w", err)
	}
	return nil
}

func find(convs []*types.Conversation, id types.ConversationID) *types.Conversation {
	for _, c := range convs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Create adds an empty open conversation for the given contact.
func (s *ConversationStore) Create(_ context.Context, contactID types.ContactID, channel string) (*types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load()
	if err != nil {
		return nil, err
	}

	conv := &types.Conversation{
		ID:        types.NewConversationID(),
		ContactID: contactID,
		Status:    types.ConversationOpen,
		Channel:   channel,
		Messages:  []types.Message{},
	}
	convs = append(convs, conv)

	if err := s.save(convs); err != nil {
		return nil, err
	}
	return clone(conv), nil
}

// Get returns a copy of the conversation with the given ID.
func (s *ConversationStore) Get(_ context.Context, id types.ConversationID) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs, err := s.load()
	if err != nil {
		return nil, err
	}
	conv := find(convs, id)
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
	}
	return clone(conv), nil
}

// List returns copies of all conversations in creation order.
func (s *ConversationStore) List(_ context.Context) ([]*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, clone(c))
	}
	return out, nil
}

// Append inserts the message at the tail and recomputes the summary fields in
// the same critical section, so no reader ever observes a conversation whose
// summary lags its messages. Inbound messages bump the unread counter.
func (s *ConversationStore) Append(_ context.Context, id types.ConversationID, msg types.Message) (*types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load()
	if err != nil {
		return nil, err
	}
	conv := find(convs, id)
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
	}

	if msg.ID == "" {
		msg.ID = types.NewMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Type == "" {
		msg.Type = types.MessageTypeText
	}

	conv.Messages = append(conv.Messages, msg)
	conv.LastMessage = msg.Content
	conv.LastMessageTime = msg.Timestamp
	if !msg.Outbound() {
		conv.UnreadCount++
	}

	if err := s.save(convs); err != nil {
		return nil, err
	}
	return clone(conv), nil
}

// SetStatus changes the conversation lifecycle status.
func (s *ConversationStore) SetStatus(_ context.Context, id types.ConversationID, status types.ConversationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load()
	if err != nil {
		return err
	}
	conv := find(convs, id)
	if conv == nil {
		return fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
	}
	conv.Status = status
	return s.save(convs)
}

// MarkRead clears the unread counter.
func (s *ConversationStore) MarkRead(_ context.Context, id types.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load()
	if err != nil {
		return err
	}
	conv := find(convs, id)
	if conv == nil {
		return fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
	}
	if conv.UnreadCount == 0 {
		return nil
	}
	conv.UnreadCount = 0
	return s.save(convs)
}

// UpdateMessageStatus transitions a message's status. Setting a status the
// message already has is a no-op, which makes scheduled-message promotion
// idempotent. Content, agent attribution, and summary fields are untouched.
func (s *ConversationStore) UpdateMessageStatus(_ context.Context, id types.ConversationID, msgID types.MessageID, status types.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load()
	if err != nil {
		return err
	}
	conv := find(convs, id)
	if conv == nil {
		return fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
	}

	for i := range conv.Messages {
		if conv.Messages[i].ID != msgID {
			continue
		}
		if conv.Messages[i].Status == status {
			return nil
		}
		conv.Messages[i].Status = status
		return s.save(convs)
	}
	return fmt.Errorf("message %s: %w", msgID, types.ErrNotFound)
}

// DueScheduled returns, per conversation, the IDs of scheduled messages whose
// delivery time has elapsed at the given instant.
func (s *ConversationStore) DueScheduled(_ context.Context, now time.Time) (map[types.ConversationID][]types.MessageID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs, err := s.load()
	if err != nil {
		return nil, err
	}

	due := make(map[types.ConversationID][]types.MessageID)
	for _, conv := range convs {
		for i := range conv.Messages {
			m := &conv.Messages[i]
			if m.Status != types.MessageStatusScheduled || m.ScheduledAt == nil {
				continue
			}
			if !m.ScheduledAt.After(now) {
				due[conv.ID] = append(due[conv.ID], m.ID)
			}
		}
	}
	return due, nil
}

// clone deep-copies a conversation so callers cannot mutate store state
// behind the summary invariant's back.
func clone(c *types.Conversation) *types.Conversation {
	out := *c
	out.Messages = make([]types.Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}
