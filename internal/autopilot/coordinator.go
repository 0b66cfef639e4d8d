// internal/autopilot/coordinator.go
package autopilot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/chatpilot/internal/agent"
	"github.com/user/chatpilot/internal/delivery"
	"github.com/user/chatpilot/internal/suggest"
	"github.com/user/chatpilot/internal/types"
)

// Coordinator watches incoming customer messages and produces autonomous
// replies when an auto-reply persona is enabled. Per conversation it is a
// two-state machine, Idle -> Pending -> Idle: at most one Pending cycle may
// exist per conversation, and a trigger while Pending is a no-op, not queued.
//
// A global semaphore caps how many generation cycles run at once across all
// conversations. Once a cycle is triggered it always completes with an
// appended message, genuine or fallback, so the customer is never left
// unanswered. Only shutdown interrupts a cycle mid-delay.
type Coordinator struct {
	convs    types.ConversationStore
	contacts types.ContactStore
	registry *agent.Registry
	suggest  *suggest.Service
	delivery *delivery.Registry

	thinkingDelay time.Duration
	sem           *semaphore.Weighted

	mu       sync.Mutex
	pending  map[types.ConversationID]bool
	answered map[types.ConversationID]types.MessageID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures optional Coordinator behavior.
type Option func(*Coordinator)

// WithThinkingDelay overrides the simulated typing delay before a reply is
// generated.
func WithThinkingDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.thinkingDelay = d }
}

// WithDelivery routes completed auto-replies through the given registry.
func WithDelivery(r *delivery.Registry) Option {
	return func(c *Coordinator) { c.delivery = r }
}

// WithMaxConcurrent caps simultaneous generation cycles across conversations.
func WithMaxConcurrent(n int64) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(n)
		}
	}
}

// New creates a Coordinator wired to the given stores and suggestion service.
func New(convs types.ConversationStore, contacts types.ContactStore, registry *agent.Registry, sugg *suggest.Service, opts ...Option) *Coordinator {
	c := &Coordinator{
		convs:         convs,
		contacts:      contacts,
		registry:      registry,
		suggest:       sugg,
		thinkingDelay: 3 * time.Second,
		sem:           semaphore.NewWeighted(2),
		pending:       make(map[types.ConversationID]bool),
		answered:      make(map[types.ConversationID]types.MessageID),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Start re-roots the coordinator's lifecycle under the given parent context.
// Cycles triggered before Start run on a background lifecycle and are only
// interrupted by Stop.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
}

// Stop cancels in-flight cycles and waits for them to exit.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until no cycle is in flight.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Pending reports whether a cycle is in flight for the conversation.
func (c *Coordinator) Pending(id types.ConversationID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[id]
}

// HandleInbound appends a customer message to the conversation and evaluates
// the auto-reply trigger for the new tail.
func (c *Coordinator) HandleInbound(ctx context.Context, id types.ConversationID, senderID, text string) error {
	if senderID == types.SenderMe {
		return fmt.Errorf("inbound message cannot come from %q", types.SenderMe)
	}
	if _, err := c.convs.Append(ctx, id, types.Message{
		Content:  text,
		SenderID: senderID,
		Type:     types.MessageTypeText,
		Status:   types.MessageStatusRead,
	}); err != nil {
		return fmt.Errorf("append inbound: %w", err)
	}
	return c.MaybeTrigger(ctx, id)
}

// MaybeTrigger transitions the conversation to Pending and starts a reply
// cycle when all conditions hold: the tail message came from the customer, an
// auto-reply persona exists, the conversation is Idle, and the tail has not
// already been answered. Re-selecting a conversation therefore never
// re-triggers for a message that already got its reply.
func (c *Coordinator) MaybeTrigger(ctx context.Context, id types.ConversationID) error {
	conv, err := c.convs.Get(ctx, id)
	if err != nil {
		return err
	}
	tail := conv.Tail()
	if tail == nil || tail.Outbound() {
		return nil
	}

	persona, err := c.registry.FindAutoReplyCandidate(ctx)
	if err != nil {
		return fmt.Errorf("resolve auto-reply persona: %w", err)
	}
	if persona == nil {
		return nil
	}

	c.mu.Lock()
	if c.pending[id] || c.answered[id] == tail.ID {
		c.mu.Unlock()
		return nil
	}
	c.pending[id] = true
	c.mu.Unlock()

	// The persona is captured here. Deactivating it mid-cycle does not
	// cancel the in-flight reply.
	c.wg.Add(1)
	go c.runCycle(id, tail.ID, persona)
	return nil
}

func (c *Coordinator) runCycle(id types.ConversationID, tailID types.MessageID, persona *types.Agent) {
	defer c.wg.Done()
	completed := false
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		if completed {
			c.answered[id] = tailID
		}
		c.mu.Unlock()
	}()

	if err := c.sem.Acquire(c.ctx, 1); err != nil {
		return
	}
	defer c.sem.Release(1)

	// Simulated typing delay, cancellable on shutdown.
	timer := time.NewTimer(c.thinkingDelay)
	select {
	case <-timer.C:
	case <-c.ctx.Done():
		timer.Stop()
		return
	}

	// Re-read: history may have grown while we were "typing".
	conv, err := c.convs.Get(c.ctx, id)
	if err != nil {
		slog.Error("autopilot: load conversation failed", "conversation_id", string(id), "error", err)
		return
	}

	var notes string
	if contact, err := c.contacts.Get(c.ctx, conv.ContactID); err == nil {
		notes = contact.Notes
	}

	// GetReply absorbs provider failure into fallback text, so the cycle
	// always ends with an appended reply.
	text := c.suggest.GetReply(c.ctx, conv.Messages, notes, persona.SystemInstruction)

	msg := types.Message{
		ID:          types.NewMessageID(),
		Content:     text,
		SenderID:    types.SenderMe,
		Timestamp:   time.Now(),
		Type:        types.MessageTypeText,
		Status:      types.MessageStatusSent,
		AgentID:     persona.ID,
		AutoReplied: true,
	}
	if _, err := c.convs.Append(c.ctx, id, msg); err != nil {
		slog.Error("autopilot: append reply failed", "conversation_id", string(id), "error", err)
		return
	}
	completed = true

	if c.delivery != nil {
		if err := c.delivery.Deliver(conv.Channel, id, &msg); err != nil {
			slog.Warn("autopilot: delivery failed", "conversation_id", string(id), "error", err)
		}
	}

	slog.Info("autopilot reply sent",
		"conversation_id", string(id),
		"agent_id", string(persona.ID),
		"message_id", string(msg.ID),
	)
}
