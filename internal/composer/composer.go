// internal/composer/composer.go
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/chatpilot/internal/agent"
	"github.com/user/chatpilot/internal/delivery"
	"github.com/user/chatpilot/internal/scheduler"
	"github.com/user/chatpilot/internal/suggest"
	"github.com/user/chatpilot/internal/types"
)

// Draft is the staged, not-yet-sent outbound text for a conversation. While
// AgentID is set, the draft is attributed to the persona that generated it;
// editing the text drops the attribution so a sent message is never credited
// to a persona it no longer reflects.
type Draft struct {
	Text       string        `json:"text"`
	AgentID    types.AgentID `json:"agent_id,omitempty"`
	Generating bool          `json:"generating"`
}

type slot struct {
	text     string
	agentID  types.AgentID
	editSeq  uint64
	inflight int
}

// Composer handles the manual side of outbound messaging: on-demand draft
// suggestions and the send action. Unlike the autopilot there is no mutual
// exclusion here: overlapping draft requests are allowed and the most
// recently resolved one wins, unless the user has edited the field meanwhile.
type Composer struct {
	convs    types.ConversationStore
	contacts types.ContactStore
	registry *agent.Registry
	suggest  *suggest.Service
	sched    *scheduler.Scheduler
	delivery *delivery.Registry

	mu    sync.Mutex
	slots map[types.ConversationID]*slot
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Composer. The delivery registry may be nil.
func New(convs types.ConversationStore, contacts types.ContactStore, registry *agent.Registry, sugg *suggest.Service, sched *scheduler.Scheduler, dlv *delivery.Registry) *Composer {
	c := &Composer{
		convs:    convs,
		contacts: contacts,
		registry: registry,
		suggest:  sugg,
		sched:    sched,
		delivery: dlv,
		slots:    make(map[types.ConversationID]*slot),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Start re-roots the composer's lifecycle under the given parent context.
// Draft generations run on this lifecycle rather than on the caller's
// request context, so they keep running after the request that asked for
// them has been answered.
func (c *Composer) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
}

// Stop cancels in-flight generations and waits for them to exit.
func (c *Composer) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Composer) slotFor(id types.ConversationID) *slot {
	if s, ok := c.slots[id]; ok {
		return s
	}
	s := &slot{}
	c.slots[id] = s
	return s
}

// RequestDraft asynchronously generates a suggestion with the chosen persona
// and stages it into the conversation's draft slot, bound to that persona.
// Requesting with an inactive persona is a no-op, mirroring the UI guard.
// Validation uses the caller's context; the generation itself runs on the
// composer's lifecycle, which outlives an HTTP request that has already been
// answered with its 202.
func (c *Composer) RequestDraft(ctx context.Context, id types.ConversationID, personaID types.AgentID) error {
	conv, err := c.convs.Get(ctx, id)
	if err != nil {
		return err
	}
	persona, err := c.registry.Get(ctx, personaID)
	if err != nil {
		return err
	}
	if !persona.IsActive {
		return nil
	}

	var notes string
	if contact, err := c.contacts.Get(ctx, conv.ContactID); err == nil {
		notes = contact.Notes
	}

	c.mu.Lock()
	s := c.slotFor(id)
	s.inflight++
	started := s.editSeq
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		text := c.suggest.GetReply(c.ctx, conv.Messages, notes, persona.SystemInstruction)

		c.mu.Lock()
		defer c.mu.Unlock()
		s.inflight--
		// Shutdown aborted the generation; don't stage its fallback text.
		if c.ctx.Err() != nil {
			return
		}
		// Latest resolved wins, but a user edit since the request started
		// takes precedence over any generated text.
		if s.editSeq != started {
			return
		}
		s.text = text
		s.agentID = persona.ID
	}()
	return nil
}

// UpdateDraft records a user edit of the staged text. Any modification,
// including emptying the field, clears the persona attribution and
// invalidates in-flight generations for the slot.
func (c *Composer) UpdateDraft(id types.ConversationID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slotFor(id)
	if s.text == text {
		return
	}
	s.text = text
	s.agentID = ""
	s.editSeq++
}

// ClearDraftAttribution detaches the staged text from the persona that
// generated it.
func (c *Composer) ClearDraftAttribution(id types.ConversationID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slotFor(id).agentID = ""
}

// Draft returns a snapshot of the conversation's draft slot.
func (c *Composer) Draft(id types.ConversationID) Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slotFor(id)
	return Draft{Text: s.text, AgentID: s.agentID, Generating: s.inflight > 0}
}

// Send records an outbound message, immediately or deferred to scheduledAt,
// and clears the conversation's draft slot. agentID may be empty for a fully
// manual message.
func (c *Composer) Send(ctx context.Context, id types.ConversationID, text string, agentID types.AgentID, scheduledAt *time.Time) (*types.Message, error) {
	if text == "" {
		return nil, fmt.Errorf("empty message text")
	}

	var msg *types.Message
	if scheduledAt != nil {
		m, err := c.sched.Schedule(ctx, id, text, agentID, *scheduledAt)
		if err != nil {
			return nil, err
		}
		msg = m
	} else {
		m := types.Message{
			ID:        types.NewMessageID(),
			Content:   text,
			SenderID:  types.SenderMe,
			Timestamp: time.Now(),
			Type:      types.MessageTypeText,
			Status:    types.MessageStatusSent,
			AgentID:   agentID,
		}
		conv, err := c.convs.Append(ctx, id, m)
		if err != nil {
			return nil, err
		}
		if c.delivery != nil {
			if err := c.delivery.Deliver(conv.Channel, id, &m); err != nil {
				slog.Warn("send: delivery failed", "conversation_id", string(id), "error", err)
			}
		}
		msg = &m
	}

	c.mu.Lock()
	s := c.slotFor(id)
	s.text = ""
	s.agentID = ""
	s.editSeq++
	c.mu.Unlock()

	return msg, nil
}

// Wait blocks until no draft generation is in flight.
func (c *Composer) Wait() {
	c.wg.Wait()
}
