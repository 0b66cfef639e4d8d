// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/chatpilot/internal/delivery"
	"github.com/user/chatpilot/internal/types"
)

// Scheduler owns deferred message delivery. Scheduling appends a message with
// status "scheduled" immediately; a background ticker later promotes due
// messages to "sent". Promotion is monotonic and idempotent: an already-sent
// message is never touched again.
//
// In this system the ticker is a local timer. A faithful production
// deployment would back it with a durable delayed-delivery queue.
type Scheduler struct {
	convs    types.ConversationStore
	delivery *delivery.Registry
	interval time.Duration
	cron     *cron.Cron
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithPollInterval overrides how often due messages are checked.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithDelivery routes promoted messages through the given registry.
func WithDelivery(r *delivery.Registry) Option {
	return func(s *Scheduler) { s.delivery = r }
}

// New creates a Scheduler over the given conversation store.
func New(convs types.ConversationStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		convs:    convs,
		interval: 5 * time.Second,
		cron:     cron.New(cron.WithSeconds()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule appends a message deferred to the given instant. The instant must
// be strictly in the future, otherwise ErrInvalidSchedule is returned and
// nothing is appended.
func (s *Scheduler) Schedule(ctx context.Context, id types.ConversationID, text string, agentID types.AgentID, when time.Time) (*types.Message, error) {
	if when.IsZero() || !when.After(time.Now()) {
		return nil, fmt.Errorf("schedule for %s: %w", when, types.ErrInvalidSchedule)
	}

	at := when
	msg := types.Message{
		ID:          types.NewMessageID(),
		Content:     text,
		SenderID:    types.SenderMe,
		Timestamp:   time.Now(),
		Type:        types.MessageTypeText,
		Status:      types.MessageStatusScheduled,
		AgentID:     agentID,
		ScheduledAt: &at,
	}
	if _, err := s.convs.Append(ctx, id, msg); err != nil {
		return nil, err
	}

	slog.Info("message scheduled",
		"conversation_id", string(id),
		"message_id", string(msg.ID),
		"scheduled_at", at,
	)
	return &msg, nil
}

// PromoteDue transitions every scheduled message whose time has elapsed to
// "sent", leaving content and agent attribution unchanged, and hands it to
// the delivery registry. Returns the number of messages promoted.
func (s *Scheduler) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.convs.DueScheduled(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find due messages: %w", err)
	}

	promoted := 0
	for convID, msgIDs := range due {
		conv, err := s.convs.Get(ctx, convID)
		if err != nil {
			slog.Error("promote: load conversation failed", "conversation_id", string(convID), "error", err)
			continue
		}
		for _, msgID := range msgIDs {
			if err := s.convs.UpdateMessageStatus(ctx, convID, msgID, types.MessageStatusSent); err != nil {
				slog.Error("promote failed", "conversation_id", string(convID), "message_id", string(msgID), "error", err)
				continue
			}
			promoted++
			slog.Info("scheduled message promoted", "conversation_id", string(convID), "message_id", string(msgID))

			if s.delivery != nil {
				for i := range conv.Messages {
					if conv.Messages[i].ID != msgID {
						continue
					}
					m := conv.Messages[i]
					m.Status = types.MessageStatusSent
					if err := s.delivery.Deliver(conv.Channel, convID, &m); err != nil {
						slog.Warn("promote: delivery failed", "conversation_id", string(convID), "error", err)
					}
					break
				}
			}
		}
	}
	return promoted, nil
}

// Start begins the background promotion ticker.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.PromoteDue(context.Background(), time.Now()); err != nil {
			slog.Error("scheduled promotion pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register promotion job: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop stops the promotion ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
