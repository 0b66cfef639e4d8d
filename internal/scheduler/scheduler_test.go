// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/chatpilot/internal/delivery"
	"github.com/user/chatpilot/internal/state"
	"github.com/user/chatpilot/internal/types"
)

func newStoreAndConv(t *testing.T) (*state.ConversationStore, types.ConversationID) {
	t.Helper()
	store := state.NewConversationStore(t.TempDir())
	conv, err := store.Create(context.Background(), types.NewContactID(), "whatsapp")
	if err != nil {
		t.Fatal(err)
	}
	return store, conv.ID
}

func TestScheduleRejectsPast(t *testing.T) {
	store, convID := newStoreAndConv(t)
	sched := New(store)
	ctx := context.Background()

	for _, when := range []time.Time{
		{},
		time.Now().Add(-time.Minute),
		time.Now(),
	} {
		if _, err := sched.Schedule(ctx, convID, "later", "", when); !errors.Is(err, types.ErrInvalidSchedule) {
			t.Errorf("Schedule(%v): expected ErrInvalidSchedule, got %v", when, err)
		}
	}

	conv, err := store.Get(ctx, convID)
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 0 {
		t.Errorf("rejected schedules must not append, got %d messages", len(conv.Messages))
	}
}

func TestScheduleAppendsScheduledMessage(t *testing.T) {
	store, convID := newStoreAndConv(t)
	sched := New(store)
	ctx := context.Background()

	when := time.Now().Add(time.Hour)
	msg, err := sched.Schedule(ctx, convID, "see you tomorrow", "agent-1", when)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != types.MessageStatusScheduled {
		t.Errorf("expected scheduled status, got %s", msg.Status)
	}
	if msg.ScheduledAt == nil || !msg.ScheduledAt.Equal(when) {
		t.Errorf("expected ScheduledAt %v, got %v", when, msg.ScheduledAt)
	}

	conv, _ := store.Get(ctx, convID)
	tail := conv.Tail()
	if tail == nil || tail.ID != msg.ID {
		t.Fatal("scheduled message must be appended immediately")
	}
	if conv.LastMessage != "see you tomorrow" {
		t.Errorf("summary must reflect the scheduled tail, got %q", conv.LastMessage)
	}
}

func TestPromoteDue(t *testing.T) {
	store, convID := newStoreAndConv(t)

	var delivered atomic.Int64
	reg := delivery.NewRegistry()
	reg.Register("whatsapp", func(_ types.ConversationID, msg *types.Message) error {
		if msg.Status != types.MessageStatusSent {
			t.Errorf("delivered message must carry sent status, got %s", msg.Status)
		}
		delivered.Add(1)
		return nil
	})
	sched := New(store, WithDelivery(reg))
	ctx := context.Background()

	when := time.Now().Add(50 * time.Millisecond)
	msg, err := sched.Schedule(ctx, convID, "ping", "agent-1", when)
	if err != nil {
		t.Fatal(err)
	}

	// Before the instant: nothing happens.
	n, err := sched.PromoteDue(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected nothing due yet, promoted %d", n)
	}

	// After the instant: promoted exactly once, second pass is a no-op.
	later := when.Add(time.Second)
	n, err = sched.PromoteDue(ctx, later)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 promotion, got %d", n)
	}
	n, err = sched.PromoteDue(ctx, later)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("promotion must be idempotent, got %d on second pass", n)
	}

	conv, _ := store.Get(ctx, convID)
	tail := conv.Tail()
	if tail.ID != msg.ID || tail.Status != types.MessageStatusSent {
		t.Errorf("expected tail promoted to sent, got %+v", tail)
	}
	if tail.Content != "ping" || tail.AgentID != "agent-1" {
		t.Error("promotion must not change content or attribution")
	}
	if delivered.Load() != 1 {
		t.Errorf("expected 1 delivery, got %d", delivered.Load())
	}
}

func TestTickerPromotes(t *testing.T) {
	store, convID := newStoreAndConv(t)
	sched := New(store, WithPollInterval(time.Second))
	ctx := context.Background()

	if _, err := sched.Schedule(ctx, convID, "soon", "", time.Now().Add(200*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conv, err := store.Get(ctx, convID)
		if err != nil {
			t.Fatal(err)
		}
		if tail := conv.Tail(); tail != nil && tail.Status == types.MessageStatusSent {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("ticker did not promote the due message")
}
