// internal/composer/composer_test.go
package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/chatpilot/internal/agent"
	"github.com/user/chatpilot/internal/scheduler"
	"github.com/user/chatpilot/internal/state"
	"github.com/user/chatpilot/internal/suggest"
	"github.com/user/chatpilot/internal/types"
	"github.com/user/chatpilot/pkg/llm"
)

type fakeProvider struct {
	completeFunc func(ctx context.Context, messages []llm.Message) (*llm.Response, error)
}

func (p *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	if p.completeFunc != nil {
		return p.completeFunc(ctx, messages)
	}
	return &llm.Response{Content: "suggested text"}, nil
}

type rig struct {
	convs    *state.ConversationStore
	registry *agent.Registry
	provider *fakeProvider
	comp     *Composer
	conv     *types.Conversation
	persona  *types.Agent
}

func newRig(t *testing.T) *rig {
	t.Helper()
	dir := t.TempDir()
	convs := state.NewConversationStore(dir)
	contacts := state.NewContactStore(dir)
	registry := agent.NewRegistry(state.NewAgentStore(dir))
	provider := &fakeProvider{}

	svc, err := suggest.New(provider, "gpt-4o-mini", 4096, 512)
	if err != nil {
		t.Fatal(err)
	}
	sched := scheduler.New(convs)

	ctx := context.Background()
	contact := &types.Contact{Name: "John Doe", PhoneNumber: "+1 555 0100"}
	if err := contacts.Add(ctx, contact); err != nil {
		t.Fatal(err)
	}
	conv, err := convs.Create(ctx, contact.ID, "whatsapp")
	if err != nil {
		t.Fatal(err)
	}
	convs.Append(ctx, conv.ID, types.Message{Content: "hello", SenderID: "cust-1"})

	persona := &types.Agent{Name: "Deal Closer", SystemInstruction: "Close deals.", IsActive: true}
	if err := registry.Add(ctx, persona); err != nil {
		t.Fatal(err)
	}

	comp := New(convs, contacts, registry, svc, sched, nil)
	return &rig{convs: convs, registry: registry, provider: provider, comp: comp, conv: conv, persona: persona}
}

func TestRequestDraftStagesSuggestion(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.comp.RequestDraft(ctx, r.conv.ID, r.persona.ID); err != nil {
		t.Fatal(err)
	}
	r.comp.Wait()

	d := r.comp.Draft(r.conv.ID)
	if d.Text != "suggested text" {
		t.Errorf("expected staged suggestion, got %q", d.Text)
	}
	if d.AgentID != r.persona.ID {
		t.Errorf("expected draft attributed to persona, got %q", d.AgentID)
	}
	if d.Generating {
		t.Error("expected no generation in flight after Wait")
	}
}

func TestRequestDraftInactivePersonaIsNoOp(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.registry.SetActive(ctx, r.persona.ID, false); err != nil {
		t.Fatal(err)
	}
	if err := r.comp.RequestDraft(ctx, r.conv.ID, r.persona.ID); err != nil {
		t.Fatalf("inactive persona must be a no-op, not an error: %v", err)
	}
	r.comp.Wait()

	if d := r.comp.Draft(r.conv.ID); d.Text != "" || d.AgentID != "" {
		t.Errorf("expected untouched draft, got %+v", d)
	}
}

func TestRequestDraftUnknownConversation(t *testing.T) {
	r := newRig(t)
	err := r.comp.RequestDraft(context.Background(), "missing", r.persona.ID)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserEditClearsAttribution(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.comp.RequestDraft(ctx, r.conv.ID, r.persona.ID); err != nil {
		t.Fatal(err)
	}
	r.comp.Wait()

	r.comp.UpdateDraft(r.conv.ID, "suggested text, but personal now")

	d := r.comp.Draft(r.conv.ID)
	if d.Text != "suggested text, but personal now" {
		t.Errorf("expected edited text, got %q", d.Text)
	}
	if d.AgentID != "" {
		t.Error("editing must drop persona attribution")
	}
}

func TestUserEditBeatsInflightGeneration(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	release := make(chan struct{})
	r.provider.completeFunc = func(_ context.Context, _ []llm.Message) (*llm.Response, error) {
		<-release
		return &llm.Response{Content: "late suggestion"}, nil
	}

	if err := r.comp.RequestDraft(ctx, r.conv.ID, r.persona.ID); err != nil {
		t.Fatal(err)
	}
	if d := r.comp.Draft(r.conv.ID); !d.Generating {
		t.Error("expected Generating while the request is in flight")
	}

	r.comp.UpdateDraft(r.conv.ID, "typed by hand")
	close(release)
	r.comp.Wait()

	d := r.comp.Draft(r.conv.ID)
	if d.Text != "typed by hand" {
		t.Errorf("a user edit must outrank a later-resolving generation, got %q", d.Text)
	}
	if d.AgentID != "" {
		t.Errorf("expected no attribution after edit, got %q", d.AgentID)
	}
}

func TestRequestDraftOutlivesCallerContext(t *testing.T) {
	r := newRig(t)

	release := make(chan struct{})
	r.provider.completeFunc = func(ctx context.Context, _ []llm.Message) (*llm.Response, error) {
		select {
		case <-release:
			return &llm.Response{Content: "genuine suggestion"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// The caller's context ends as soon as its request is answered, the way
	// an HTTP request context does once the handler returns.
	ctx, cancel := context.WithCancel(context.Background())
	if err := r.comp.RequestDraft(ctx, r.conv.ID, r.persona.ID); err != nil {
		t.Fatal(err)
	}
	cancel()
	close(release)
	r.comp.Wait()

	d := r.comp.Draft(r.conv.ID)
	if d.Text != "genuine suggestion" {
		t.Errorf("generation must not be aborted by the caller's context, got %q", d.Text)
	}
	if d.AgentID != r.persona.ID {
		t.Errorf("expected attribution to persona, got %q", d.AgentID)
	}
}

func TestStopAbortsInflightGeneration(t *testing.T) {
	r := newRig(t)

	started := make(chan struct{})
	r.provider.completeFunc = func(ctx context.Context, _ []llm.Message) (*llm.Response, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if err := r.comp.RequestDraft(context.Background(), r.conv.ID, r.persona.ID); err != nil {
		t.Fatal(err)
	}
	<-started
	r.comp.Stop()

	if d := r.comp.Draft(r.conv.ID); d.Text != "" {
		t.Errorf("a generation aborted by shutdown must not stage its fallback, got %q", d.Text)
	}
}

func TestSendAppendsAndClearsDraft(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	r.comp.UpdateDraft(r.conv.ID, "on my way")
	msg, err := r.comp.Send(ctx, r.conv.ID, "on my way", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.SenderID != types.SenderMe || msg.Status != types.MessageStatusSent {
		t.Errorf("unexpected sent message %+v", msg)
	}
	if msg.AutoReplied {
		t.Error("manual send must not be flagged auto-replied")
	}

	conv, _ := r.convs.Get(ctx, r.conv.ID)
	if conv.LastMessage != "on my way" {
		t.Errorf("summary must reflect the sent message, got %q", conv.LastMessage)
	}

	if d := r.comp.Draft(r.conv.ID); d.Text != "" {
		t.Errorf("send must clear the draft, got %q", d.Text)
	}
}

func TestSendEmptyText(t *testing.T) {
	r := newRig(t)
	if _, err := r.comp.Send(context.Background(), r.conv.ID, "", "", nil); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestSendScheduledDelegates(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	if _, err := r.comp.Send(ctx, r.conv.ID, "too late", "", &past); !errors.Is(err, types.ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule for past instant, got %v", err)
	}

	future := time.Now().Add(time.Hour)
	msg, err := r.comp.Send(ctx, r.conv.ID, "tomorrow then", r.persona.ID, &future)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != types.MessageStatusScheduled {
		t.Errorf("expected scheduled status, got %s", msg.Status)
	}
	if msg.AgentID != r.persona.ID {
		t.Errorf("expected attribution carried into the scheduled message, got %q", msg.AgentID)
	}
}
