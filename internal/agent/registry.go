// internal/agent/registry.go
package agent

import (
	"context"
	"fmt"

	"github.com/user/chatpilot/internal/types"
)

// Registry resolves which AI persona is responsible for a conversation and
// owns the toggle policy around the active/auto-reply flags.
type Registry struct {
	store types.AgentStore
}

// NewRegistry creates a Registry backed by the given agent store.
func NewRegistry(store types.AgentStore) *Registry {
	return &Registry{store: store}
}

// List returns all personas in registration order.
func (r *Registry) List(ctx context.Context) ([]*types.Agent, error) {
	return r.store.List(ctx)
}

// Get finds a persona by ID.
func (r *Registry) Get(ctx context.Context, id types.AgentID) (*types.Agent, error) {
	return r.store.Get(ctx, id)
}

// Add registers a new persona. A persona cannot be born with auto-reply on
// while inactive.
func (r *Registry) Add(ctx context.Context, a *types.Agent) error {
	if !a.IsActive {
		a.IsAutoReplyEnabled = false
	}
	return r.store.Add(ctx, a)
}

// Remove deletes a persona.
func (r *Registry) Remove(ctx context.Context, id types.AgentID) error {
	return r.store.Remove(ctx, id)
}

// ListActive returns personas with IsActive set, in registration order.
// An empty result is a valid state: no auto-reply or drafting is possible.
func (r *Registry) ListActive(ctx context.Context) ([]*types.Agent, error) {
	agents, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var active []*types.Agent
	for _, a := range agents {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active, nil
}

// FindAutoReplyCandidate returns the persona that drives autopilot, or nil
// when none qualifies. When several personas have auto-reply enabled, the
// first by registration order wins; ties are policy, not an error.
func (r *Registry) FindAutoReplyCandidate(ctx context.Context) (*types.Agent, error) {
	agents, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		if a.IsActive && a.IsAutoReplyEnabled {
			return a, nil
		}
	}
	return nil, nil
}

// SetActive toggles the active flag. Deactivating a persona force-disables
// its auto-reply as a side effect, so IsAutoReplyEnabled implies IsActive at
// all times.
func (r *Registry) SetActive(ctx context.Context, id types.AgentID, active bool) error {
	a, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	a.IsActive = active
	if !active {
		a.IsAutoReplyEnabled = false
	}
	return r.store.Update(ctx, a)
}

// SetAutoReply toggles autopilot for a persona. Enabling auto-reply on an
// inactive persona is a no-op, not an error.
func (r *Registry) SetAutoReply(ctx context.Context, id types.AgentID, enabled bool) error {
	a, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("set auto-reply: %w", err)
	}
	if enabled && !a.IsActive {
		return nil
	}
	a.IsAutoReplyEnabled = enabled
	return r.store.Update(ctx, a)
}
