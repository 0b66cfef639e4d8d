// internal/state/agent.go
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

// AgentStore is a JSON-file-backed store for AI personas. Listing order is
// registration order (CreatedAt, then insertion), which the registry relies
// on for its tie-break policy.
type AgentStore struct {
	path string
	mu   sync.RWMutex
}

// NewAgentStore creates a file-backed AgentStore rooted at the given data
// directory.
func NewAgentStore(root string) *AgentStore {
	return &AgentStore{path: filepath.Join(root, "agents.json")}
}

func (s *AgentStore) load() ([]*types.Agent, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.Agent{}, nil
		}
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var agents []*types.Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("unmarshal agents: %w", err)
	}
	return agents, nil
}

func (s *AgentStore) save(agents []*types.Agent) error {
	data, err := json.MarshalIndent(agents, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agents: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp agents file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp agents file: %w", err)
	}
	return nil
}

// List returns all agents in registration order.
func (s *AgentStore) List(_ context.Context) ([]*types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load()
}

// Get finds an agent by ID.
func (s *AgentStore) Get(_ context.Context, id types.AgentID) (*types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", id, types.ErrNotFound)
}

// Add appends an agent, assigning an ID and CreatedAt if unset.
func (s *AgentStore) Add(_ context.Context, agent *types.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.load()
	if err != nil {
		return err
	}

	if agent.ID == "" {
		agent.ID = types.NewAgentID()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now()
	}
	for _, existing := range agents {
		if existing.ID == agent.ID {
			return fmt.Errorf("agent already exists: %s", agent.ID)
		}
	}

	agents = append(agents, agent)
	return s.save(agents)
}

// Remove deletes an agent by ID.
func (s *AgentStore) Remove(_ context.Context, id types.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.load()
	if err != nil {
		return err
	}
	for i, a := range agents {
		if a.ID == id {
			agents = append(agents[:i], agents[i+1:]...)
			return s.save(agents)
		}
	}
	return fmt.Errorf("agent %s: %w", id, types.ErrNotFound)
}

// Update persists changes to an existing agent.
func (s *AgentStore) Update(_ context.Context, agent *types.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.load()
	if err != nil {
		return err
	}
	for i, a := range agents {
		if a.ID == agent.ID {
			agents[i] = agent
			return s.save(agents)
		}
	}
	return fmt.Errorf("agent %s: %w", agent.ID, types.ErrNotFound)
}
