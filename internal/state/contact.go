// internal/state/contact.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/chatpilot/internal/types"
)

// ContactStore is a JSON-file-backed store for contacts. Contacts are owned
// by the CRM side of the system; the engine reads them for display names and
// for the free-text notes fed to the suggestion provider.
type ContactStore struct {
	path string
	mu   sync.RWMutex
}

// NewContactStore creates a file-backed ContactStore rooted at the given data
// directory.
func NewContactStore(root string) *ContactStore {
	return &ContactStore{path: filepath.Join(root, "contacts.json")}
}

func (s *ContactStore) load() ([]*types.Contact, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.Contact{}, nil
		}
		return nil, fmt.Errorf("read contacts file: %w", err)
	}

	var contacts []*types.Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("unmarshal contacts: %w", err)
	}
	return contacts, nil
}

func (s *ContactStore) save(contacts []*types.Contact) error {
	data, err := json.MarshalIndent(contacts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal contacts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp contacts file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp contacts file: %w", err)
	}
	return nil
}

// List returns all contacts.
func (s *ContactStore) List(_ context.Context) ([]*types.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load()
}

// Get finds a contact by ID.
func (s *ContactStore) Get(_ context.Context, id types.ContactID) (*types.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contacts, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
}

// Add appends a contact, assigning an ID if unset. Individual contacts must
// carry a phone number; groups are exempt.
func (s *ContactStore) Add(_ context.Context, contact *types.Contact) error {
	if !contact.IsGroup && strings.TrimSpace(contact.PhoneNumber) == "" {
		return fmt.Errorf("contact %q: phone number required for individuals", contact.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load()
	if err != nil {
		return err
	}

	if contact.ID == "" {
		contact.ID = types.NewContactID()
	}
	for _, existing := range contacts {
		if existing.ID == contact.ID {
			return fmt.Errorf("contact already exists: %s", contact.ID)
		}
	}

	contacts = append(contacts, contact)
	return s.save(contacts)
}

// Update persists changes to an existing contact.
func (s *ContactStore) Update(_ context.Context, contact *types.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load()
	if err != nil {
		return err
	}
	for i, c := range contacts {
		if c.ID == contact.ID {
			contacts[i] = contact
			return s.save(contacts)
		}
	}
	return fmt.Errorf("contact %s: %w", contact.ID, types.ErrNotFound)
}
