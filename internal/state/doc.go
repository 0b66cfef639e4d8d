// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/chatpilot/internal/types"

// Compile-time interface compliance checks.
var _ types.ConversationStore = (*ConversationStore)(nil)
var _ types.AgentStore = (*AgentStore)(nil)
var _ types.ContactStore = (*ContactStore)(nil)
