// internal/types/errors.go
package types

import "errors"

// ErrNotFound is returned when a conversation, contact, or agent ID is
// unknown to its store.
var ErrNotFound = errors.New("not found")

// ErrInvalidSchedule is returned when a scheduled delivery time is missing
// or not strictly in the future.
var ErrInvalidSchedule = errors.New("invalid schedule")
