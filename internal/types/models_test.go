// internal/types/models_test.go
package types

import (
	"testing"
)

func TestMessageOutbound(t *testing.T) {
	out := Message{SenderID: SenderMe}
	if !out.Outbound() {
		t.Error("messages from our side are outbound")
	}
	in := Message{SenderID: "cust-1"}
	if in.Outbound() {
		t.Error("customer messages are not outbound")
	}
}

func TestConversationTail(t *testing.T) {
	empty := Conversation{}
	if empty.Tail() != nil {
		t.Error("empty conversation has no tail")
	}

	conv := Conversation{Messages: []Message{
		{ID: "m1", Content: "first"},
		{ID: "m2", Content: "second"},
	}}
	tail := conv.Tail()
	if tail == nil || tail.ID != "m2" {
		t.Errorf("expected newest message as tail, got %+v", tail)
	}
}

func TestNewIDsUnique(t *testing.T) {
	if NewConversationID() == NewConversationID() {
		t.Error("conversation IDs must be unique")
	}
	if NewMessageID() == NewMessageID() {
		t.Error("message IDs must be unique")
	}
}
