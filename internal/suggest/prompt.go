// internal/suggest/prompt.go
package suggest

import (
	"fmt"
	"strings"

	"github.com/user/chatpilot/internal/types"
)

// replyInstructions are appended to every reply prompt so the model produces
// bare message text suitable for a chat transcript.
const replyInstructions = `Instructions for output:
1. Generate a single reply text.
2. Do not include sender labels (e.g., "Agent:").
3. Keep it natural for a WhatsApp chat.`

// renderHistory formats the conversation transcript for the model, one line
// per message, labelled by side.
func renderHistory(history []types.Message) []string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		label := "Customer"
		if m.Outbound() {
			label = "Agent"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, m.Content))
	}
	return lines
}

// buildReplySystemPrompt combines the persona's behavioural instruction with
// the customer context notes and the output rules.
func buildReplySystemPrompt(personaInstruction, contactNotes string) string {
	var b strings.Builder
	b.WriteString(personaInstruction)
	if contactNotes != "" {
		b.WriteString("\n\nAdditional context about the customer: ")
		b.WriteString(contactNotes)
	}
	b.WriteString("\n\n")
	b.WriteString(replyInstructions)
	return b.String()
}

// buildSentimentPrompt asks for a single-word classification over the recent
// transcript window.
func buildSentimentPrompt(window []types.Message) string {
	contents := make([]string, 0, len(window))
	for _, m := range window {
		contents = append(contents, m.Content)
	}
	return fmt.Sprintf(
		"Analyze the sentiment of this conversation snippet.\nReturn ONLY one word: \"Positive\", \"Neutral\", or \"Negative\".\n\n%s",
		strings.Join(contents, "\n"),
	)
}
