// internal/suggest/service.go
package suggest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/chatpilot/internal/types"
	"github.com/user/chatpilot/pkg/llm"
)

// Fallback texts. Upstream failure is absorbed here: callers of GetReply and
// AnalyzeSentiment never see an error, only content. The chat transcript is
// the error channel.
const (
	FallbackUnavailable = "AI service unavailable. Please type manually."
	FallbackEmpty       = "I couldn't generate a reply at this moment."
)

// Sentiment labels form a closed set; anything the model returns outside it
// is normalized to Neutral, and provider failure yields Unknown.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
	SentimentUnknown  = "Unknown"
)

// sentimentWindow bounds how much recent history sentiment analysis reads.
const sentimentWindow = 5

// Service produces generated reply suggestions and sentiment labels from an
// LLM provider. Both operations are side-effect-free and make a single
// attempt with no retries.
type Service struct {
	provider  llm.Provider
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// New creates a suggestion service with a token budget for prompts.
// model selects the tokenizer; maxTokens is the model's context window and
// reserve the room kept for the response.
func New(provider llm.Provider, model string, maxTokens, reserve int) (*Service, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &Service{
		provider:  provider,
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (s *Service) countTokens(text string) int {
	return len(s.tokenizer.Encode(text, nil, nil))
}

// GetReply generates one reply suggestion from the conversation history, the
// contact's free-text notes, and the persona's instruction. It always returns
// usable text: provider errors and empty completions resolve to fixed
// fallback strings.
func (s *Service) GetReply(ctx context.Context, history []types.Message, contactNotes, personaInstruction string) string {
	sysPrompt := buildReplySystemPrompt(personaInstruction, contactNotes)

	// Budget what's left after the system prompt; drop oldest transcript
	// lines first when the history doesn't fit.
	budget := s.maxTokens - s.reserve - s.countTokens(sysPrompt)
	lines := renderHistory(history)
	used := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		t := s.countTokens(lines[i])
		if used+t > budget {
			break
		}
		used += t
		start = i
	}
	transcript := strings.Join(lines[start:], "\n")

	resp, err := s.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: sysPrompt},
		{Role: "user", Content: "Current conversation:\n" + transcript},
	})
	if err != nil {
		slog.Warn("reply generation failed", "error", err)
		return FallbackUnavailable
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return FallbackEmpty
	}
	return text
}

// AnalyzeSentiment classifies the tone of the most recent messages. Only the
// last few messages are read to keep latency and cost bounded. Callers treat
// it as fire-and-forget; failure maps to Unknown rather than an error.
func (s *Service) AnalyzeSentiment(ctx context.Context, history []types.Message) string {
	if len(history) == 0 {
		return SentimentNeutral
	}
	window := history
	if len(window) > sentimentWindow {
		window = window[len(window)-sentimentWindow:]
	}

	resp, err := s.provider.Complete(ctx, []llm.Message{
		{Role: "user", Content: buildSentimentPrompt(window)},
	})
	if err != nil {
		slog.Warn("sentiment analysis failed", "error", err)
		return SentimentUnknown
	}

	return normalizeSentiment(resp.Content)
}

// normalizeSentiment maps free-form model output onto the closed label set.
func normalizeSentiment(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(label, "positive"):
		return SentimentPositive
	case strings.HasPrefix(label, "negative"):
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
