package agent

import (
	"context"

	"caseflow/internal/domain"
)

// ToolSpec describes one callable tool exposed to a provider. InputSchema
// is a plain JSON Schema object, matching the shape each SDK expects after
// its own provider-specific translation.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request is everything a Provider needs to produce one completion. Built
// fresh per GetResponse call; Agent itself stays immutable across calls.
type Request struct {
	System    string
	Messages  []domain.Message
	Tools     []ToolSpec
	MaxTokens int
	Thinking  bool
}

// Response is a provider's completion, normalized to the same shape
// regardless of which SDK produced it.
type Response struct {
	Text         string
	ToolCalls    []domain.ToolCall
	TokensInput  int
	TokensOutput int
	Model        string
}

// Provider invokes one concrete LLM API. Implementations translate Request
// into their SDK's wire shape and normalize the reply back into Response.
type Provider interface {
	SupportsTools() bool
	Invoke(ctx context.Context, req Request) (*Response, error)
}
