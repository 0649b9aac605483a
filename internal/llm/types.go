// Package llm defines the completion service boundary and its Anthropic
// implementation. Providers are interchangeable behind this interface.
package llm

import (
	"context"
)

// RoleUser is the message role for caller-supplied prompts.
const RoleUser = "user"

// CompletionRequest is the input to a provider's Complete() call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Model        string // override provider default if set
}

// CompletionResponse is returned by Complete().
type CompletionResponse struct {
	Text         string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Provider is the completion service abstraction. The returned text is raw
// model output; callers are responsible for any structural parsing.
type Provider interface {
	// Complete sends a completion request and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelID returns the current model identifier string.
	ModelID() string
}
