// Package genai defines the interface for communicating with a
// generative-text service, the classification of its failures, and
// round-robin rotation over API credentials.
package genai

import "context"

// Request is the input to a Generator.Generate call.
type Request struct {
	// Prompt is the full assembled prompt text.
	Prompt string

	// Image is an optional binary attachment to analyze alongside the
	// prompt. MIMEType must be set when Image is non-empty.
	Image    []byte
	MIMEType string
}

// Response is the output of a successful Generator.Generate call.
type Response struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage tracks token consumption for a generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generator is the interface for a generative-text service. Concrete
// implementations live in separate packages (e.g. provider.gemini) and
// typically also implement core.Module for lifecycle management.
//
// Failed generations are classified via the sentinel errors in errors.go:
// a content-safety block wraps ErrFiltered, rate limits and 5xx responses
// wrap ErrRateLimit or ErrServiceDown, and anything non-parseable wraps
// ErrMalformed.
type Generator interface {
	// Generate sends a request and returns the generated text.
	Generate(ctx context.Context, req Request) (Response, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
