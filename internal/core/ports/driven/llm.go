package driven

import (
	"context"
	"fmt"
	"net/http"
)

// LLMService generates text from a prompt.
// The query orchestrator uses it for automatic domain selection and
// answer generation.
//
// Implementations may include:
//   - Hugging Face Inference API (hosted models by repo id)
//   - Ollama (local models)
//   - OpenAI or a compatible server
type LLMService interface {
	// Generate produces text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
// Zero values leave the provider default in place.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// TopP is the nucleus sampling probability mass.
	TopP float64

	// TopK limits sampling to the K most likely tokens.
	TopK int

	// RepetitionPenalty discourages repeated tokens (1.0 = none).
	RepetitionPenalty float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// StatusError is returned by HTTP-backed providers for non-2xx responses.
// Callers inspect StatusCode with errors.As to decide whether to retry.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: API returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the status is transient: 429 or a gateway error.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
