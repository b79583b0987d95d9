package port

import "context"

// LLM represents an external text generation capability.
type LLM interface {
	// Generate produces text for the prompt. Failures surface as
	// *domain.ExternalServiceError once retries are exhausted.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the generation model.
	ModelName() string
}
