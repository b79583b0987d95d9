package llm

import (
	"context"

	"qwery/internal/domain"
)

// MockClient returns a canned response, or a generation failure when Err
// is set. Used in tests.
type MockClient struct {
	Response string
	Err      error

	// LastPrompt records the most recent prompt for assertions.
	LastPrompt string
}

func (c *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.LastPrompt = prompt
	if c.Err != nil {
		return "", &domain.ExternalServiceError{Service: "generation", Err: c.Err}
	}
	return c.Response, nil
}

func (c *MockClient) ModelName() string {
	return "mock"
}
