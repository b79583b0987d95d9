package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"qwery/internal/adapter/llm"
	"qwery/internal/domain"
)

func results() domain.RetrievalResult {
	return domain.RetrievalResult{
		{
			Document: domain.Document{ID: 7, Content: "Go was released in 2009.", Metadata: map[string]any{"source": "go-history.txt"}},
			Score:    0.91,
		},
		{
			Document: domain.Document{ID: 3, Content: "Gophers are rodents.", Metadata: map[string]any{"source": "animals.txt"}},
			Score:    0.42,
		},
	}
}

func TestComposeBuildsGroundedPrompt(t *testing.T) {
	mock := &llm.MockClient{Response: "Go was released in 2009."}
	composer, err := NewComposer(mock, 5)
	if err != nil {
		t.Fatal(err)
	}

	answer, err := composer.Compose(context.Background(), "When was Go released?", results(), 0)
	if err != nil {
		t.Fatal(err)
	}

	if answer.Text != "Go was released in 2009." {
		t.Errorf("answer text = %q", answer.Text)
	}
	for _, want := range []string{"When was Go released?", "Go was released in 2009.", "go-history.txt", "animals.txt"} {
		if !strings.Contains(mock.LastPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, mock.LastPrompt)
		}
	}
}

func TestComposeProvenance(t *testing.T) {
	mock := &llm.MockClient{Response: "answer"}
	composer, err := NewComposer(mock, 5)
	if err != nil {
		t.Fatal(err)
	}

	answer, err := composer.Compose(context.Background(), "question", results(), 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(answer.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(answer.Sources))
	}
	if answer.Sources[0].ID != 7 || answer.Sources[0].Score != 0.91 {
		t.Errorf("first source = %+v", answer.Sources[0])
	}
	if answer.Sources[1].ID != 3 {
		t.Errorf("second source = %+v", answer.Sources[1])
	}
}

func TestComposeBoundsContextItems(t *testing.T) {
	mock := &llm.MockClient{Response: "answer"}
	composer, err := NewComposer(mock, 5)
	if err != nil {
		t.Fatal(err)
	}

	answer, err := composer.Compose(context.Background(), "question", results(), 1)
	if err != nil {
		t.Fatal(err)
	}

	if len(answer.Sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(answer.Sources))
	}
	if strings.Contains(mock.LastPrompt, "Gophers are rodents.") {
		t.Error("prompt includes context beyond max_context_items")
	}
}

func TestComposeGenerationFailure(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("model unreachable")}
	composer, err := NewComposer(mock, 5)
	if err != nil {
		t.Fatal(err)
	}

	_, err = composer.Compose(context.Background(), "question", results(), 0)
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
	if extErr.Service != "generation" {
		t.Errorf("Service = %q, want generation", extErr.Service)
	}
}

func TestComposeEmptyResults(t *testing.T) {
	mock := &llm.MockClient{Response: "I do not know."}
	composer, err := NewComposer(mock, 5)
	if err != nil {
		t.Fatal(err)
	}

	answer, err := composer.Compose(context.Background(), "question", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(answer.Sources))
	}
	if !strings.Contains(mock.LastPrompt, "no relevant context") {
		t.Errorf("prompt should state that no context was found:\n%s", mock.LastPrompt)
	}
}

func TestComposeEmptyQuery(t *testing.T) {
	composer, err := NewComposer(&llm.MockClient{}, 5)
	if err != nil {
		t.Fatal(err)
	}

	_, err = composer.Compose(context.Background(), "  ", results(), 0)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
