package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"

	"qwery/internal/domain"
	"qwery/internal/port"
)

//go:embed templates/answer_prompt.txt
var promptTemplates embed.FS

// Composer assembles retrieved context into a grounded prompt and
// delegates generation to an external language model. The answer carries
// the ids and scores of the documents used, so callers can audit which
// sources informed it.
type Composer struct {
	llm             port.LLM
	maxContextItems int
	tmpl            *template.Template
}

func NewComposer(llm port.LLM, maxContextItems int) (*Composer, error) {
	if maxContextItems <= 0 {
		maxContextItems = 5
	}

	tmpl, err := template.ParseFS(promptTemplates, "templates/answer_prompt.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse answer template: %w", err)
	}

	return &Composer{
		llm:             llm,
		maxContextItems: maxContextItems,
		tmpl:            tmpl,
	}, nil
}

type promptItem struct {
	Ref     int
	Source  string
	Score   float64
	Content string
}

type promptData struct {
	Query string
	Items []promptItem
}

// Compose builds a prompt from the top maxContextItems results and asks
// the generation model for an answer. A generation failure surfaces as an
// error; the retrieved context is never returned in place of an answer.
func (c *Composer) Compose(ctx context.Context, query string, results domain.RetrievalResult, maxContextItems int) (domain.Answer, error) {
	query = Normalize(query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	if maxContextItems <= 0 {
		maxContextItems = c.maxContextItems
	}
	if maxContextItems > len(results) {
		maxContextItems = len(results)
	}
	used := results[:maxContextItems]

	data := promptData{Query: query}
	for i, r := range used {
		data.Items = append(data.Items, promptItem{
			Ref:     i + 1,
			Source:  sourceLabel(r.Document),
			Score:   r.Score,
			Content: r.Document.Content,
		})
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return domain.Answer{}, fmt.Errorf("failed to render prompt: %w", err)
	}

	text, err := c.llm.Generate(ctx, buf.String())
	if err != nil {
		return domain.Answer{}, err
	}

	answer := domain.Answer{Text: text}
	for _, r := range used {
		answer.Sources = append(answer.Sources, domain.Source{ID: r.Document.ID, Score: r.Score})
	}
	return answer, nil
}

// sourceLabel picks a human-readable provenance tag from row metadata.
func sourceLabel(doc domain.Document) string {
	for _, key := range []string{"source", "filename", "filepath"} {
		if v, ok := doc.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return fmt.Sprintf("document %d", doc.ID)
}
