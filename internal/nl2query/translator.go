package nl2query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/schema"
)

type Request struct {
	Question string `json:"question"`
}

type Translation struct {
	Query     Query
	Raw       string
	Candidate string
	Prompt    string
	Notices   []Notice
	Model     string
	Duration  time.Duration
}

// Err returns an *ExtractionError when the translation produced no
// executable query.
func (t Translation) Err() error {
	if !IsNone(t.Query) {
		return nil
	}
	return &ExtractionError{Candidate: t.Candidate, Notices: t.Notices}
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Translation, error)
}

// Generator sends a prompt to the model server and returns the raw body.
type Generator interface {
	Generate(ctx context.Context, prompt string, variant schema.Variant) ([]byte, error)
	Model() string
}

type PromptTranslator struct {
	descriptor schema.Descriptor
	generator  Generator
	logger     *slog.Logger
}

func NewPromptTranslator(descriptor schema.Descriptor, generator Generator, logger *slog.Logger) (*PromptTranslator, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if descriptor.Text == "" {
		return nil, fmt.Errorf("schema descriptor is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PromptTranslator{descriptor: descriptor, generator: generator, logger: logger}, nil
}

func (t *PromptTranslator) Descriptor() schema.Descriptor {
	return t.descriptor
}

// Translate returns an error only when the prompt cannot be built or the
// model server cannot be reached; an unusable response is reported through
// Translation.Err.
func (t *PromptTranslator) Translate(ctx context.Context, req Request) (Translation, error) {
	prompt, err := Build(req.Question, t.descriptor)
	if err != nil {
		return Translation{}, err
	}

	start := time.Now()
	raw, err := t.generator.Generate(ctx, prompt, t.descriptor.Variant)
	if err != nil {
		return Translation{Prompt: prompt, Model: t.generator.Model()}, err
	}

	extraction := Extract(raw, t.descriptor.Variant)
	observability.ObserveExtraction(string(extraction.Query.Kind()), extraction.Coerced())
	t.logger.DebugContext(ctx, "question translated",
		slog.String("variant", string(t.descriptor.Variant)),
		slog.Int("prompt_bytes", len(prompt)),
		slog.Int("raw_bytes", len(raw)),
		slog.String("kind", string(extraction.Query.Kind())),
		slog.Int("notices", len(extraction.Notices)),
	)
	if extraction.Coerced() {
		t.logger.WarnContext(ctx, "model query coerced to find filter", slog.String("candidate", extraction.Candidate))
	}

	return Translation{
		Query:     extraction.Query,
		Raw:       string(raw),
		Candidate: extraction.Candidate,
		Prompt:    prompt,
		Notices:   extraction.Notices,
		Model:     t.generator.Model(),
		Duration:  time.Since(start),
	}, nil
}
