package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recanalysis/internal/models"

	"go.uber.org/zap"
)

// PolicySearcher retrieves the policy chunks most relevant to a query.
type PolicySearcher interface {
	Search(ctx context.Context, query string, k int) ([]models.PolicyChunk, error)
}

type ExtractionResult struct {
	Fields models.FieldSet
	// RAGContext is the exact prompt sent to the backend.
	RAGContext string
	Warnings   []string
}

// ExtractionPipeline runs one document through text extraction, policy
// retrieval, prompting, generation and output validation.
type ExtractionPipeline struct {
	extractor TextExtractor
	index     PolicySearcher
	backend   GenerationBackend
	prompts   *PromptBuilder
	validator *OutputValidator
	topK      int
	logger    *zap.Logger
}

func NewExtractionPipeline(
	extractor TextExtractor,
	index PolicySearcher,
	backend GenerationBackend,
	prompts *PromptBuilder,
	topK int,
	logger *zap.Logger,
) *ExtractionPipeline {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionPipeline{
		extractor: extractor,
		index:     index,
		backend:   backend,
		prompts:   prompts,
		validator: NewOutputValidator(),
		topK:      topK,
		logger:    logger,
	}
}

func (p *ExtractionPipeline) Run(ctx context.Context, formType models.FormType, document []byte) (*ExtractionResult, error) {
	started := time.Now()

	schema := FormFieldsForSchema(formType)
	if len(schema.Fields) == 0 {
		return nil, fmt.Errorf("no extraction schema for form type %q", formType)
	}

	text, err := p.extractor.ExtractText(ctx, document)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &EmptyDocumentError{}
	}

	chunks, err := p.index.Search(ctx, p.prompts.RetrievalQuery(text), p.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve policy context: %w", err)
	}

	prompt := p.prompts.Build(formType, text, chunks)

	raw, err := p.backend.Generate(ctx, prompt, schema)
	if err != nil {
		return nil, err
	}

	fields, warnings, err := p.validator.Validate(raw, schema)
	if err != nil {
		return nil, err
	}

	extractionDuration.WithLabelValues(string(formType)).Observe(time.Since(started).Seconds())
	p.logger.Info("Extraction completed",
		zap.String("form_type", string(formType)),
		zap.String("backend", p.backend.Name()),
		zap.Int("text_length", len(text)),
		zap.Int("policy_chunks", len(chunks)),
		zap.Int("warnings", len(warnings)),
		zap.Duration("took", time.Since(started)),
	)

	return &ExtractionResult{
		Fields:     fields,
		RAGContext: prompt,
		Warnings:   warnings,
	}, nil
}
