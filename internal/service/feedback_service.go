package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"recanalysis/internal/models"

	"go.uber.org/zap"
)

// FeedbackRepository is the persistence the feedback service needs.
type FeedbackRepository interface {
	Create(ctx context.Context, rec *models.FeedbackRecord) error
	ListAll(ctx context.Context) ([]*models.FeedbackRecord, error)
}

type FeedbackService struct {
	repo   FeedbackRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewFeedbackService(repo FeedbackRepository, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{repo: repo, now: time.Now, logger: logger}
}

// Record appends one correction. Failures come back as FeedbackWriteError.
func (s *FeedbackService) Record(ctx context.Context, formType models.FormType, ragContext string, original, corrected models.FieldSet) error {
	rec := &models.FeedbackRecord{
		Timestamp:         s.now().UTC(),
		FormType:          formType,
		RAGContext:        ragContext,
		OriginalResponse:  original,
		CorrectedResponse: corrected,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return &FeedbackWriteError{Err: err}
	}

	s.logger.Info("Feedback recorded", zap.String("form_type", string(formType)))
	return nil
}

func (s *FeedbackService) ExportAll(ctx context.Context) ([]*models.FeedbackRecord, error) {
	records, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return records, nil
}

type trainingExample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// WriteTrainingData writes one {"input", "output"} line per record, where
// output is the corrected field-set serialized as a JSON string. An empty
// store is a NotFoundError.
func (s *FeedbackService) WriteTrainingData(ctx context.Context, w io.Writer) (int, error) {
	records, err := s.ExportAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, &NotFoundError{Resource: "training data"}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		output, err := rec.CorrectedResponse.Canonical()
		if err != nil {
			return 0, fmt.Errorf("failed to encode feedback %d: %w", rec.ID, err)
		}
		if err := enc.Encode(trainingExample{Input: rec.RAGContext, Output: string(output)}); err != nil {
			return 0, fmt.Errorf("failed to write training data: %w", err)
		}
	}
	return len(records), nil
}

// FieldSetsEqual compares field-sets by their canonical JSON form, so nil and
// empty sets are equal and key order never matters.
func FieldSetsEqual(a, b models.FieldSet) (bool, error) {
	ca, err := a.Canonical()
	if err != nil {
		return false, err
	}
	cb, err := b.Canonical()
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}
