package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"sync"

	"recanalysis/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const pdfContentType = "application/pdf"

// Extractor runs the extraction pipeline for one document.
type Extractor interface {
	Run(ctx context.Context, formType models.FormType, document []byte) (*ExtractionResult, error)
}

// Renderer forwards finalized field-sets to the document rendering service.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (*RenderedDocuments, error)
}

type FeedbackStatus string

const (
	FeedbackRecorded  FeedbackStatus = "recorded"
	FeedbackUnchanged FeedbackStatus = "unchanged"
	FeedbackFailed    FeedbackStatus = "failed"
)

type FinalizeResult struct {
	Message  string
	DocxURL  string
	PdfURL   string
	Feedback FeedbackStatus
}

// GenerationCoordinator owns the job lifecycle: it accepts documents, runs
// extractions in the background and finalizes ready jobs into documents.
type GenerationCoordinator struct {
	jobs     *JobStore
	pipeline Extractor
	feedback *FeedbackService
	renderer Renderer
	sem      *semaphore.Weighted
	logger   *zap.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewGenerationCoordinator(
	jobs *JobStore,
	pipeline Extractor,
	feedback *FeedbackService,
	renderer Renderer,
	maxConcurrent int,
	logger *zap.Logger,
) *GenerationCoordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &GenerationCoordinator{
		jobs:     jobs,
		pipeline: pipeline,
		feedback: feedback,
		renderer: renderer,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		logger:   logger,
		baseCtx:  ctx,
		stop:     stop,
	}
}

// Submit validates the document and form type, creates a processing job and
// starts its extraction. It returns without waiting for the extraction.
func (c *GenerationCoordinator) Submit(ctx context.Context, formType, contentType string, document []byte) (uuid.UUID, error) {
	if mediaType, _, err := mime.ParseMediaType(contentType); err != nil || mediaType != pdfContentType {
		return uuid.Nil, &UnsupportedFormatError{ContentType: contentType}
	}
	if !IsPDF(document) {
		return uuid.Nil, &UnsupportedFormatError{ContentType: contentType}
	}
	ft, err := models.ParseFormType(formType)
	if err != nil {
		return uuid.Nil, &InvalidFormTypeError{FormType: formType}
	}

	job := c.jobs.Create(ft)
	jobCtx, cancel := context.WithCancel(c.baseCtx)
	c.jobs.AttachCancel(job.ID, cancel)
	jobsSubmitted.WithLabelValues(string(ft)).Inc()

	c.logger.Info("Analysis job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("form_type", string(ft)),
		zap.Int("document_size", len(document)),
	)

	c.wg.Add(1)
	go c.process(jobCtx, cancel, job, document)

	return job.ID, nil
}

func (c *GenerationCoordinator) process(ctx context.Context, cancel context.CancelFunc, job models.Job, document []byte) {
	defer c.wg.Done()
	defer cancel()

	log := c.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("form_type", string(job.FormType)),
	)

	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.fail(log, job.ID, models.JobErrorCancelled, err)
		return
	}
	defer c.sem.Release(1)

	jobsInFlight.Inc()
	defer jobsInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			c.fail(log, job.ID, models.JobErrorInternal, fmt.Errorf("extraction panicked: %v", r))
		}
	}()

	result, err := c.pipeline.Run(ctx, job.FormType, document)
	if err != nil {
		c.fail(log, job.ID, failureKind(err), err)
		return
	}

	if err := c.jobs.Complete(job.ID, result); err != nil {
		log.Warn("Discarding extraction result", zap.Error(err))
		return
	}
	jobsFinished.WithLabelValues(string(models.JobStatusReady), "").Inc()
	log.Info("Analysis job ready", zap.Int("warnings", len(result.Warnings)))
}

func (c *GenerationCoordinator) fail(log *zap.Logger, id uuid.UUID, kind models.JobErrorKind, cause error) {
	if err := c.jobs.Fail(id, kind, cause.Error()); err != nil {
		// already cancelled or evicted
		log.Debug("Job failure not recorded", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	jobsFinished.WithLabelValues(string(models.JobStatusFailed), string(kind)).Inc()
	log.Error("Analysis job failed", zap.String("kind", string(kind)), zap.Error(cause))
}

// failureKind classifies a pipeline error for the job record.
func failureKind(err error) models.JobErrorKind {
	var (
		empty     *EmptyDocumentError
		backend   *BackendError
		violation *SchemaViolationError
		index     *IndexBuildError
	)
	switch {
	case errors.As(err, &empty):
		return models.JobErrorEmptyDocument
	case errors.As(err, &backend):
		if backend.Kind == BackendErrorTimeout {
			return models.JobErrorTimeout
		}
		return models.JobErrorBackend
	case errors.As(err, &violation):
		return models.JobErrorSchemaViolation
	case errors.As(err, &index):
		return models.JobErrorIndex
	case errors.Is(err, context.Canceled):
		return models.JobErrorCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return models.JobErrorTimeout
	default:
		return models.JobErrorInternal
	}
}

func (c *GenerationCoordinator) Status(id uuid.UUID) (models.Job, error) {
	return c.jobs.Get(id)
}

// Cancel aborts a processing job. Cancelling a finished job is an error.
func (c *GenerationCoordinator) Cancel(id uuid.UUID) error {
	return c.jobs.Cancel(id)
}

// Finalize records the human edits as feedback when they differ from the
// original extraction and forwards the edited field-set for rendering. A nil
// original means the job's extracted data. Feedback failures never block
// rendering.
func (c *GenerationCoordinator) Finalize(ctx context.Context, id uuid.UUID, edited, original models.FieldSet) (*FinalizeResult, error) {
	job, err := c.jobs.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusReady {
		return nil, &JobNotReadyError{JobID: id.String(), Status: string(job.Status)}
	}
	if original == nil {
		original = job.Data
	}
	if edited == nil {
		edited = original
	}

	log := c.logger.With(
		zap.String("job_id", id.String()),
		zap.String("form_type", string(job.FormType)),
	)

	feedback := FeedbackUnchanged
	equal, err := FieldSetsEqual(edited, original)
	if err != nil || !equal {
		feedback = FeedbackRecorded
		if err := c.feedback.Record(ctx, job.FormType, job.RAGContext, original, edited); err != nil {
			feedback = FeedbackFailed
			log.Error("Failed to record feedback", zap.Error(err))
		}
	}
	feedbackWrites.WithLabelValues(string(feedback)).Inc()

	docs, err := c.renderer.Render(ctx, RenderRequest{FormType: job.FormType, FormData: edited})
	if err != nil {
		log.Error("Document rendering failed", zap.Error(err))
		return nil, err
	}

	log.Info("Documents generated", zap.String("feedback", string(feedback)))

	return &FinalizeResult{
		Message:  docs.Message,
		DocxURL:  docs.DocxURL,
		PdfURL:   docs.PdfURL,
		Feedback: feedback,
	}, nil
}

// TrainingData streams the feedback log as JSONL.
func (c *GenerationCoordinator) TrainingData(ctx context.Context, w io.Writer) (int, error) {
	return c.feedback.WriteTrainingData(ctx, w)
}

// Shutdown waits for running extractions until ctx is done, then cancels the rest.
func (c *GenerationCoordinator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.stop()
		return nil
	case <-ctx.Done():
		c.stop()
		<-done
		return ctx.Err()
	}
}
