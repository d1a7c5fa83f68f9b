package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"recanalysis/internal/models"
	"recanalysis/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var samplePDF = []byte("%PDF-1.7\n...")

type fakeRenderer struct {
	mu       sync.Mutex
	requests []RenderRequest
	err      error
}

func (f *fakeRenderer) Render(ctx context.Context, req RenderRequest) (*RenderedDocuments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, RenderRequest{FormType: req.FormType, FormData: req.FormData.Clone()})
	if f.err != nil {
		return nil, f.err
	}
	return &RenderedDocuments{
		Message: "Documentos gerados com sucesso!",
		DocxURL: "http://127.0.0.1:8001/download/x.docx",
		PdfURL:  "http://127.0.0.1:8001/download/x.pdf",
	}, nil
}

type coordinatorFixture struct {
	coordinator *GenerationCoordinator
	jobs        *JobStore
	backend     *fakeBackend
	index       *fakeIndex
	renderer    *fakeRenderer
	repo        *repository.FeedbackRepository
}

func newCoordinatorFixture(t *testing.T, text string, backend *fakeBackend, maxConcurrent int) *coordinatorFixture {
	t.Helper()

	index := &fakeIndex{chunks: []models.PolicyChunk{{Index: 0, Text: "Política Recursal 13.4"}}}
	pipeline := NewExtractionPipeline(&fakeExtractor{text: text}, index, backend, NewPromptBuilder(0, 0), 3, zap.NewNop())
	repo := newTestFeedbackRepo(t)
	renderer := &fakeRenderer{}
	jobs := NewJobStore(time.Hour, zap.NewNop())

	c := NewGenerationCoordinator(jobs, pipeline, NewFeedbackService(repo, zap.NewNop()), renderer, maxConcurrent, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})

	return &coordinatorFixture{
		coordinator: c,
		jobs:        jobs,
		backend:     backend,
		index:       index,
		renderer:    renderer,
		repo:        repo,
	}
}

func (f *coordinatorFixture) waitTerminal(t *testing.T, id uuid.UUID) models.Job {
	t.Helper()
	var job models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = f.coordinator.Status(id)
		return err == nil && job.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func (f *coordinatorFixture) feedbackCount(t *testing.T) int {
	t.Helper()
	n, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	return n
}

const smallClaimsDecision = "JUIZADO ESPECIAL CÍVEL. Sentença que condena o Banco ao pagamento de R$ 3.000,00 a título de danos morais."

func TestGenerationCoordinator_DispensaRoundTrip(t *testing.T) {
	backend := &fakeBackend{
		respond: jsonResponder(map[string]any{
			FieldFundamentacaoDispensa: "Condenação de R$ 3.000,00 em Juizado Especial; custo do recurso supera o benefício.",
			"valor_condenacao":         "R$ 3.000,00",
		}),
		block: make(chan struct{}),
	}
	f := newCoordinatorFixture(t, smallClaimsDecision, backend, 2)
	ctx := context.Background()

	id, err := f.coordinator.Submit(ctx, "dispensa", "application/pdf", samplePDF)
	require.NoError(t, err)

	job, err := f.coordinator.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Nil(t, job.Data)

	close(backend.block)
	job = f.waitTerminal(t, id)
	require.Equal(t, models.JobStatusReady, job.Status)
	assert.NotEmpty(t, job.Data[FieldFundamentacaoDispensa])
	assert.NotContains(t, job.Data, FieldFundamentacaoAutorizacao)
	assert.Equal(t, backend.lastPrompt(), job.RAGContext)
	assert.Contains(t, job.RAGContext, "R$ 3.000,00")

	// repeated status calls return identical data
	again, err := f.coordinator.Status(id)
	require.NoError(t, err)
	assert.Equal(t, job, again)

	res, err := f.coordinator.Finalize(ctx, id, job.Data.Clone(), job.Data.Clone())
	require.NoError(t, err)
	assert.Equal(t, FeedbackUnchanged, res.Feedback)
	assert.Equal(t, "http://127.0.0.1:8001/download/x.pdf", res.PdfURL)
	assert.Zero(t, f.feedbackCount(t))

	require.Len(t, f.renderer.requests, 1)
	assert.Equal(t, models.FormTypeDispensa, f.renderer.requests[0].FormType)
	assert.Equal(t, job.Data, f.renderer.requests[0].FormData)
}

func TestGenerationCoordinator_FinalizeWithEdits(t *testing.T) {
	f := newCoordinatorFixture(t, smallClaimsDecision, &fakeBackend{respond: jsonResponder(nil)}, 2)
	ctx := context.Background()

	id, err := f.coordinator.Submit(ctx, "autorizacao", "application/pdf; charset=binary", samplePDF)
	require.NoError(t, err)
	job := f.waitTerminal(t, id)
	require.Equal(t, models.JobStatusReady, job.Status)

	edited := job.Data.Clone()
	edited["npj"] = "2024/0042"

	before := time.Now().Add(-time.Second)
	res, err := f.coordinator.Finalize(ctx, id, edited, job.Data)
	require.NoError(t, err)
	assert.Equal(t, FeedbackRecorded, res.Feedback)

	records, err := f.repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.FormTypeAutorizacao, records[0].FormType)
	assert.Equal(t, job.RAGContext, records[0].RAGContext)
	assert.Equal(t, edited, records[0].CorrectedResponse)
	assert.Equal(t, job.Data, records[0].OriginalResponse)
	assert.True(t, records[0].Timestamp.After(before))

	// a nil original falls back to the extracted data
	res, err = f.coordinator.Finalize(ctx, id, edited, nil)
	require.NoError(t, err)
	assert.Equal(t, FeedbackRecorded, res.Feedback)
	assert.Equal(t, 2, f.feedbackCount(t))

	var buf bytes.Buffer
	n, err := f.coordinator.TrainingData(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGenerationCoordinator_FeedbackFailureDoesNotBlockRendering(t *testing.T) {
	f := newCoordinatorFixture(t, smallClaimsDecision, &fakeBackend{respond: jsonResponder(nil)}, 1)
	f.coordinator.feedback = NewFeedbackService(failingFeedbackRepo{}, zap.NewNop())

	id, err := f.coordinator.Submit(context.Background(), "dispensa", "application/pdf", samplePDF)
	require.NoError(t, err)
	job := f.waitTerminal(t, id)

	edited := job.Data.Clone()
	edited["npj"] = "changed"
	res, err := f.coordinator.Finalize(context.Background(), id, edited, job.Data)
	require.NoError(t, err)
	assert.Equal(t, FeedbackFailed, res.Feedback)
	assert.Len(t, f.renderer.requests, 1)
}

func TestGenerationCoordinator_RenderingErrorSurfaces(t *testing.T) {
	f := newCoordinatorFixture(t, smallClaimsDecision, &fakeBackend{respond: jsonResponder(nil)}, 1)
	f.renderer.err = &RenderingError{StatusCode: 503, Detail: "rendering service unavailable"}

	id, err := f.coordinator.Submit(context.Background(), "dispensa", "application/pdf", samplePDF)
	require.NoError(t, err)
	job := f.waitTerminal(t, id)

	_, err = f.coordinator.Finalize(context.Background(), id, job.Data, job.Data)
	var renderErr *RenderingError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, 503, renderErr.StatusCode)
}

func TestGenerationCoordinator_SubmitValidation(t *testing.T) {
	f := newCoordinatorFixture(t, smallClaimsDecision, &fakeBackend{respond: jsonResponder(nil)}, 1)

	tests := []struct {
		name        string
		formType    string
		contentType string
		document    []byte
		target      any
	}{
		{"image upload", "dispensa", "image/png", samplePDF, new(*UnsupportedFormatError)},
		{"declared pdf without header", "dispensa", "application/pdf", []byte("GIF89a"), new(*UnsupportedFormatError)},
		{"empty body", "dispensa", "application/pdf", nil, new(*UnsupportedFormatError)},
		{"unknown form type", "recurso", "application/pdf", samplePDF, new(*InvalidFormTypeError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.coordinator.Submit(context.Background(), tt.formType, tt.contentType, tt.document)
			assert.ErrorAs(t, err, tt.target)
		})
	}

	assert.Zero(t, f.jobs.Len())
	assert.Zero(t, f.backend.calls())
}

func TestGenerationCoordinator_PipelineFailures(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		backend *fakeBackend
		kind    models.JobErrorKind
	}{
		{
			name:    "empty document",
			text:    "   ",
			backend: &fakeBackend{respond: jsonResponder(nil)},
			kind:    models.JobErrorEmptyDocument,
		},
		{
			name: "backend timeout",
			text: smallClaimsDecision,
			backend: &fakeBackend{respond: func(*models.ExtractionSchema) (string, error) {
				return "", &BackendError{Backend: "fake", Kind: BackendErrorTimeout, Err: context.DeadlineExceeded}
			}},
			kind: models.JobErrorTimeout,
		},
		{
			name: "backend status",
			text: smallClaimsDecision,
			backend: &fakeBackend{respond: func(*models.ExtractionSchema) (string, error) {
				return "", &BackendError{Backend: "fake", Kind: BackendErrorStatus, StatusCode: 500, Err: errors.New("internal")}
			}},
			kind: models.JobErrorBackend,
		},
		{
			name: "malformed output",
			text: smallClaimsDecision,
			backend: &fakeBackend{respond: func(*models.ExtractionSchema) (string, error) {
				return "Desculpe, não consigo ajudar.", nil
			}},
			kind: models.JobErrorSchemaViolation,
		},
		{
			name: "panic",
			text: smallClaimsDecision,
			backend: &fakeBackend{respond: func(*models.ExtractionSchema) (string, error) {
				panic("boom")
			}},
			kind: models.JobErrorInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCoordinatorFixture(t, tt.text, tt.backend, 1)

			id, err := f.coordinator.Submit(context.Background(), "dispensa", "application/pdf", samplePDF)
			require.NoError(t, err)

			job := f.waitTerminal(t, id)
			assert.Equal(t, models.JobStatusFailed, job.Status)
			require.NotNil(t, job.Error)
			assert.Equal(t, tt.kind, job.Error.Kind)
			assert.NotEmpty(t, job.Error.Message)
			assert.Nil(t, job.Data)

			_, err = f.coordinator.Finalize(context.Background(), id, models.FieldSet{}, nil)
			var notReady *JobNotReadyError
			assert.ErrorAs(t, err, &notReady)
		})
	}
}

func TestGenerationCoordinator_NotReadyAndCancel(t *testing.T) {
	backend := &fakeBackend{respond: jsonResponder(nil), block: make(chan struct{})}
	f := newCoordinatorFixture(t, smallClaimsDecision, backend, 1)
	ctx := context.Background()

	id, err := f.coordinator.Submit(ctx, "autodispensa", "application/pdf", samplePDF)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return backend.calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err = f.coordinator.Finalize(ctx, id, models.FieldSet{"npj": "x"}, nil)
	var notReady *JobNotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, string(models.JobStatusProcessing), notReady.Status)
	assert.Empty(t, f.renderer.requests)

	require.NoError(t, f.coordinator.Cancel(id))
	job := f.waitTerminal(t, id)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.JobErrorCancelled, job.Error.Kind)

	assert.Error(t, f.coordinator.Cancel(id))

	_, err = f.coordinator.Status(uuid.New())
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGenerationCoordinator_BoundsConcurrentExtractions(t *testing.T) {
	backend := &fakeBackend{respond: jsonResponder(nil), block: make(chan struct{})}
	f := newCoordinatorFixture(t, smallClaimsDecision, backend, 1)

	first, err := f.coordinator.Submit(context.Background(), "dispensa", "application/pdf", samplePDF)
	require.NoError(t, err)
	second, err := f.coordinator.Submit(context.Background(), "dispensa", "application/pdf", samplePDF)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return backend.calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, backend.calls())

	close(backend.block)
	assert.Equal(t, models.JobStatusReady, f.waitTerminal(t, first).Status)
	assert.Equal(t, models.JobStatusReady, f.waitTerminal(t, second).Status)
	assert.Equal(t, 2, backend.calls())
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, models.JobErrorCancelled, failureKind(context.Canceled))
	assert.Equal(t, models.JobErrorTimeout, failureKind(context.DeadlineExceeded))
	assert.Equal(t, models.JobErrorIndex, failureKind(&IndexBuildError{Stage: "embed", Err: errors.New("x")}))
	assert.Equal(t, models.JobErrorInternal, failureKind(errors.New("x")))
}
