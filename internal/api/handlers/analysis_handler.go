package handlers

import (
	"bytes"
	"context"
	"io"

	"recanalysis/internal/dto"
	"recanalysis/internal/models"
	"recanalysis/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnalysisService is the job lifecycle the HTTP surface drives.
type AnalysisService interface {
	Submit(ctx context.Context, formType, contentType string, document []byte) (uuid.UUID, error)
	Status(id uuid.UUID) (models.Job, error)
	Cancel(id uuid.UUID) error
	Finalize(ctx context.Context, id uuid.UUID, edited, original models.FieldSet) (*service.FinalizeResult, error)
	TrainingData(ctx context.Context, w io.Writer) (int, error)
}

type AnalysisHandler struct {
	analysis AnalysisService
	logger   *zap.Logger
}

func NewAnalysisHandler(analysis AnalysisService, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analysis: analysis,
		logger:   logger,
	}
}

// SubmitAnalysis godoc
// @Summary Submit a judicial decision for analysis
// @Description Upload a decision PDF and the target form type. Extraction runs in the background.
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Decision PDF"
// @Param form_type formData string true "Form type: dispensa, autodispensa or autorizacao"
// @Success 202 {object} dto.SubmitAnalysisResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /analysis [post]
func (h *AnalysisHandler) SubmitAnalysis(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "O ficheiro da decisão é obrigatório.",
		})
	}

	formType := c.FormValue("form_type")
	if formType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "O tipo de formulário é obrigatório.",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Falha ao abrir o ficheiro.",
		})
	}
	defer src.Close()

	document, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Falha ao ler o ficheiro.",
		})
	}

	// the job outlives the request
	jobID, err := h.analysis.Submit(context.Background(), formType, file.Header.Get(fiber.HeaderContentType), document)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.SubmitAnalysisResponse{JobID: jobID.String()})
}

// GetStatus godoc
// @Summary Get analysis job status
// @Description Returns the job status and, once ready, the extracted field-set
// @Tags analysis
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} dto.AnalysisStatusResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /analysis/{id}/status [get]
func (h *AnalysisHandler) GetStatus(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "ID de trabalho inválido."})
	}

	job, err := h.analysis.Status(jobID)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(statusResponse(job))
}

// CancelAnalysis godoc
// @Summary Cancel an analysis job
// @Tags analysis
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} dto.AnalysisStatusResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /analysis/{id} [delete]
func (h *AnalysisHandler) CancelAnalysis(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "ID de trabalho inválido."})
	}

	if err := h.analysis.Cancel(jobID); err != nil {
		if isNotFound(err) {
			return h.respondError(c, err)
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	job, err := h.analysis.Status(jobID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(statusResponse(job))
}

// GenerateDocument godoc
// @Summary Generate the final documents
// @Description Records the human corrections as feedback and renders DOCX and PDF documents
// @Tags generation
// @Accept json
// @Produce json
// @Param request body dto.GenerateDocumentRequest true "Edited field-set"
// @Success 200 {object} dto.GenerateDocumentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /generate [post]
func (h *AnalysisHandler) GenerateDocument(c *fiber.Ctx) error {
	var req dto.GenerateDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "Corpo do pedido inválido."})
	}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "ID de trabalho inválido."})
	}
	if req.FormData == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "form_data é obrigatório."})
	}

	var original models.FieldSet
	if req.OriginalData != nil {
		original = models.FieldSet(req.OriginalData)
	}

	result, err := h.analysis.Finalize(c.UserContext(), jobID, models.FieldSet(req.FormData), original)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(dto.GenerateDocumentResponse{
		Message:  result.Message,
		DocxURL:  result.DocxURL,
		PdfURL:   result.PdfURL,
		Feedback: string(result.Feedback),
	})
}

// ExportTrainingData godoc
// @Summary Download the fine-tuning dataset
// @Description JSONL with one {"input", "output"} example per feedback record
// @Tags training
// @Produce application/jsonl
// @Success 200 {file} file
// @Failure 404 {object} dto.ErrorResponse
// @Router /training-data [get]
func (h *AnalysisHandler) ExportTrainingData(c *fiber.Ctx) error {
	var buf bytes.Buffer
	n, err := h.analysis.TrainingData(c.UserContext(), &buf)
	if err != nil {
		if isNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "Nenhum dado de feedback encontrado para gerar o arquivo de treinamento.",
			})
		}
		return h.respondError(c, err)
	}

	h.logger.Info("Training data exported", zap.Int("examples", n))

	c.Attachment("training_data.jsonl")
	// Attachment guesses the type from the extension
	c.Set(fiber.HeaderContentType, "application/jsonl")
	return c.Send(buf.Bytes())
}

func statusResponse(job models.Job) dto.AnalysisStatusResponse {
	resp := dto.AnalysisStatusResponse{
		JobID:    job.ID.String(),
		Status:   string(job.Status),
		Warnings: job.Warnings,
	}
	switch job.Status {
	case models.JobStatusReady:
		resp.Data = make(map[string]any, len(job.Data))
		for k, v := range job.Data {
			resp.Data[k] = v
		}
	case models.JobStatusFailed:
		if job.Error != nil {
			resp.Data = map[string]any{
				"error": job.Error.Message,
				"kind":  string(job.Error.Kind),
			}
		}
	}
	return resp
}
