package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recanalysis/internal/models"
	"recanalysis/pkg/config"

	"go.uber.org/zap"
)

const renderPath = "/api/v1/generate-document"

type RenderRequest struct {
	FormType models.FormType `json:"form_type"`
	FormData models.FieldSet `json:"form_data"`
}

type RenderedDocuments struct {
	Message string
	DocxURL string
	PdfURL  string
}

type renderResponse struct {
	Message      string `json:"message"`
	DocxFilename string `json:"docx_filename"`
	PdfFilename  string `json:"pdf_filename"`
}

// RendererClient talks to the document rendering service. Calls are never
// retried: a retry after a timeout could render the same document twice.
type RendererClient struct {
	httpClient  *http.Client
	baseURL     string
	downloadURL string
	logger      *zap.Logger
}

func NewRendererClient(cfg *config.RendererConfig, logger *zap.Logger) *RendererClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &RendererClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		downloadURL: strings.TrimRight(cfg.PublicDownloadURL, "/"),
		logger:      logger,
	}
}

func (c *RendererClient) Render(ctx context.Context, req RenderRequest) (*RenderedDocuments, error) {
	docs, err := c.render(ctx, req)
	if err != nil {
		renderRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	renderRequests.WithLabelValues("ok").Inc()
	return docs, nil
}

func (c *RendererClient) render(ctx context.Context, req RenderRequest) (*RenderedDocuments, error) {
	if req.FormData == nil {
		req.FormData = models.FieldSet{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &RenderingError{StatusCode: http.StatusInternalServerError, Detail: "failed to encode render request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+renderPath, bytes.NewReader(body))
	if err != nil {
		return nil, &RenderingError{StatusCode: http.StatusInternalServerError, Detail: "failed to create render request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Rendering service unreachable", zap.String("url", c.baseURL), zap.Error(err))
		return nil, &RenderingError{StatusCode: http.StatusServiceUnavailable, Detail: "rendering service unavailable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RenderingError{StatusCode: http.StatusServiceUnavailable, Detail: "failed to read rendering response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status := http.StatusInternalServerError
		if resp.StatusCode == http.StatusBadRequest {
			status = http.StatusBadRequest
		}
		return nil, &RenderingError{StatusCode: status, Detail: collaboratorDetail(raw, resp.StatusCode)}
	}

	var result renderResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &RenderingError{StatusCode: http.StatusInternalServerError, Detail: "malformed rendering response", Err: err}
	}
	if result.DocxFilename == "" || result.PdfFilename == "" {
		return nil, &RenderingError{StatusCode: http.StatusInternalServerError, Detail: "rendering response is missing file names"}
	}

	return &RenderedDocuments{
		Message: result.Message,
		DocxURL: c.DownloadURL(result.DocxFilename),
		PdfURL:  c.DownloadURL(result.PdfFilename),
	}, nil
}

// DownloadURL is the public reference for a rendered file name.
func (c *RendererClient) DownloadURL(filename string) string {
	return c.downloadURL + "/" + url.PathEscape(filename)
}

// collaboratorDetail extracts the "detail" message of an error response.
func collaboratorDetail(raw []byte, status int) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(body.Detail)
		return string(b)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return fmt.Sprintf("rendering service returned status %d", status)
	}
	return truncateRunes(text, 300)
}
