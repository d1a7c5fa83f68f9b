package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recanalysis/internal/models"
	"recanalysis/pkg/config"

	"go.uber.org/zap"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// GeminiBackend calls the generateContent REST endpoint with a response schema.
type GeminiBackend struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewGeminiBackend(cfg *config.LLMConfig, logger *zap.Logger) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiBackend{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

func (b *GeminiBackend) Name() string { return BackendGemini }

// Generate returns the text of the first candidate. Transport failures, 429 and
// 5xx answers are retried until maxRetries or the call deadline runs out.
func (b *GeminiBackend) Generate(ctx context.Context, prompt string, schema *models.ExtractionSchema) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   ResponseSchema(schema),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		text, err := b.call(ctx, body)
		if err == nil {
			backendCalls.WithLabelValues(BackendGemini, "ok").Inc()
			return text, nil
		}

		var backendErr *BackendError
		if !errors.As(err, &backendErr) {
			return "", err
		}
		backendCalls.WithLabelValues(BackendGemini, string(backendErr.Kind)).Inc()

		if !backendErr.retryable() || attempt >= b.maxRetries {
			return "", err
		}

		b.logger.Warn("Gemini attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_delay", b.retryDelay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return "", b.contextError(ctx.Err())
		case <-time.After(b.retryDelay):
		}
	}
}

func (b *GeminiBackend) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", b.baseURL, url.PathEscape(b.model))
}

func (b *GeminiBackend) call(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The key stays out of the URL so transport errors cannot echo it.
	req.Header.Set("x-goog-api-key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", b.contextError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", b.contextError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &BackendError{
			Backend:    BackendGemini,
			Kind:       BackendErrorStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncateRunes(strings.TrimSpace(string(raw)), 500)),
		}
	}

	var result geminiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", &BackendError{Backend: BackendGemini, Kind: BackendErrorMalformed, Err: err}
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", &BackendError{
			Backend: BackendGemini,
			Kind:    BackendErrorMalformed,
			Err:     fmt.Errorf("no candidates in response: %s", truncateRunes(string(raw), 500)),
		}
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// contextError classifies a failed round trip. Job cancellation passes through
// untouched so callers can tell it apart from backend failures.
func (b *GeminiBackend) contextError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &BackendError{Backend: BackendGemini, Kind: BackendErrorTimeout, Err: err}
	}
	return &BackendError{Backend: BackendGemini, Kind: BackendErrorTransport, Err: err}
}
