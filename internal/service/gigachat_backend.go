package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recanalysis/internal/models"
	"recanalysis/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

const gigaChatSystemInstruction = `Você é um assistente jurídico que responde exclusivamente com um objeto JSON válido, sem markdown, sem comentários antes ou depois do JSON.`

// GigaChatBackend generates through the GigaChat chat API. The model has no
// response schema support, so the schema is spelled out in the prompt and the
// JSON object is cut out of the reply.
type GigaChatBackend struct {
	client  *gigago.Client
	model   *gigago.GenerativeModel
	timeout time.Duration
	logger  *zap.Logger
}

func NewGigaChatBackend(cfg *config.GigaChatConfig, timeout time.Duration, logger *zap.Logger) (*GigaChatBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GIGACHAT_API_KEY is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(context.Background(), cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = gigaChatSystemInstruction
	model.Temperature = 0.1

	logger.Info("Using GigaChat generation backend", zap.String("model", cfg.Model))

	return &GigaChatBackend{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (b *GigaChatBackend) Name() string { return BackendGigaChat }

func (b *GigaChatBackend) Generate(ctx context.Context, prompt string, schema *models.ExtractionSchema) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	messages := []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt + "\n\n" + schemaInstructions(schema)},
	}

	resp, err := b.model.Generate(ctx, messages)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		kind := BackendErrorTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = BackendErrorTimeout
		}
		backendCalls.WithLabelValues(BackendGigaChat, string(kind)).Inc()
		return "", &BackendError{Backend: BackendGigaChat, Kind: kind, Err: err}
	}

	if len(resp.Choices) == 0 {
		backendCalls.WithLabelValues(BackendGigaChat, string(BackendErrorMalformed)).Inc()
		return "", &BackendError{Backend: BackendGigaChat, Kind: BackendErrorMalformed, Err: errors.New("no choices in response")}
	}

	content, err := extractJSONObject(resp.Choices[0].Message.Content)
	if err != nil {
		backendCalls.WithLabelValues(BackendGigaChat, string(BackendErrorMalformed)).Inc()
		return "", &BackendError{Backend: BackendGigaChat, Kind: BackendErrorMalformed, Err: err}
	}

	backendCalls.WithLabelValues(BackendGigaChat, "ok").Inc()
	return content, nil
}

func (b *GigaChatBackend) Close() error {
	if b.client != nil {
		b.client.Close()
	}
	return nil
}

// schemaInstructions renders the field list as prompt text for backends
// without native schema support.
func schemaInstructions(schema *models.ExtractionSchema) string {
	var sb strings.Builder
	sb.WriteString("Responda SOMENTE com um objeto JSON contendo exatamente as chaves abaixo, todas com valores do tipo string:\n")
	for _, f := range schema.Fields {
		sb.WriteString("- \"")
		sb.WriteString(f.Name)
		sb.WriteString("\"")
		if f.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(f.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// extractJSONObject cuts the outermost {...} out of a chat reply, which may be
// wrapped in markdown fences or surrounded by prose.
func extractJSONObject(content string) (string, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in response: %s", truncateRunes(content, 200))
	}
	return content[start : end+1], nil
}
