package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

var pdfMagic = []byte("%PDF-")

// TextExtractor pulls the plain text out of a document.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// PDFTextService extracts text from PDF files. The page reader is chosen at
// build time: MuPDF through go-fitz when cgo is available, a pure Go parser
// otherwise.
type PDFTextService struct {
	logger *zap.Logger
}

func NewPDFTextService(logger *zap.Logger) *PDFTextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFTextService{logger: logger}
}

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// ExtractText concatenates the text of every page. A PDF without a text layer
// yields an empty string and no error.
func (s *PDFTextService) ExtractText(ctx context.Context, data []byte) (string, error) {
	if !IsPDF(data) {
		return "", &UnsupportedFormatError{ContentType: "application/octet-stream"}
	}

	pages, err := s.readPages(data)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from PDF: %w", err)
	}

	var textBuilder strings.Builder
	for _, pageText := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if pageText != "" {
			textBuilder.WriteString(pageText)
			textBuilder.WriteString("\n")
		}
	}

	text := strings.TrimSpace(sanitizeUTF8(textBuilder.String()))

	s.logger.Debug("PDF text extracted",
		zap.String("method", pdfReaderName),
		zap.Int("pages", len(pages)),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}

// ExtractFile reads a PDF from disk.
func (s *PDFTextService) ExtractFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.ExtractText(ctx, data)
}

// sanitizeUTF8 drops invalid byte sequences left by broken PDF font maps so the
// text can be stored and sent as JSON.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
