//go:build cgo

package service

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

const pdfReaderName = "go-fitz"

func (s *PDFTextService) readPages(data []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			s.logger.Warn("Failed to extract text from page",
				zap.Int("page", i+1),
				zap.Error(err),
			)
			continue
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}
