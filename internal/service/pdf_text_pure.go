//go:build !cgo

package service

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const pdfReaderName = "ledongthuc/pdf"

func (s *PDFTextService) readPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			s.logger.Warn("Failed to extract text from page",
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}
