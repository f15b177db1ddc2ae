package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// extractPDF extracts text from every page, separating pages by a blank line
// so paragraph-aware chunking can cut at page boundaries. A page that fails
// to extract is logged and skipped; the document fails only when the PDF
// itself cannot be opened.
func (e *Extractor) extractPDF(content []byte, name string) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("page extraction failed",
					zap.String("file", name),
					zap.Int("page", i),
					zap.Error(err))
			}
			continue
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteString("\n\n")
		}
	}
	return buf.String(), nil
}
