package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/opencare-labs/doseaudit/internal/domain"
)

// pdfPages extracts the text of each page of a PDF, in order.
func pdfPages(data []byte) ([]string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", domain.ErrIngestion, err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("%w: page count: %v", domain.ErrIngestion, err)
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", domain.ErrIngestion, i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("%w: extractor for page %d: %v", domain.ErrIngestion, i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("%w: extract page %d: %v", domain.ErrIngestion, i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}
