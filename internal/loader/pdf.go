package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func relaxedConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// PDFPageCount validates the file in relaxed mode and returns its page count.
func PDFPageCount(path string) (int, error) {
	if err := api.ValidateFile(path, relaxedConfig()); err != nil {
		return 0, fmt.Errorf("failed to validate PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return pageCount, nil
}

// loadPDF returns the plain text of every page in page order. Strings are
// decoded through each font's encoding or ToUnicode map.
func (l *Loader) loadPDF(ctx context.Context, path string) (segments []string, err error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	// The reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			segments, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	numPages := reader.NumPage()
	segments = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			font := page.Font(name)
			fonts[name] = &font
		}
		text, textErr := page.GetPlainText(fonts)
		if textErr != nil {
			return nil, fmt.Errorf("failed to extract text of page %d: %w", i, textErr)
		}
		segments = append(segments, strings.TrimSpace(text))
	}

	if len(segments) == 0 {
		l.logger().Warn("PDF has no pages. Treating as empty document.", "path", path)
	}
	return segments, nil
}
