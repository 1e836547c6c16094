// Package pdfprep inspects raw uploads before analysis: page count and
// whether the file carries a usable text layer.
package pdfprep

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/casefile/internal/core/domain"
)

const defaultMinTextChars = 500

type Preparer struct {
	minTextChars int
}

func New(minTextChars int) *Preparer {
	if minTextChars <= 0 {
		minTextChars = defaultMinTextChars
	}
	return &Preparer{minTextChars: minTextChars}
}

// Prepare never fails. Non-PDF input, encrypted files and parser panics all
// yield an empty Prepared; the document then goes to the model as raw bytes.
func (p *Preparer) Prepare(_ context.Context, data []byte) (prepared domain.Prepared) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf_parse_panic", "panic", r)
			prepared = domain.Prepared{}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.Prepared{}
	}

	pageCount := reader.NumPage()
	var builder strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	text := strings.TrimSpace(builder.String())
	if len(text) < p.minTextChars {
		// Too little text means a scanned or image-only file; analysis
		// works from the raw bytes instead.
		return domain.Prepared{PageCount: pageCount}
	}
	return domain.Prepared{
		PageCount:       pageCount,
		Text:            text,
		TextExtractable: true,
	}
}
