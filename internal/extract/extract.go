// Package extract turns staged PDF reports into normalized plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrUnreadable    = errors.New("document could not be parsed")
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// Extractor returns the text content of the document at path.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// PDFExtractor reads every page's plain text with ledongthuc/pdf.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger}
}

// Extract reads path and returns its normalized text. Pages are separated by a
// blank line.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	pages, err := readPages(ctx, path)
	if err != nil {
		return "", err
	}

	text := Normalize(pages...)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}
	e.logger.Debug("document extracted", "path", path, "pages", len(pages), "bytes", len(text))
	return text, nil
}

func readPages(ctx context.Context, path string) (pages []string, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %w", ErrUnreadable, path, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// Normalize trims trailing whitespace from every line, collapses runs of blank
// lines inside a page into one newline, and joins non-empty pages with a single
// blank line.
func Normalize(pages ...string) string {
	out := make([]string, 0, len(pages))
	for _, page := range pages {
		if p := normalizePage(page); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func normalizePage(page string) string {
	page = strings.ReplaceAll(page, "\r\n", "\n")
	lines := strings.Split(page, "\n")

	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r\f\v")
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
