package pdf

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ontoforge/ontoforge/pkg/loader"
)

// PDFFileLoader wraps a raw file loader and extracts plain text from PDF
// content. Extracted text is cached per path; concurrent extractions of
// the same file are collapsed into one.
type PDFFileLoader struct {
	loader loader.FileLoader

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewPDFFileLoader creates a PDF loader that extracts text from the
// content provided by the underlying file loader.
func NewPDFFileLoader(fl loader.FileLoader) *PDFFileLoader {
	return &PDFFileLoader{
		loader: fl,
		cache:  make(map[string][]byte),
	}
}

// GetFileText extracts the plain text of a PDF file.
func (l *PDFFileLoader) GetFileText(ctx context.Context, path string) ([]byte, error) {
	l.cacheMu.RLock()
	if cached, ok := l.cache[path]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(path, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[path]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		content, err := l.loader.GetFileText(ctx, path)
		if err != nil {
			return nil, err
		}

		text, err := extractText(ctx, content)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[path] = text
		l.cacheMu.Unlock()

		return text, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
