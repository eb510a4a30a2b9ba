package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrLoad marks a document that could not be read or parsed. Load failures
// are skippable: the pipeline logs them and continues with the remaining
// corpus.
var ErrLoad = errors.New("failed to load document")

// Document is one source file of the corpus. The ID is derived from the
// file path relative to the corpus root, so it stays stable across runs
// and machines.
type Document struct {
	ID     string
	Path   string
	Loader FileLoader
}

// FileLoader retrieves the plain-text content of a file. Implementations
// load from the local filesystem or extract text from binary formats.
type FileLoader interface {
	GetFileText(ctx context.Context, path string) ([]byte, error)
}

// Text returns the plain-text content of the document. Failures are
// wrapped in ErrLoad so callers can treat them as skippable.
func (d *Document) Text(ctx context.Context) ([]byte, error) {
	text, err := d.Loader.GetFileText(ctx, d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, d.Path, err)
	}
	return text, nil
}

// DiscoverPDFs walks the given directory and returns one Document per PDF
// file found, in stable path order. A missing or unreadable directory is
// an error; an empty directory is not.
func DiscoverPDFs(dir string, fl FileLoader) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", dir)
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		docs = append(docs, Document{
			ID:     docID(rel),
			Path:   path,
			Loader: fl,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus directory %s: %w", dir, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func docID(rel string) string {
	id := filepath.ToSlash(rel)
	id = strings.TrimSuffix(id, filepath.Ext(id))
	return id
}
