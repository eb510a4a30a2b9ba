package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeFileLoader struct {
	texts map[string]string
	err   error
}

func (f *fakeFileLoader) GetFileText(ctx context.Context, path string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	text, ok := f.texts[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(text), nil
}

func TestDiscoverPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.pdf", "notes.txt", "sub/c.PDF"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile() error: %v", err)
		}
	}

	docs, err := DiscoverPDFs(dir, &fakeFileLoader{})
	if err != nil {
		t.Fatalf("DiscoverPDFs() error: %v", err)
	}

	if len(docs) != 3 {
		t.Fatalf("expected 3 PDF documents, got %d", len(docs))
	}
	wantIDs := []string{"a", "b", "sub/c"}
	for i, want := range wantIDs {
		if docs[i].ID != want {
			t.Fatalf("docs[%d].ID = %q, want %q", i, docs[i].ID, want)
		}
	}
}

func TestDiscoverPDFsEmptyDirectory(t *testing.T) {
	docs, err := DiscoverPDFs(t.TempDir(), &fakeFileLoader{})
	if err != nil {
		t.Fatalf("DiscoverPDFs() on empty dir should not error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestDiscoverPDFsMissingDirectory(t *testing.T) {
	if _, err := DiscoverPDFs(filepath.Join(t.TempDir(), "nope"), &fakeFileLoader{}); err == nil {
		t.Fatal("DiscoverPDFs() on a missing directory should error")
	}
}

func TestDocumentTextWrapsLoadFailure(t *testing.T) {
	doc := Document{
		ID:     "broken",
		Path:   "/corpus/broken.pdf",
		Loader: &fakeFileLoader{err: errors.New("unreadable")},
	}

	_, err := doc.Text(context.Background())
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func TestDocumentText(t *testing.T) {
	doc := Document{
		ID:   "ok",
		Path: "/corpus/ok.pdf",
		Loader: &fakeFileLoader{
			texts: map[string]string{"/corpus/ok.pdf": "hello"},
		},
	}

	text, err := doc.Text(context.Background())
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if string(text) != "hello" {
		t.Fatalf("Text() = %q, want %q", text, "hello")
	}
}
