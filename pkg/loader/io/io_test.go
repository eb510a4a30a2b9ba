package io

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestGetFileText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	l := NewOSFileLoader()
	text, err := l.GetFileText(context.Background(), path)
	if err != nil {
		t.Fatalf("GetFileText() error: %v", err)
	}
	if string(text) != "content" {
		t.Fatalf("GetFileText() = %q, want %q", text, "content")
	}
}

func TestGetFileTextCaches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	l := NewOSFileLoader()
	if _, err := l.GetFileText(context.Background(), path); err != nil {
		t.Fatalf("GetFileText() error: %v", err)
	}

	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	text, err := l.GetFileText(context.Background(), path)
	if err != nil {
		t.Fatalf("GetFileText() error: %v", err)
	}
	if string(text) != "first" {
		t.Fatalf("expected cached content %q, got %q", "first", text)
	}
}

func TestGetFileTextMissing(t *testing.T) {
	l := NewOSFileLoader()
	if _, err := l.GetFileText(context.Background(), filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("GetFileText() on a missing file should error")
	}
}
