package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/pgsyncd/pkg/types"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestLoadDefaultsIndexToDatabase(t *testing.T) {
	path := writeTemp(t, "sync.json", `{"database":"book_store","nodes":{"table":"book","primary_keys":["id"]}}`)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Index != "book_store" {
		t.Fatalf("expected index to default to database, got %q", doc.Index)
	}
}

func TestLoadRejectsMissingDatabase(t *testing.T) {
	path := writeTemp(t, "sync.json", `{"nodes":{"table":"book","primary_keys":["id"]}}`)
	_, err := Load(path)
	if !errors.Is(err, types.ErrSchemaValidation) {
		t.Fatalf("expected ErrSchemaValidation, got %v", err)
	}
}

func TestLoadRejectsMissingNodes(t *testing.T) {
	path := writeTemp(t, "sync.json", `{"database":"book_store"}`)
	_, err := Load(path)
	if !errors.Is(err, types.ErrSchemaValidation) {
		t.Fatalf("expected ErrSchemaValidation, got %v", err)
	}
}

func TestDocumentBuildTree(t *testing.T) {
	path := writeTemp(t, "sync.json", `{"database":"book_store","nodes":{"table":"book","primary_keys":["id"]}}`)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, err := doc.BuildTree()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Root().Table != "book" {
		t.Fatalf("expected root table book, got %q", tr.Root().Table)
	}
}

func TestDocumentSyncName(t *testing.T) {
	path := writeTemp(t, "sync.json", `{"database":"Book_Store","index":"books","nodes":{"table":"book","primary_keys":["id"]}}`)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := doc.SyncName(); got != "book_store_books" {
		t.Fatalf("unexpected sync name: %q", got)
	}
}
