// Package testutil provides shared test helpers for setting up vaults, corpora and services.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/notesearch/internal/corpus"
	"github.com/starford/notesearch/internal/noteservice"
	"github.com/starford/notesearch/internal/storage"
)

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestCorpus creates a temporary SQLite corpus that is automatically closed.
func TestCorpus(t *testing.T) *corpus.DB {
	t.Helper()
	db, err := corpus.Open(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestService wires a vault, a corpus and a note service. Sessions are
// closed on cleanup.
func TestService(t *testing.T, opts ...noteservice.Option) (*noteservice.Service, storage.Provider) {
	t.Helper()
	_, store := TestVault(t)
	db := TestCorpus(t)
	opts = append([]noteservice.Option{noteservice.WithLogger(QuietLogger())}, opts...)
	svc := noteservice.NewService(store, db, opts...)
	t.Cleanup(svc.Close)
	return svc, store
}
