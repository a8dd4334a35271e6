package corpus

import (
	"context"

	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/predicate"
)

// State is what Sync needs to know about a stored note to decide whether
// the vault copy changed.
type State struct {
	Path     string
	Checksum string
}

// Store is the corpus as seen by its consumers. Depend on it rather than
// on *DB so tests and instrumentation can wrap it.
type Store interface {
	Upsert(ctx context.Context, n models.Note) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (models.Note, error)
	States(ctx context.Context) (map[string]State, error)
	Fetch(ctx context.Context, p predicate.Predicate) ([]models.Note, error)
	Tags(ctx context.Context) ([]string, error)
}

var _ Store = (*DB)(nil)
