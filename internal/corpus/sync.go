package corpus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/parser"
	"github.com/starford/notesearch/internal/storage"
)

// Change kinds passed to an EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called after a corpus change with the note ID.
type EventCallback func(kind, id string)

// Sync walks the vault and brings the corpus up to date: new or changed
// files are parsed and upserted, and notes without a file are removed.
func Sync(ctx context.Context, db Store, store storage.Provider, logger *slog.Logger) error {
	return reconcile(ctx, db, store, logger, nil)
}

func reconcile(ctx context.Context, db Store, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}
	states, err := db.States(ctx)
	if err != nil {
		return err
	}

	// A note present both live and in the trash is live.
	disk := make(map[string]models.NoteMetadata, len(metas))
	for _, m := range metas {
		id, trashed := models.IDFromPath(m.Path)
		if prev, ok := disk[id]; ok && trashed && !isTrash(prev.Path) {
			continue
		}
		disk[id] = m
	}

	var indexed, removed int
	for id, m := range disk {
		if s, ok := states[id]; ok && s.Path == m.Path && s.Checksum == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		n, err := parser.ParseNote(m.Path, data, storage.Checksum(data), m.UpdatedAt)
		if err != nil {
			logger.Warn("sync: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := db.Upsert(ctx, n); err != nil {
			return err
		}
		indexed++
		logger.Debug("sync: indexed", slog.String("id", id), slog.String("path", m.Path))
		if cb != nil {
			cb(kindFor(states, id), id)
		}
	}

	for id := range states {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := db.Delete(ctx, id); err != nil {
			return err
		}
		removed++
		logger.Debug("sync: removed stale", slog.String("id", id))
		if cb != nil {
			cb(KindDeleted, id)
		}
	}

	if indexed > 0 || removed > 0 {
		logger.Info("sync: corpus updated",
			slog.Int("indexed", indexed),
			slog.Int("removed", removed))
	}
	return nil
}

// indexFile parses one vault file and stores it. It reports the change kind,
// or "" when the stored note was already current or a live copy of the same
// note takes precedence over this trashed one.
func indexFile(ctx context.Context, db Store, store storage.Provider, path string, data []byte, modified time.Time) (string, string, error) {
	n, err := parser.ParseNote(path, data, storage.Checksum(data), modified)
	if err != nil {
		return "", "", err
	}

	kind := KindUpdated
	existing, err := db.Get(ctx, n.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		kind = KindCreated
	case err != nil:
		return "", n.ID, err
	case existing.Path == path && existing.Checksum == n.Checksum:
		return "", n.ID, nil
	case isTrash(path) && !isTrash(existing.Path):
		if live, _ := store.Exists(existing.Path); live {
			return "", n.ID, nil
		}
	}

	if err := db.Upsert(ctx, n); err != nil {
		return "", n.ID, err
	}
	return kind, n.ID, nil
}

func kindFor(states map[string]State, id string) string {
	if _, ok := states[id]; ok {
		return KindUpdated
	}
	return KindCreated
}

func isTrash(path string) bool {
	return strings.HasPrefix(path, models.TrashDir+"/")
}
