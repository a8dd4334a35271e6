// Package noteservice coordinates the vault, the corpus and search sessions.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/corpus"
	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/parser"
	"github.com/starford/notesearch/internal/predicate"
	"github.com/starford/notesearch/internal/results"
	"github.com/starford/notesearch/internal/sse"
	"github.com/starford/notesearch/internal/storage"
)

// Publisher receives corpus and search session events.
type Publisher interface {
	PublishNoteEvent(kind, id string)
	PublishSearchEvent(res sse.SearchResult)
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID          string         `json:"id"`
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	SystemTags  []string       `json:"system_tags"`
	Deleted     bool           `json:"deleted"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ModifiedAt  time.Time      `json:"modified_at"`
}

// NoteListItem is a lightweight item in a list or search response.
type NoteListItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Tags       []string  `json:"tags"`
	SystemTags []string  `json:"system_tags"`
	Deleted    bool      `json:"deleted"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListItem converts a corpus note.
func ListItem(n models.Note) NoteListItem {
	return NoteListItem{
		ID:         n.ID,
		Title:      n.Title(),
		Tags:       nonNilSlice(n.TagList()),
		SystemTags: nonNilSlice(predicate.SplitSystemTags(n.SystemTags)),
		Deleted:    n.Deleted,
		ModifiedAt: n.ModifiedAt,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event sink for corpus and search events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithOrdering sets how listings and search results are sorted.
func WithOrdering(o results.Ordering) Option {
	return func(s *Service) { s.ordering = o }
}

// WithDefaultScope sets the scope used when a request names none.
func WithDefaultScope(sc Scope) Option {
	return func(s *Service) { s.scope = sc }
}

// WithFetchTimeout bounds the background fetches of search sessions.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) { s.fetchTimeout = d }
}

// Service coordinates storage, the corpus and search sessions.
type Service struct {
	store        storage.Provider
	db           corpus.Store
	publisher    Publisher
	logger       *slog.Logger
	ordering     results.Ordering
	scope        Scope
	fetchTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates a note service. db is wrapped with metrics.
func NewService(store storage.Provider, db corpus.Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       slog.Default(),
		ordering:     results.DefaultOrdering(),
		scope:        ScopeActive,
		fetchTimeout: 10 * time.Second,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.db = NewInstrumentedCorpus(db, s.logger)
	return s
}

// Corpus returns the instrumented corpus.
func (s *Service) Corpus() corpus.Store { return s.db }

// DefaultScope returns the scope applied when a request names none.
func (s *Service) DefaultScope() Scope { return s.scope }

// GetNote reads a note, live or trashed, from the vault.
func (s *Service) GetNote(ctx context.Context, id string) (*NoteDetail, error) {
	path, modified := id, time.Now()
	if n, err := s.db.Get(ctx, id); err == nil {
		path, modified = n.Path, n.ModifiedAt
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return buildNoteDetail(path, data, modified)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(ctx context.Context, id string, content []byte) (*NoteDetail, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if _, err := s.db.Get(ctx, id); err == nil {
		return nil, fmt.Errorf("noteservice: create %s: %w", id, apperr.ErrAlreadyExists)
	}
	if ok, err := s.store.Exists(id); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("noteservice: create %s: %w", id, apperr.ErrAlreadyExists)
	}
	if err := s.store.Write(id, content); err != nil {
		return nil, err
	}
	if err := s.reindex(ctx, id, content, corpus.KindCreated); err != nil {
		return nil, err
	}
	return buildNoteDetail(id, content, time.Now())
}

// UpdateNote replaces a live note. A non-empty ifMatch must equal the
// current checksum.
func (s *Service) UpdateNote(ctx context.Context, id string, content []byte, ifMatch string) (*NoteDetail, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	existing, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != storage.Checksum(existing) {
		return nil, fmt.Errorf("noteservice: update %s: %w", id, apperr.ErrConflict)
	}
	if err := s.store.Write(id, content); err != nil {
		return nil, err
	}
	if err := s.reindex(ctx, id, content, corpus.KindUpdated); err != nil {
		return nil, err
	}
	return buildNoteDetail(id, content, time.Now())
}

// TrashNote moves a live note into the trash, replacing an older trashed
// copy with the same ID.
func (s *Service) TrashNote(ctx context.Context, id string) error {
	return s.move(ctx, id, models.PathFor(id, false), models.PathFor(id, true), true)
}

// RestoreNote moves a trashed note back. It fails with ErrAlreadyExists when
// a live note has taken the ID in the meantime.
func (s *Service) RestoreNote(ctx context.Context, id string) error {
	return s.move(ctx, id, models.PathFor(id, true), models.PathFor(id, false), false)
}

func (s *Service) move(ctx context.Context, id, from, to string, replace bool) error {
	if err := validateID(id); err != nil {
		return err
	}
	if ok, err := s.store.Exists(from); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("noteservice: move %s: %w", id, apperr.ErrNotFound)
	}
	if replace {
		if ok, _ := s.store.Exists(to); ok {
			if err := s.store.Delete(to); err != nil {
				return err
			}
		}
	}
	if err := s.store.Move(from, to); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("noteservice: move %s: %w", id, apperr.ErrNotFound)
		case errors.Is(err, fs.ErrExist):
			return fmt.Errorf("noteservice: move %s: %w", id, apperr.ErrAlreadyExists)
		}
		return err
	}
	data, err := s.store.Read(to)
	if err != nil {
		return err
	}
	return s.reindex(ctx, to, data, corpus.KindUpdated)
}

// ListNotes returns the notes of scope in the configured order.
func (s *Service) ListNotes(ctx context.Context, scope Scope) ([]NoteListItem, error) {
	notes, err := s.db.Fetch(ctx, scope.Predicate())
	if err != nil {
		return nil, err
	}
	var out []NoteListItem
	for _, sec := range results.Group(notes, s.ordering) {
		out = append(out, lo.Map(sec.Notes, func(n models.Note, _ int) NoteListItem { return ListItem(n) })...)
	}
	return nonNilSlice(out), nil
}

// Tags returns the distinct tags of the live notes.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.db.Tags(ctx)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(tags), nil
}

// CorpusChanged publishes a corpus change and refreshes every open session.
// The watcher calls it for changes made outside the service.
func (s *Service) CorpusChanged(kind, id string) {
	if s.publisher != nil {
		s.publisher.PublishNoteEvent(kind, id)
	}
	s.ReloadSessions()
}

// reindex stores the note at path and announces the change.
func (s *Service) reindex(ctx context.Context, path string, data []byte, kind string) error {
	n, err := parser.ParseNote(path, data, storage.Checksum(data), time.Now())
	if err != nil {
		return err
	}
	if err := s.db.Upsert(ctx, n); err != nil {
		return err
	}
	s.logger.Debug("noteservice: indexed", slog.String("id", n.ID), slog.String("op", kind))
	s.CorpusChanged(kind, n.ID)
	return nil
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("noteservice: read %s: %w", path, apperr.ErrNotFound)
	}
	return data, err
}

func buildNoteDetail(path string, data []byte, modified time.Time) (*NoteDetail, error) {
	n, err := parser.ParseNote(path, data, storage.Checksum(data), modified)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		ID:          n.ID,
		Path:        path,
		Title:       n.Title(),
		Content:     string(data),
		Checksum:    n.Checksum,
		Tags:        nonNilSlice(res.Tags),
		SystemTags:  nonNilSlice(res.SystemTags),
		Deleted:     n.Deleted,
		Frontmatter: res.Frontmatter,
		CreatedAt:   n.CreatedAt,
		ModifiedAt:  n.ModifiedAt,
	}, nil
}

// validateID accepts vault-relative .md paths outside the trash.
func validateID(id string) error {
	switch {
	case !strings.HasSuffix(id, ".md"),
		strings.HasPrefix(id, "/"),
		strings.HasPrefix(id, models.TrashDir+"/"),
		strings.Contains("/"+id+"/", "/../"):
		return fmt.Errorf("noteservice: %q: %w", id, apperr.ErrInvalidPath)
	}
	return nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
