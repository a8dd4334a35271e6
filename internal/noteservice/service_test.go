package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/corpus"
	"github.com/starford/notesearch/internal/sse"
	"github.com/starford/notesearch/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	notes  []string
	search []sse.SearchResult
}

func (p *recordingPublisher) PublishNoteEvent(kind, id string) {
	p.mu.Lock()
	p.notes = append(p.notes, kind+":"+id)
	p.mu.Unlock()
}

func (p *recordingPublisher) PublishSearchEvent(res sse.SearchResult) {
	p.mu.Lock()
	p.search = append(p.search, res)
	p.mu.Unlock()
}

func (p *recordingPublisher) searchEvents() []sse.SearchResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sse.SearchResult(nil), p.search...)
}

type env struct {
	svc   *Service
	store *storage.FS
	db    *corpus.DB
	pub   *recordingPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	vault := filepath.Join(dir, "vault")
	if err := os.MkdirAll(vault, 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(vault)
	if err != nil {
		t.Fatal(err)
	}
	db, err := corpus.Open(filepath.Join(dir, "corpus.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	pub := &recordingPublisher{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewService(store, db, WithPublisher(pub), WithLogger(logger))
	t.Cleanup(svc.Close)
	return &env{svc: svc, store: store, db: db, pub: pub}
}

func (e *env) create(t *testing.T, id, content string) {
	t.Helper()
	if _, err := e.svc.CreateNote(context.Background(), id, []byte(content)); err != nil {
		t.Fatalf("CreateNote %s: %v", id, err)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestCreateGetUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d, err := e.svc.CreateNote(ctx, "list.md", []byte("---\ntags: [shopping]\n---\nBuy milk"))
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != "list.md" || len(d.Tags) != 1 || d.Tags[0] != "shopping" || d.Title != "Buy milk" {
		t.Errorf("detail = %+v", d)
	}

	if _, err := e.svc.CreateNote(ctx, "list.md", []byte("again")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v", err)
	}

	if _, err := e.svc.UpdateNote(ctx, "list.md", []byte("x"), "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update err = %v", err)
	}
	d, err = e.svc.UpdateNote(ctx, "list.md", []byte("Buy eggs"), d.Checksum)
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.svc.GetNote(ctx, "list.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "Buy eggs" || got.Checksum != d.Checksum {
		t.Errorf("get after update = %+v", got)
	}

	if _, err := e.svc.GetNote(ctx, "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note err = %v", err)
	}
	if _, err := e.svc.UpdateNote(ctx, "missing.md", []byte("x"), ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}
}

func TestCreate_InvalidPath(t *testing.T) {
	e := newEnv(t)
	for _, id := range []string{"note.txt", "/abs.md", ".trash/x.md", "../up.md", "a/../../b.md"} {
		if _, err := e.svc.CreateNote(context.Background(), id, []byte("x")); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("CreateNote(%q) err = %v", id, err)
		}
	}
}

func TestTrashAndRestore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "plan.md", "the plan")

	if err := e.svc.TrashNote(ctx, "plan.md"); err != nil {
		t.Fatal(err)
	}
	live, _ := e.svc.ListNotes(ctx, ScopeActive)
	trash, _ := e.svc.ListNotes(ctx, ScopeTrash)
	if len(live) != 0 || len(trash) != 1 || !trash[0].Deleted {
		t.Fatalf("live = %v trash = %v", live, trash)
	}
	d, err := e.svc.GetNote(ctx, "plan.md")
	if err != nil || !d.Deleted || d.Path != ".trash/plan.md" {
		t.Errorf("trashed detail = %+v, %v", d, err)
	}

	if err := e.svc.TrashNote(ctx, "plan.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second trash err = %v", err)
	}

	if err := e.svc.RestoreNote(ctx, "plan.md"); err != nil {
		t.Fatal(err)
	}
	live, _ = e.svc.ListNotes(ctx, ScopeActive)
	if len(live) != 1 || live[0].Deleted {
		t.Errorf("live after restore = %v", live)
	}
	all, _ := e.svc.ListNotes(ctx, ScopeAll)
	if len(all) != 1 {
		t.Errorf("all = %v", all)
	}
}

func TestRestore_LiveNoteExists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "a.md", "first")
	if err := e.svc.TrashNote(ctx, "a.md"); err != nil {
		t.Fatal(err)
	}
	e.create(t, "b.md", "other")
	if err := e.store.Write("a.md", []byte("second")); err != nil {
		t.Fatal(err)
	}
	if err := e.svc.RestoreNote(ctx, "a.md"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("restore over live note err = %v", err)
	}
}

func TestSearch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "a.md", "Buy milk")
	e.create(t, "b.md", "---\ntags: [shopping]\npinned: true\n---\nBuy eggs and milk")
	e.create(t, "c.md", "Milk recipe")
	if err := e.svc.TrashNote(ctx, "c.md"); err != nil {
		t.Fatal(err)
	}

	ids := func(q Query) []string {
		t.Helper()
		snap, err := e.svc.Search(ctx, q)
		if err != nil {
			t.Fatalf("Search(%+v): %v", q, err)
		}
		var out []string
		for i := 0; i < snap.Len(); i++ {
			n, _ := snap.At(i)
			out = append(out, n.ID)
		}
		return out
	}

	if got := ids(Query{Text: "milk"}); len(got) != 2 || got[0] != "b.md" {
		t.Errorf("milk = %v, want pinned b.md first", got)
	}
	if got := ids(Query{Text: "milk shopping"}); len(got) != 1 || got[0] != "b.md" {
		t.Errorf("milk shopping = %v", got)
	}
	if got := ids(Query{Text: "milk shopping", ContentOnly: true}); len(got) != 0 {
		t.Errorf("content-only milk shopping = %v", got)
	}
	if got := ids(Query{Untagged: true}); len(got) != 1 || got[0] != "a.md" {
		t.Errorf("untagged = %v", got)
	}
	if got := ids(Query{Tag: "shopping"}); len(got) != 1 {
		t.Errorf("tag = %v", got)
	}
	if got := ids(Query{ExcludeSystemTag: "pinned"}); len(got) != 1 || got[0] != "a.md" {
		t.Errorf("exclude pinned = %v", got)
	}
	if got := ids(Query{Text: "milk", Scope: ScopeTrash}); len(got) != 1 || got[0] != "c.md" {
		t.Errorf("trash = %v", got)
	}
	if _, err := e.svc.Search(ctx, Query{Tag: "x", Untagged: true}); !errors.Is(err, apperr.ErrInvalidQuery) {
		t.Errorf("tag+untagged err = %v", err)
	}

	tags, err := e.svc.Tags(ctx)
	if err != nil || len(tags) != 1 || tags[0] != "shopping" {
		t.Errorf("tags = %v, %v", tags, err)
	}
}

func TestParseScope(t *testing.T) {
	if s, err := ParseScope("", ScopeTrash); err != nil || s != ScopeTrash {
		t.Errorf("empty = %v, %v", s, err)
	}
	if _, err := ParseScope("archive", ScopeActive); !errors.Is(err, apperr.ErrInvalidQuery) {
		t.Errorf("bad scope err = %v", err)
	}
}
