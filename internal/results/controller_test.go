package results

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/predicate"
)

// fakeCorpus filters an in-memory slice and can be switched into a failing
// state.
type fakeCorpus struct {
	mu      sync.Mutex
	notes   []models.Note
	err     error
	fetches int
	delay   time.Duration
}

func (f *fakeCorpus) Fetch(ctx context.Context, p predicate.Predicate) ([]models.Note, error) {
	f.mu.Lock()
	f.fetches++
	notes, err, delay := f.notes, f.err, f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	var out []models.Note
	for _, n := range notes {
		if p.Matches(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeCorpus) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// recorder collects listener calls.
type recorder struct {
	mu       sync.Mutex
	keywords []string
	fetched  []*Snapshot
	errs     []error
}

func (r *recorder) KeywordChanged(k string) {
	r.mu.Lock()
	r.keywords = append(r.keywords, k)
	r.mu.Unlock()
}

func (r *recorder) FetchCompleted(s *Snapshot, err error) {
	r.mu.Lock()
	r.fetched = append(r.fetched, s)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) last() (*Snapshot, error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fetched) == 0 {
		return nil, nil, 0
	}
	return r.fetched[len(r.fetched)-1], r.errs[len(r.errs)-1], len(r.fetched)
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

func shoppingCorpus() *fakeCorpus {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeCorpus{notes: []models.Note{
		{ID: "a", Content: "Buy milk", Tags: "[]", ModifiedAt: base},
		{ID: "b", Content: "Buy eggs and milk", Tags: `["shopping"]`, ModifiedAt: base.Add(time.Hour)},
		{ID: "c", Content: "Old milk recipe", Deleted: true, ModifiedAt: base.Add(2 * time.Hour)},
		{ID: "d", Content: "Meeting notes", SystemTags: "pinned", ModifiedAt: base},
	}}
}

func newController(t *testing.T, corpus Corpus, opts ...Option) *Controller {
	t.Helper()
	c := New(corpus, opts...)
	t.Cleanup(c.Close)
	return c
}

func ids(s *Snapshot) []string {
	var out []string
	for i := 0; ; i++ {
		n, ok := s.At(i)
		if !ok {
			return out
		}
		out = append(out, n.ID)
	}
}

func TestPerformFetch_EmptyKeywordShowsScope(t *testing.T) {
	c := newController(t, shoppingCorpus())
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatalf("PerformFetch: %v", err)
	}
	got := ids(c.Snapshot())
	want := []string{"d", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids = %v, want %v", got, want)
			break
		}
	}
	if c.NumberOfSections() != 2 {
		t.Errorf("sections = %d, want 2 (pinned + notes)", c.NumberOfSections())
	}
	if n, ok := c.Object(IndexPath{Section: 0, Row: 0}); !ok || n.ID != "d" {
		t.Errorf("Object(0,0) = %v, %v", n.ID, ok)
	}
}

func TestSetKeyword_MilkShopping(t *testing.T) {
	c := newController(t, shoppingCorpus())

	c.SetKeyword("milk")
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ids(c.Snapshot()); len(got) != 2 {
		t.Errorf("milk = %v, want a and b", got)
	}

	c.SetKeyword("milk shopping")
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := ids(c.Snapshot())
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("milk shopping = %v, want [b]", got)
	}
	if c.Snapshot().Keyword != "milk shopping" {
		t.Errorf("snapshot keyword = %q", c.Snapshot().Keyword)
	}
}

func TestSetKeyword_Async(t *testing.T) {
	rec := &recorder{}
	c := newController(t, shoppingCorpus(), WithListener(rec))
	c.SetKeyword("eggs")

	eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		s, err, _ := rec.last()
		return s != nil && err == nil && s.Keyword == "eggs"
	}, "fetch for eggs never completed")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.keywords) == 0 || rec.keywords[0] != "eggs" {
		t.Errorf("KeywordChanged calls = %v", rec.keywords)
	}
}

func TestDismiss_ReturnsToFullViewScrolledToTop(t *testing.T) {
	c := newController(t, shoppingCorpus())
	c.SetKeyword("eggs")
	c.Dismiss()
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if s.Keyword != "" || c.Keyword() != "" {
		t.Errorf("keyword = %q / %q, want empty", s.Keyword, c.Keyword())
	}
	if s.Len() != 3 {
		t.Errorf("len = %d, want 3", s.Len())
	}
	if !s.ScrollToTop {
		t.Error("dismiss should scroll to top")
	}
}

func TestRapidKeywords_LastWins(t *testing.T) {
	corpus := shoppingCorpus()
	corpus.delay = 5 * time.Millisecond
	c := newController(t, corpus)

	for _, k := range []string{"m", "mi", "mil", "milk", "milk s", "milk sh", "milk shopping"} {
		c.SetKeyword(k)
	}
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if s.Keyword != "milk shopping" {
		t.Fatalf("keyword = %q, want the last one", s.Keyword)
	}
	if got := ids(s); len(got) != 1 || got[0] != "b" {
		t.Errorf("ids = %v, want [b]", got)
	}
	corpus.mu.Lock()
	defer corpus.mu.Unlock()
	if corpus.fetches > 8 {
		t.Errorf("fetches = %d, expected coalescing to keep it at or below 8", corpus.fetches)
	}
}

func TestFetchError_KeepsPreviousView(t *testing.T) {
	corpus := shoppingCorpus()
	rec := &recorder{}
	c := newController(t, corpus, WithListener(rec))

	c.SetKeyword("milk")
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := c.Snapshot()

	boom := errors.New("disk gone")
	corpus.setErr(boom)
	c.SetKeyword("eggs")
	err := c.PerformFetch(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if c.Snapshot() != before {
		t.Error("failed fetch replaced the snapshot")
	}
	if c.Keyword() != "eggs" {
		t.Errorf("keyword = %q, want eggs", c.Keyword())
	}
	_, lastErr, _ := rec.last()
	if !errors.Is(lastErr, boom) {
		t.Errorf("listener err = %v", lastErr)
	}

	// Resubmitting the same keyword retries.
	corpus.setErr(nil)
	c.SetKeyword("eggs")
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ids(c.Snapshot()); len(got) != 1 || got[0] != "b" {
		t.Errorf("ids = %v, want [b]", got)
	}
}

func TestRepeatedFetch_Deterministic(t *testing.T) {
	corpus := shoppingCorpus()
	same := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	for i := range corpus.notes {
		corpus.notes[i].ModifiedAt = same
	}
	c := newController(t, corpus, WithOrdering(Ordering{Field: SortModified, Direction: Descending}))
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := ids(c.Snapshot())
	for i := 0; i < 5; i++ {
		if err := c.PerformFetch(context.Background()); err != nil {
			t.Fatal(err)
		}
		got := ids(c.Snapshot())
		for j := range first {
			if got[j] != first[j] {
				t.Fatalf("fetch %d order = %v, want %v", i, got, first)
			}
		}
	}
	if first[0] != "a" {
		t.Errorf("ties should break by id, got %v", first)
	}
}

func TestWithScope_Trash(t *testing.T) {
	c := newController(t, shoppingCorpus(), WithScope(predicate.ForStatus(true)))
	c.SetKeyword("milk")
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ids(c.Snapshot()); len(got) != 1 || got[0] != "c" {
		t.Errorf("trash milk = %v, want [c]", got)
	}
}

func TestWithContentOnly(t *testing.T) {
	c := newController(t, shoppingCorpus(), WithContentOnly())
	c.SetKeyword("shopping")
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := c.Snapshot().Len(); n != 0 {
		t.Errorf("content-only shopping matched %d notes", n)
	}
}

func TestHighlights(t *testing.T) {
	c := newController(t, shoppingCorpus())
	c.SetKeyword("MILK")
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	n, ok := c.Snapshot().At(0)
	if !ok {
		t.Fatal("no results")
	}
	hl := c.Snapshot().Highlights(n)
	if len(hl) != 1 || n.Content[hl[0].Start:hl[0].End] != "milk" {
		t.Errorf("highlights = %v for %q", hl, n.Content)
	}
}

func TestClose_RejectsFetch(t *testing.T) {
	c := New(shoppingCorpus())
	c.Close()
	if err := c.PerformFetch(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("PerformFetch after Close = %v, want ErrClosed", err)
	}
	if err := c.PerformFetch(context.Background()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("ErrClosed should match apperr.ErrNotFound, got %v", err)
	}
	c.SetKeyword("ignored")
	c.Close()
}

func TestPerformFetch_CancelledCallerDoesNotFailQueuedKeyword(t *testing.T) {
	rec := &recorder{}
	corpus := shoppingCorpus()
	corpus.delay = 50 * time.Millisecond
	c := newController(t, corpus, WithListener(rec))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	c.SetKeyword("shopping")
	if err := c.PerformFetch(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("PerformFetch(cancelled) = %v, want context.Canceled", err)
	}
	if err := c.PerformFetch(context.Background()); err != nil {
		t.Fatalf("PerformFetch: %v", err)
	}

	rec.mu.Lock()
	errs := append([]error(nil), rec.errs...)
	rec.mu.Unlock()
	for i, err := range errs {
		if err != nil {
			t.Errorf("fetch %d failed: %v", i, err)
		}
	}
	snap := c.Snapshot()
	if snap.Keyword != "shopping" {
		t.Errorf("snapshot keyword = %q, want shopping", snap.Keyword)
	}
	if got := ids(snap); len(got) != 1 || got[0] != "b" {
		t.Errorf("shopping = %v, want [b]", got)
	}
}
