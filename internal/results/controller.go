// Package results keeps a filtered, sectioned view of a note corpus in step
// with a search keyword.
package results

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/predicate"
)

// ErrClosed is returned by PerformFetch once the controller is closed.
var ErrClosed = fmt.Errorf("results: controller closed: %w", apperr.ErrNotFound)

// Corpus is the storage collaborator: it returns every note matching p.
type Corpus interface {
	Fetch(ctx context.Context, p predicate.Predicate) ([]models.Note, error)
}

// Listener receives controller notifications. Both methods run on the
// controller's owner goroutine; they may read the controller's view but must
// not wait on PerformFetch.
type Listener interface {
	KeywordChanged(keyword string)
	FetchCompleted(snap *Snapshot, err error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithScope sets the base filter combined with every keyword. The default
// scope is the non-deleted notes.
func WithScope(p predicate.Predicate) Option {
	return func(c *Controller) { c.scope = p }
}

// WithOrdering sets grouping and sort order.
func WithOrdering(o Ordering) Option {
	return func(c *Controller) { c.ordering = o }
}

// WithListener registers l for keyword and fetch notifications.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithFetchTimeout bounds fetches started by SetKeyword, Reload and Dismiss.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithContentOnly restricts keyword terms to the note content; by default a
// term may also occur inside a tag.
func WithContentOnly() Option {
	return func(c *Controller) { c.terms = predicate.ForSearchText }
}

type requestKind int

const (
	reqKeyword requestKind = iota
	reqReload
	reqDismiss
	reqFetch
)

type request struct {
	kind    requestKind
	keyword string
	reply   chan error
}

// Controller owns the keyword and the sectioned result view.
//
// Concurrency model: one owner goroutine applies every request and performs
// every fetch, in arrival order. Requests queued while a fetch runs are
// coalesced so only the latest keyword is fetched. Each successful fetch
// publishes a new immutable Snapshot, which readers load without locking.
type Controller struct {
	corpus   Corpus
	scope    predicate.Predicate
	ordering Ordering
	terms    func(string) []predicate.Predicate
	listener Listener
	logger   *slog.Logger
	timeout  time.Duration

	reqCh   chan request
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool

	keyword atomic.Pointer[string]
	snap    atomic.Pointer[Snapshot]
}

// New creates a controller over corpus and starts its owner goroutine. The
// view is empty until the first SetKeyword, Reload, Dismiss or PerformFetch.
func New(corpus Corpus, opts ...Option) *Controller {
	c := &Controller{
		corpus:   corpus,
		scope:    predicate.ForStatus(false),
		ordering: DefaultOrdering(),
		terms:    predicate.ForKeyword,
		logger:   slog.Default(),
		timeout:  10 * time.Second,
		reqCh:    make(chan request, 64),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	empty := ""
	c.keyword.Store(&empty)
	c.snap.Store(&Snapshot{})

	go c.run()
	return c
}

// SetKeyword records k as the current keyword and schedules a fetch.
func (c *Controller) SetKeyword(k string) {
	c.keyword.Store(&k)
	c.enqueue(request{kind: reqKeyword, keyword: k})
}

// Reload schedules a fetch with the current keyword. Call it when the corpus
// changed.
func (c *Controller) Reload() {
	c.enqueue(request{kind: reqReload})
}

// Dismiss clears the keyword and returns to the scoped, unfiltered view.
// Snapshots have ScrollToTop set until the next SetKeyword.
func (c *Controller) Dismiss() {
	empty := ""
	c.keyword.Store(&empty)
	c.enqueue(request{kind: reqDismiss})
}

// PerformFetch re-applies the current predicate and waits for the result.
// On failure the previous view is kept and the error is returned. ctx only
// bounds the wait: the fetch itself runs under the controller's timeout and
// still completes if ctx is cancelled.
func (c *Controller) PerformFetch(ctx context.Context) error {
	reply := make(chan error, 1)
	if !c.enqueue(request{kind: reqFetch, reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrClosed
	}
}

// Keyword returns the most recently requested keyword.
func (c *Controller) Keyword() string {
	return *c.keyword.Load()
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() *Snapshot {
	return c.snap.Load()
}

// NumberOfSections returns the section count of the current view.
func (c *Controller) NumberOfSections() int {
	return c.Snapshot().NumberOfSections()
}

// NumberOfRows returns the row count of section in the current view.
func (c *Controller) NumberOfRows(section int) int {
	return c.Snapshot().NumberOfRows(section)
}

// Object returns the note at ip in the current view.
func (c *Controller) Object(ip IndexPath) (models.Note, bool) {
	return c.Snapshot().Object(ip)
}

// Close stops the owner goroutine. Pending requests are dropped.
func (c *Controller) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	<-c.stopped
}

func (c *Controller) enqueue(req request) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.reqCh <- req:
		return true
	case <-c.stopped:
		return false
	}
}

func (c *Controller) run() {
	defer close(c.stopped)

	keyword := ""
	// scrollToTop is set by a dismissal and holds until the next keyword.
	scrollToTop := false
	var generation uint64

	for {
		select {
		case <-c.stopCh:
			return
		case first := <-c.reqCh:
			batch := c.drain(first)

			previous := keyword
			var replies []chan error
			for _, req := range batch {
				switch req.kind {
				case reqKeyword:
					keyword = req.keyword
					scrollToTop = false
				case reqDismiss:
					keyword = ""
					scrollToTop = true
				}
				if req.reply != nil {
					replies = append(replies, req.reply)
				}
			}

			if keyword != previous && c.listener != nil {
				c.listener.KeywordChanged(keyword)
			}

			err := c.fetch(context.Background(), keyword, scrollToTop, generation+1)
			if err == nil {
				generation++
			}
			for _, reply := range replies {
				reply <- err
			}
		}
	}
}

// drain returns first followed by every request already queued.
func (c *Controller) drain(first request) []request {
	batch := []request{first}
	for {
		select {
		case req := <-c.reqCh:
			batch = append(batch, req)
		default:
			return batch
		}
	}
}

func (c *Controller) fetch(ctx context.Context, keyword string, scrollToTop bool, generation uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p := predicate.And(append([]predicate.Predicate{c.scope}, c.terms(keyword)...)...)
	start := time.Now()
	notes, err := c.corpus.Fetch(ctx, p)
	if err != nil {
		c.logger.Warn("results: fetch failed",
			slog.String("keyword", keyword),
			slog.String("predicate", p.String()),
			slog.String("error", err.Error()))
		if c.listener != nil {
			c.listener.FetchCompleted(c.snap.Load(), err)
		}
		return fmt.Errorf("results: fetch: %w", err)
	}

	snap := &Snapshot{
		Generation:  generation,
		Keyword:     keyword,
		Terms:       predicate.Terms(keyword),
		Sections:    Group(notes, c.ordering),
		ScrollToTop: scrollToTop,
		FetchedAt:   time.Now(),
	}
	c.snap.Store(snap)

	c.logger.Debug("results: fetched",
		slog.String("keyword", keyword),
		slog.Int("matches", len(notes)),
		slog.Duration("took", time.Since(start)))
	if c.listener != nil {
		c.listener.FetchCompleted(snap, nil)
	}
	return nil
}
