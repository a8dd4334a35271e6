package noteservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/notesearch/internal/corpus"
	"github.com/starford/notesearch/internal/metrics"
	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/predicate"
)

// InstrumentedCorpus wraps a corpus.Store with Prometheus metrics and debug
// logging.
type InstrumentedCorpus struct {
	inner  corpus.Store
	logger *slog.Logger
}

var _ corpus.Store = (*InstrumentedCorpus)(nil)

// NewInstrumentedCorpus wraps inner.
func NewInstrumentedCorpus(inner corpus.Store, logger *slog.Logger) *InstrumentedCorpus {
	return &InstrumentedCorpus{inner: inner, logger: logger}
}

func (c *InstrumentedCorpus) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.CorpusRequestsTotal.WithLabelValues(op, status).Inc()
	metrics.CorpusRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (c *InstrumentedCorpus) Upsert(ctx context.Context, n models.Note) error {
	start := time.Now()
	err := c.inner.Upsert(ctx, n)
	c.observe("upsert", start, err)
	return err
}

func (c *InstrumentedCorpus) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := c.inner.Delete(ctx, id)
	c.observe("delete", start, err)
	return err
}

func (c *InstrumentedCorpus) Get(ctx context.Context, id string) (models.Note, error) {
	start := time.Now()
	n, err := c.inner.Get(ctx, id)
	c.observe("get", start, err)
	return n, err
}

func (c *InstrumentedCorpus) States(ctx context.Context) (map[string]corpus.State, error) {
	start := time.Now()
	s, err := c.inner.States(ctx)
	c.observe("states", start, err)
	return s, err
}

// Fetch also records the number of matches and logs the predicate.
func (c *InstrumentedCorpus) Fetch(ctx context.Context, p predicate.Predicate) ([]models.Note, error) {
	start := time.Now()
	notes, err := c.inner.Fetch(ctx, p)
	c.observe("fetch", start, err)
	if err != nil {
		return nil, err
	}
	metrics.FetchMatches.Observe(float64(len(notes)))
	c.logger.Debug("corpus: fetch",
		slog.String("predicate", p.String()),
		slog.Int("matches", len(notes)),
		slog.Duration("took", time.Since(start)))
	return notes, nil
}

func (c *InstrumentedCorpus) Tags(ctx context.Context) ([]string, error) {
	start := time.Now()
	tags, err := c.inner.Tags(ctx)
	c.observe("tags", start, err)
	return tags, err
}
