package noteservice

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/predicate"
	"github.com/starford/notesearch/internal/results"
)

// Query is a one-shot search request.
type Query struct {
	Text             string
	Tag              string
	Untagged         bool
	SystemTag        string
	ExcludeSystemTag string
	Scope            Scope // empty means the service default
	ContentOnly      bool  // match terms against content only, not tags
}

// Predicate builds the compound filter of q: scope AND each term AND the
// tag and system tag filters.
func (q Query) Predicate(fallback Scope) (predicate.Predicate, error) {
	if q.Tag != "" && q.Untagged {
		return predicate.Predicate{}, fmt.Errorf("noteservice: tag and untagged are exclusive: %w", apperr.ErrInvalidQuery)
	}
	scope := q.Scope
	if scope == "" {
		scope = fallback
	}

	parts := []predicate.Predicate{scope.Predicate()}
	if q.ContentOnly {
		parts = append(parts, predicate.ForSearchText(q.Text)...)
	} else {
		parts = append(parts, predicate.ForKeyword(q.Text)...)
	}
	if q.Tag != "" {
		parts = append(parts, predicate.ForTag(q.Tag))
	}
	if q.Untagged {
		parts = append(parts, predicate.ForUntaggedNotes())
	}
	if q.SystemTag != "" {
		parts = append(parts, predicate.ForSystemTag(q.SystemTag))
	}
	if q.ExcludeSystemTag != "" {
		parts = append(parts, predicate.Not(predicate.ForSystemTag(q.ExcludeSystemTag)))
	}
	return predicate.And(parts...), nil
}

// Search runs q once against the corpus and returns the grouped result.
func (s *Service) Search(ctx context.Context, q Query) (*results.Snapshot, error) {
	p, err := q.Predicate(s.scope)
	if err != nil {
		return nil, err
	}
	notes, err := s.db.Fetch(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("noteservice: search: %w", err)
	}
	return &results.Snapshot{
		Keyword:   q.Text,
		Terms:     predicate.Terms(q.Text),
		Sections:  results.Group(notes, s.ordering),
		FetchedAt: time.Now(),
	}, nil
}
