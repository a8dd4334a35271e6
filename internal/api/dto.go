package api

import (
	"time"

	"github.com/samber/lo"

	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/noteservice"
	"github.com/starford/notesearch/internal/predicate"
	"github.com/starford/notesearch/internal/results"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"groceries/list.md" validate:"required"`
	Content string `json:"content" example:"Buy milk" validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"Buy eggs and milk" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// TagsResponse lists the distinct tags of live notes.
type TagsResponse struct {
	Tags []string `json:"tags" validate:"required"`
}

// SearchHit is one note of a search result with its highlighted ranges.
type SearchHit struct {
	NoteListItem
	Highlights []predicate.Range `json:"highlights"`
}

// SearchSection is a named group of hits.
type SearchSection struct {
	Name string      `json:"name" example:"Pinned" validate:"required"`
	Hits []SearchHit `json:"hits" validate:"required"`
}

// SearchResponse is a sectioned search result.
type SearchResponse struct {
	Keyword     string          `json:"keyword" example:"milk shopping"`
	Terms       []string        `json:"terms"`
	Sections    []SearchSection `json:"sections" validate:"required"`
	Total       int             `json:"total" example:"3"`
	ScrollToTop bool            `json:"scroll_to_top"`
	Generation  uint64          `json:"generation"`
}

// OpenSessionRequest is the request body for opening a search session.
type OpenSessionRequest struct {
	Scope       string `json:"scope" example:"active"`
	Keyword     string `json:"keyword" example:"milk"`
	ContentOnly bool   `json:"content_only"`
}

// KeywordRequest sets the keyword of a session.
type KeywordRequest struct {
	Keyword string `json:"keyword" example:"milk shopping"`
}

// SessionResponse describes a search session and its current view.
type SessionResponse struct {
	ID        string         `json:"id" example:"8f14e45f-ceea-4e7a-9d7b-2f2a4b1c9e11" validate:"required"`
	Scope     string         `json:"scope" example:"active"`
	CreatedAt time.Time      `json:"created_at"`
	Result    SearchResponse `json:"result"`
}

func toSearchResponse(snap *results.Snapshot) SearchResponse {
	return SearchResponse{
		Keyword: snap.Keyword,
		Terms:   nonNil(snap.Terms),
		Sections: lo.Map(snap.Sections, func(sec results.Section, _ int) SearchSection {
			return SearchSection{
				Name: sec.Name,
				Hits: lo.Map(sec.Notes, func(n models.Note, _ int) SearchHit {
					return SearchHit{
						NoteListItem: noteservice.ListItem(n),
						Highlights:   nonNil(snap.Highlights(n)),
					}
				}),
			}
		}),
		Total:       snap.Len(),
		ScrollToTop: snap.ScrollToTop,
		Generation:  snap.Generation,
	}
}

func toSessionResponse(sess *noteservice.Session, snap *results.Snapshot) SessionResponse {
	return SessionResponse{
		ID:        sess.ID,
		Scope:     string(sess.Scope),
		CreatedAt: sess.CreatedAt,
		Result:    toSearchResponse(snap),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
