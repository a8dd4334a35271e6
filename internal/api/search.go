package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/noteservice"
	"github.com/starford/notesearch/internal/results"
)

// Search handles GET /api/search.
//
//	@Summary		Run a one-shot keyword search
//	@Tags			search
//	@Produce		json
//	@Param			q					query		string	false	"Keyword; whitespace separated terms must all match"
//	@Param			tag					query		string	false	"Exact tag"
//	@Param			untagged			query		bool	false	"Only notes without tags"
//	@Param			system_tag			query		string	false	"Required system tag"
//	@Param			exclude_system_tag	query		string	false	"Excluded system tag"
//	@Param			scope				query		string	false	"Note scope"	Enums(active, trash, all)
//	@Param			content_only		query		bool	false	"Match terms against content only"
//	@Success		200					{object}	SearchResponse
//	@Failure		400					{object}	errResponse
//	@Failure		503					{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r, h.svc.DefaultScope())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	snap, err := h.svc.Search(r.Context(), q)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q.Text))
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(snap))
}

func parseQuery(r *http.Request, fallback noteservice.Scope) (noteservice.Query, error) {
	v := r.URL.Query()
	scope, err := noteservice.ParseScope(v.Get("scope"), fallback)
	if err != nil {
		return noteservice.Query{}, err
	}
	untagged, err := parseBool(v.Get("untagged"))
	if err != nil {
		return noteservice.Query{}, errors.New("untagged must be a boolean")
	}
	contentOnly, err := parseBool(v.Get("content_only"))
	if err != nil {
		return noteservice.Query{}, errors.New("content_only must be a boolean")
	}
	return noteservice.Query{
		Text:             v.Get("q"),
		Tag:              v.Get("tag"),
		Untagged:         untagged,
		SystemTag:        v.Get("system_tag"),
		ExcludeSystemTag: v.Get("exclude_system_tag"),
		Scope:            scope,
		ContentOnly:      contentOnly,
	}, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// OpenSession handles POST /api/sessions.
//
//	@Summary		Open a live search session
//	@Description	The session re-runs its keyword whenever the corpus changes and
//	@Description	publishes search.completed events on /events?session={id}.
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	false	"Session options"
//	@Success		201		{object}	SessionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	scope, err := noteservice.ParseScope(req.Scope, h.svc.DefaultScope())
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	sess, err := h.svc.OpenSession(r.Context(), noteservice.SessionOptions{
		Scope:       scope,
		Keyword:     req.Keyword,
		ContentOnly: req.ContentOnly,
	})
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess, sess.Controller().Snapshot()))
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get the current view of a search session
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SessionResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess, sess.Controller().Snapshot()))
}

// SetKeyword handles PUT /api/sessions/{id}/keyword.
//
//	@Summary		Change the keyword of a search session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		KeywordRequest	true	"New keyword"
//	@Success		200		{object}	SessionResponse
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/keyword [put]
func (h *Handler) SetKeyword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	id := chi.URLParam(r, "id")
	var req KeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	snap, err := h.svc.SetSessionKeyword(r.Context(), id, req.Keyword)
	if err != nil {
		writeError(w, "set keyword", err, slog.String("session", id))
		return
	}
	h.writeSession(w, id, snap)
}

// DismissSearch handles DELETE /api/sessions/{id}/keyword.
//
//	@Summary		Clear the keyword and return to the full scope
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SessionResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/keyword [delete]
func (h *Handler) DismissSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.svc.DismissSession(r.Context(), id)
	if err != nil {
		writeError(w, "dismiss search", err, slog.String("session", id))
		return
	}
	h.writeSession(w, id, snap)
}

// CloseSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Close a search session
//	@Tags			sessions
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Session closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseSession(chi.URLParam(r, "id")); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSession responds with snap, the view produced by the request itself.
func (h *Handler) writeSession(w http.ResponseWriter, id string, snap *results.Snapshot) {
	sess, err := h.svc.Session(id)
	if err != nil {
		// Closed concurrently.
		writeError(w, "session", apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess, snap))
}
