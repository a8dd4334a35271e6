package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/metrics"
	"github.com/starford/notesearch/internal/results"
	"github.com/starford/notesearch/internal/sse"
)

// SessionOptions configures a new search session.
type SessionOptions struct {
	Scope       Scope
	Keyword     string
	ContentOnly bool
}

// Session is a live search: a results controller kept in step with the
// corpus until it is closed or expires.
type Session struct {
	ID        string
	Scope     Scope
	CreatedAt time.Time

	ctrl     *results.Controller
	lastUsed atomic.Int64
}

// Controller returns the session's results controller.
func (s *Session) Controller() *results.Controller {
	s.touch()
	return s.ctrl
}

// LastUsed returns when the session was last accessed.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// sessionListener publishes each completed fetch of one session. Its
// methods run on the controller's owner goroutine, which also owns keyword.
type sessionListener struct {
	id        string
	publisher Publisher
	logger    *slog.Logger
	keyword   string
}

func (l *sessionListener) KeywordChanged(keyword string) {
	l.keyword = keyword
	l.logger.Debug("session: keyword changed", slog.String("keyword", keyword))
}

func (l *sessionListener) FetchCompleted(snap *results.Snapshot, err error) {
	if l.publisher == nil {
		return
	}
	res := sse.SearchResult{
		Session:    l.id,
		Generation: snap.Generation,
		Keyword:    l.keyword,
		Matches:    snap.Len(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	l.publisher.PublishSearchEvent(res)
}

// OpenSession starts a search session and performs its first fetch.
func (s *Service) OpenSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	scope := opts.Scope
	if scope == "" {
		scope = s.scope
	}
	id := uuid.NewString()
	logger := s.logger.With(slog.String("session", id))

	ctrlOpts := []results.Option{
		results.WithScope(scope.Predicate()),
		results.WithOrdering(s.ordering),
		results.WithListener(&sessionListener{id: id, publisher: s.publisher, logger: logger}),
		results.WithLogger(logger),
		results.WithFetchTimeout(s.fetchTimeout),
	}
	if opts.ContentOnly {
		ctrlOpts = append(ctrlOpts, results.WithContentOnly())
	}
	ctrl := results.New(s.db, ctrlOpts...)
	if opts.Keyword != "" {
		ctrl.SetKeyword(opts.Keyword)
	}
	if err := ctrl.PerformFetch(ctx); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("noteservice: open session: %w", err)
	}

	sess := &Session{ID: id, Scope: scope, CreatedAt: time.Now(), ctrl: ctrl}
	sess.touch()

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	metrics.SearchSessionsActive.Inc()

	logger.Info("session: opened", slog.String("scope", string(scope)))
	return sess, nil
}

// Session returns the open session with id.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("noteservice: session %s: %w", id, apperr.ErrNotFound)
	}
	sess.touch()
	return sess, nil
}

// SetSessionKeyword changes the keyword of a session and waits for the
// resulting view.
func (s *Service) SetSessionKeyword(ctx context.Context, id, keyword string) (*results.Snapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	ctrl := sess.Controller()
	ctrl.SetKeyword(keyword)
	if err := ctrl.PerformFetch(ctx); err != nil {
		return nil, err
	}
	return ctrl.Snapshot(), nil
}

// DismissSession clears the keyword of a session and waits for the full
// view.
func (s *Service) DismissSession(ctx context.Context, id string) (*results.Snapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	ctrl := sess.Controller()
	ctrl.Dismiss()
	if err := ctrl.PerformFetch(ctx); err != nil {
		return nil, err
	}
	return ctrl.Snapshot(), nil
}

// CloseSession stops and forgets a session.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("noteservice: session %s: %w", id, apperr.ErrNotFound)
	}
	sess.ctrl.Close()
	metrics.SearchSessionsActive.Dec()
	s.logger.Info("session: closed", slog.String("session", id))
	return nil
}

// ReloadSessions asks every open session to refetch.
func (s *Service) ReloadSessions() {
	for _, sess := range s.openSessions() {
		sess.ctrl.Reload()
	}
}

// SweepSessions closes sessions idle for longer than ttl and returns how
// many were closed.
func (s *Service) SweepSessions(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	closed := 0
	for _, sess := range s.openSessions() {
		if sess.LastUsed().Before(cutoff) {
			if err := s.CloseSession(sess.ID); err == nil {
				closed++
			}
		}
	}
	return closed
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, ttl, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.SweepSessions(ttl); n > 0 {
				s.logger.Info("session: swept idle sessions", slog.Int("count", n))
			}
		}
	}
}

// Close closes every open session.
func (s *Service) Close() {
	for _, sess := range s.openSessions() {
		_ = s.CloseSession(sess.ID)
	}
}

func (s *Service) openSessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}
