package noteservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/notesearch/internal/apperr"
)

func TestSession_Lifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "a.md", "Buy milk")
	e.create(t, "b.md", "---\ntags: [shopping]\n---\nBuy eggs and milk")

	sess, err := e.svc.OpenSession(ctx, SessionOptions{Keyword: "milk"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "" || sess.Scope != ScopeActive {
		t.Errorf("session = %+v", sess)
	}
	if n := sess.Controller().Snapshot().Len(); n != 2 {
		t.Errorf("initial matches = %d, want 2", n)
	}

	snap, err := e.svc.SetSessionKeyword(ctx, sess.ID, "milk shopping")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 1 || snap.Keyword != "milk shopping" {
		t.Errorf("snapshot = %+v", snap)
	}

	snap, err = e.svc.DismissSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 2 || !snap.ScrollToTop || snap.Keyword != "" {
		t.Errorf("dismissed snapshot = %+v", snap)
	}

	events := e.pub.searchEvents()
	if len(events) == 0 || events[len(events)-1].Session != sess.ID {
		t.Errorf("search events = %+v", events)
	}

	if err := e.svc.CloseSession(sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Session(sess.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("closed session lookup err = %v", err)
	}
	if err := e.svc.CloseSession(sess.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("double close err = %v", err)
	}
}

func TestSession_ReloadsOnCorpusChange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "a.md", "Buy milk")

	sess, err := e.svc.OpenSession(ctx, SessionOptions{Keyword: "milk"})
	if err != nil {
		t.Fatal(err)
	}
	e.create(t, "b.md", "More milk")

	eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return sess.Controller().Snapshot().Len() == 2
	}, "session did not pick up the new note")
}

func TestSession_Sweep(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	idle, err := e.svc.OpenSession(ctx, SessionOptions{})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	fresh, err := e.svc.OpenSession(ctx, SessionOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if n := e.svc.SweepSessions(60 * time.Millisecond); n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
	if _, err := e.svc.Session(idle.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("idle session should be gone")
	}
	if _, err := e.svc.Session(fresh.ID); err != nil {
		t.Errorf("fresh session: %v", err)
	}
}

func TestSession_OpenFailsWhenCorpusUnavailable(t *testing.T) {
	e := newEnv(t)
	e.db.Close()
	_, err := e.svc.OpenSession(context.Background(), SessionOptions{})
	if !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
