package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/"+id, http.NoBody))
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/sessions/{id}", "404"))
	if got < 2 {
		t.Errorf("requests_total = %f, want >= 2", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_DefaultStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/notes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/notes", http.NoBody))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/notes", "200")); got < 1 {
		t.Errorf("requests_total = %f, want >= 1", got)
	}
}

func TestStatusWriter_Flushes(t *testing.T) {
	rr := httptest.NewRecorder()
	var w http.ResponseWriter = &statusWriter{ResponseWriter: rr, status: http.StatusOK}
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("statusWriter must implement http.Flusher")
	}
	f.Flush()
	if !rr.Flushed {
		t.Error("flush not forwarded")
	}
}
