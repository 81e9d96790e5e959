package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tensai-22/penal-sub001/internal/request"
)

type observedRequest struct {
	method string
	route  string
	status int
}

type fakeHTTPObserver struct {
	mu   sync.Mutex
	seen []observedRequest
}

func (f *fakeHTTPObserver) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, observedRequest{method: method, route: route, status: status})
}

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		wantRoute     string
		wantLevel     string
	}{
		{name: "list", method: "GET", path: "/api/v1/cases", handlerStatus: http.StatusOK, wantRoute: "/api/v1/cases", wantLevel: "info"},
		{name: "case id is templated", method: "GET", path: "/api/v1/cases/LIM-2024-17", handlerStatus: http.StatusNotFound, wantRoute: "/api/v1/cases/{ppu}", wantLevel: "info"},
		{name: "batch error", method: "POST", path: "/api/v1/urgency/batch", handlerStatus: http.StatusBadGateway, wantRoute: "/api/v1/urgency/batch", wantLevel: "warn"},
		{name: "no route", method: "GET", path: "/nope", handlerStatus: http.StatusNotFound, wantRoute: "unmatched", wantLevel: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			core, logs := observer.New(zap.InfoLevel)
			obs := &fakeHTTPObserver{}

			h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})
			r := mux.NewRouter()
			r.Use(Logging(zap.New(core), obs))
			r.Handle("/api/v1/cases", h)
			r.Handle("/api/v1/cases/{ppu}", h)
			r.Handle("/api/v1/urgency/batch", h)
			r.NotFoundHandler = Logging(zap.New(core), obs)(h)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.handlerStatus, w.Code)
			entries := logs.FilterMessage("http_request").All()
			if assert.Len(t, entries, 1) {
				assert.Equal(t, tt.wantLevel, entries[0].Level.String())
				assert.Equal(t, tt.wantRoute, entries[0].ContextMap()["route"])
				assert.Equal(t, int64(tt.handlerStatus), entries[0].ContextMap()["status_code"])
			}
			assert.Equal(t, []observedRequest{{method: tt.method, route: tt.wantRoute, status: tt.handlerStatus}}, obs.seen)
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = request.RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(w, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestAudit(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	for _, status := range []int{http.StatusOK, http.StatusTooManyRequests, http.StatusRequestEntityTooLarge} {
		h := Audit(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/urgency/batch", nil))
	}

	assert.Equal(t, 1, logs.FilterMessage("rate_limit_violation").Len())
	assert.Equal(t, 1, logs.FilterMessage("oversized_request").Len())
	assert.Equal(t, 2, logs.Len())
}
