package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// hotReloader holds a handler chain that is rebuilt from runtime config on a
// ticker. Requests always see either the old or the new chain.
type hotReloader struct {
	next     http.Handler
	interval time.Duration
	build    func(ctx context.Context, next http.Handler) http.Handler

	mu      sync.RWMutex
	current http.Handler
}

func (h *hotReloader) wrap(next http.Handler) http.Handler {
	h.next = next
	h.reload(context.Background())
	return h
}

func (h *hotReloader) reload(ctx context.Context) {
	if h.next == nil {
		return
	}
	handler := h.build(ctx, h.next)
	if handler == nil {
		return
	}
	h.mu.Lock()
	h.current = handler
	h.mu.Unlock()
}

// run reloads every interval until ctx is cancelled
func (h *hotReloader) run(ctx context.Context) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reload(ctx)
		}
	}
}

func (h *hotReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.mu.RLock()
	handler := h.current
	h.mu.RUnlock()
	if handler != nil {
		handler.ServeHTTP(w, req)
		return
	}
	if h.next != nil {
		h.next.ServeHTTP(w, req)
	}
}
