package middleware

import (
	"net/http"

	"github.com/tensai-22/penal-sub001/internal/request"
)

// RequestID attaches a request id to the context and echoes it in the response
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := request.NewRequestID(r.Header.Get(request.HeaderRequestID))
		w.Header().Set(request.HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(request.WithRequestID(r.Context(), id)))
	})
}
