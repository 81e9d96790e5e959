package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorHandler_NoPanic(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	w := httptest.NewRecorder()
	ErrorHandler(zap.NewNop())(handler).ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/cases", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestErrorHandler_PanicRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "string panic",
			handler: func(http.ResponseWriter, *http.Request) { panic("test panic") },
		},
		{
			name: "runtime panic",
			handler: func(http.ResponseWriter, *http.Request) {
				var nilMap map[string]string
				nilMap["key"] = "value"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chain := RequestID(ErrorHandler(zap.NewNop())(tt.handler))
			req := httptest.NewRequest("GET", "/api/v1/cases", nil)
			req.Header.Set("X-Request-ID", "req-42")
			w := httptest.NewRecorder()

			chain.ServeHTTP(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, "Internal Server Error", body.Error)
			assert.Equal(t, "An unexpected error occurred", body.Message)
			assert.Equal(t, "/api/v1/cases", body.Path)
			assert.Equal(t, "req-42", body.RequestID)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}
