package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backendCases = `[
	{"registro_ppu":"LIM-1","abogado":"PEREZ","fecha_atencion":"2024-01-01","plazo_atencion":"10"},
	{"registro_ppu":"LIM-2","abogado":"PEREZ","fecha_atencion":"2024-01-01","plazo_atencion":"3"},
	{"registro_ppu":"LIM-3","abogado":"PEREZ","fecha_atencion":"2023-12-01","plazo_atencion":"5"},
	{"registro_ppu":"LIM-4","abogado":"PEREZ","fecha_atencion":"","plazo_atencion":""}
]`

func newBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cases", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "PEREZ", r.URL.Query().Get("abogado"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(backendCases))
	})
	mux.HandleFunc("/api/cases/LIM-2", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"registro_ppu":"LIM-2","fecha_atencion":"2024-01-01","plazo_atencion":"3"}}`))
	})
	mux.HandleFunc("/api/cases/MISSING", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func backendArgs(srv *httptest.Server, args ...string) []string {
	return append(args, "--backend-url", srv.URL, "--now", "2024-01-03 10:00", "--tz", "America/Lima", "--sort", "diff")
}

func TestCasesListCmd(t *testing.T) {
	t.Parallel()

	srv, calls := newBackend(t)
	out, _, err := execute(t, "", backendArgs(srv, "cases", "list", "--abogado", "PEREZ", "--actionable", "-o", "json")...)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var page struct {
		Items []struct {
			RegistroPPU  string `json:"registro_ppu"`
			UrgencyClass string `json:"urgency_class"`
		} `json:"items"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "LIM-3", page.Items[0].RegistroPPU)
	assert.Equal(t, "overdue", page.Items[0].UrgencyClass)
	assert.Equal(t, "LIM-2", page.Items[1].RegistroPPU)
	assert.Equal(t, "LIM-1", page.Items[2].RegistroPPU)
}

func TestCasesListCmd_Table(t *testing.T) {
	t.Parallel()

	srv, _ := newBackend(t)
	out, _, err := execute(t, "", backendArgs(srv, "cases", "list", "--abogado", "PEREZ", "--class", "urgent")...)
	require.NoError(t, err)
	assert.Contains(t, out, "LIM-2")
	assert.NotContains(t, out, "LIM-1")
	assert.Contains(t, out, "Page 1 of 1 (1 records)")
}

func TestCasesListCmd_UnknownClass(t *testing.T) {
	t.Parallel()

	srv, calls := newBackend(t)
	_, _, err := execute(t, "", backendArgs(srv, "cases", "list", "--class", "soon")...)
	assert.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestCasesSummaryCmd(t *testing.T) {
	t.Parallel()

	srv, _ := newBackend(t)
	out, _, err := execute(t, "", backendArgs(srv, "cases", "summary", "--abogado", "PEREZ", "--limit", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "Most urgent:")
	assert.Contains(t, out, "LIM-3")
	assert.Contains(t, out, "LIM-2")
	assert.NotContains(t, out, "LIM-1")
}

func TestCasesGetCmd(t *testing.T) {
	t.Parallel()

	srv, _ := newBackend(t)
	out, _, err := execute(t, "", backendArgs(srv, "cases", "get", "LIM-2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "URGENTE RESOLVER EN EL DIA")

	_, _, err = execute(t, "", backendArgs(srv, "cases", "get", "MISSING")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCasesCmd_RequiresBackendURL(t *testing.T) {
	t.Setenv("BACKEND_URL", "")

	_, _, err := execute(t, "", "cases", "list", "--tz", "America/Lima", "--sort", "diff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_URL")
}
