package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/debounce"
	"budget/internal/reconcile"
	"budget/internal/services"
	"budget/internal/session"
	"budget/internal/store/memory"
)

var testNow = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *services.Manager) {
	t.Helper()
	clock := debounce.NewFakeClock(testNow)
	engine := reconcile.NewEngine(memory.New(), nil, nil)
	mgr := services.NewManager(engine, session.Config{Clock: clock, Locale: core.PtBR}, nil)
	t.Cleanup(func() { mgr.CloseAll() })

	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	opts.Locale = core.PtBR
	srv := NewServer(":0", mgr, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, mgr
}

func do(t *testing.T, srv *Server, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func cents(t *testing.T, v any) int64 {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected amount object, got %v", v)
	return int64(m["cents"].(float64))
}

func openSession(t *testing.T, srv *Server, user string) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/session", user, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := do(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, srv, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down, _ := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	rec = do(t, down, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthentication(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/months", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], HeaderUserID)

	rec = do(t, srv, http.MethodGet, "/api/months", "alice", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no session opened yet")

	rec = do(t, srv, http.MethodGet, "/api/months", "bad/user", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, sec := srv.Stats()
	assert.Equal(t, int64(2), sec.Unauthenticated)
}

func TestMonthLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	openSession(t, srv, "alice")

	rec := do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-03"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	month := decode(t, rec)
	assert.Equal(t, "2025-03", month["id"])
	assert.Equal(t, false, month["closed"])
	assert.Empty(t, month["expenses"])

	rec = do(t, srv, http.MethodPut, "/api/months/2025-03/salaries", "alice", `{"salary1":"1.000,00","salary2":"500"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	month = decode(t, rec)
	assert.Equal(t, int64(100000), cents(t, month["salary1"]))
	assert.Equal(t, int64(50000), cents(t, month["salary2"]))

	rec = do(t, srv, http.MethodPost, "/api/months/2025-03/expenses", "alice",
		`{"name":"Aluguel","value":"R$ 250,50","category":"Casa","date":"2025-03-05","type":"fixed"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	expense := decode(t, rec)
	expenseID := expense["id"].(string)
	assert.NotEmpty(t, expenseID)
	assert.Equal(t, int64(25050), cents(t, expense["value"]))
	assert.Equal(t, "R$ 250,50", expense["value"].(map[string]any)["formatted"])

	rec = do(t, srv, http.MethodGet, "/api/months/2025-03", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	totals := decode(t, rec)["totals"].(map[string]any)
	assert.Equal(t, int64(150000), cents(t, totals["income"]))
	assert.Equal(t, int64(25050), cents(t, totals["fixed"]))
	assert.Equal(t, int64(124950), cents(t, totals["balance"]))

	rec = do(t, srv, http.MethodPut, "/api/months/2025-03/expenses/"+expenseID, "alice",
		`{"name":"Aluguel","value":"300","category":"Casa","date":"2025-03-05","type":"fixed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(30000), cents(t, decode(t, rec)["value"]))

	rec = do(t, srv, http.MethodGet, "/api/savings", "alice", "")
	assert.Equal(t, int64(0), cents(t, decode(t, rec)["accumulated"]), "open months do not count")

	rec = do(t, srv, http.MethodPost, "/api/months/2025-03/close", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["closed"])

	rec = do(t, srv, http.MethodGet, "/api/savings", "alice", "")
	savings := decode(t, rec)
	assert.Equal(t, int64(120000), cents(t, savings["accumulated"]))
	assert.Equal(t, float64(1), savings["closed_months"])

	rec = do(t, srv, http.MethodDelete, "/api/months/2025-03/expenses/"+expenseID, "alice", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "closed months reject edits")

	rec = do(t, srv, http.MethodGet, "/api/months", "alice", "")
	months := decode(t, rec)["months"].([]any)
	require.Len(t, months, 1)
	assert.Equal(t, "2025-03", months[0].(map[string]any)["id"])

	rec = do(t, srv, http.MethodDelete, "/api/months/2025-03", "alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/months/2025-03", "alice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMonthDefaultsToCurrentMonth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	openSession(t, srv, "alice")

	rec := do(t, srv, http.MethodPost, "/api/months", "alice", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2025-03", decode(t, rec)["id"])

	rec = do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-03"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	openSession(t, srv, "alice")
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-03"}`).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/months/2025-03/expenses", `{"name":`, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/api/months/2025-03/salaries", `{"salary3":"1"}`, http.StatusBadRequest},
		{"bad amount", http.MethodPut, "/api/months/2025-03/salaries", `{"salary1":"abc"}`, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "/api/months/2025-03/expenses",
			`{"name":"x","value":"-1","date":"2025-03-01","type":"fixed"}`, http.StatusUnprocessableEntity},
		{"missing name", http.MethodPost, "/api/months/2025-03/expenses",
			`{"value":"1","date":"2025-03-01","type":"fixed"}`, http.StatusUnprocessableEntity},
		{"bad type", http.MethodPost, "/api/months/2025-03/expenses",
			`{"name":"x","value":"1","date":"2025-03-01","type":"weekly"}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/months/2025-03/expenses",
			`{"name":"x","value":"1","date":"05/03/2025","type":"fixed"}`, http.StatusUnprocessableEntity},
		{"missing date", http.MethodPost, "/api/months/2025-03/expenses",
			`{"name":"x","value":"1","type":"fixed"}`, http.StatusUnprocessableEntity},
		{"bad month id", http.MethodPost, "/api/months", `{"month":"2025-13"}`, http.StatusUnprocessableEntity},
		{"unknown month", http.MethodGet, "/api/months/2020-01", "", http.StatusNotFound},
		{"unknown expense", http.MethodDelete, "/api/months/2025-03/expenses/nope", "", http.StatusNotFound},
		{"expense id mismatch", http.MethodPut, "/api/months/2025-03/expenses/a",
			`{"id":"b","name":"x","value":"1","date":"2025-03-01","type":"fixed"}`, http.StatusUnprocessableEntity},
		{"import without previous month", http.MethodPost, "/api/months/2025-03/import-fixed", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, "alice", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestImportFixed(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	openSession(t, srv, "alice")

	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-02"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/months/2025-02/expenses", "alice",
		`{"name":"Internet","value":"99,90","category":"Casa","date":"2025-02-10","type":"fixed"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/months/2025-02/expenses", "alice",
		`{"name":"Cinema","value":"40","category":"Lazer","date":"2025-02-11","type":"variable"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-03"}`).Code)

	rec := do(t, srv, http.MethodPost, "/api/months/2025-03/import-fixed", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["imported"])
	expenses := body["month"].(map[string]any)["expenses"].([]any)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Internet", expenses[0].(map[string]any)["name"])

	rec = do(t, srv, http.MethodPost, "/api/months/2025-03/import-fixed", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["imported"], "second import adds nothing")
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	openSession(t, srv, "alice")
	openSession(t, srv, "bob")

	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-03"}`).Code)
	rec := do(t, srv, http.MethodGet, "/api/months/2025-03", "bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/session", "bob", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/months", "bob", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, srv, http.MethodDelete, "/api/session", "bob", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusReportsSaveState(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	openSession(t, srv, "alice")
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-03"}`).Code)

	rec := do(t, srv, http.MethodGet, "/api/status", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "idle", body["save"].(map[string]any)["state"])
	assert.Contains(t, body["months"].(map[string]any), "2025-03")
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimit: 2})
	openSession(t, srv, "alice")

	rec := do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-01"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/months", "alice", `{"month":"2025-02"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = do(t, srv, http.MethodGet, "/api/months", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")

	_, sec := srv.Stats()
	assert.Equal(t, int64(1), sec.RateLimitHits)
}
