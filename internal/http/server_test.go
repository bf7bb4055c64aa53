package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoly/internal/auth"
	"chronoly/internal/core"
	"chronoly/internal/log"
	"chronoly/internal/services"
	"chronoly/internal/store/memory"
)

const testPassword = "s3cret"

var testNow = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

type testServer struct {
	*Server
	store *memory.Store
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.New()
	tracker := services.NewTrackerService(st,
		services.WithLogger(log.Discard()),
		services.WithClock(func() time.Time { return testNow }))
	gate, err := auth.NewGate(testPassword, "", false, log.Discard())
	require.NoError(t, err)

	s := NewServer(":0", Deps{
		Tracker:            tracker,
		Gate:               gate,
		Location:           time.UTC,
		Logger:             log.Discard(),
		RateLimitPerMinute: 1000,
		LoginPerMinute:     1000,
	})
	s.now = func() time.Time { return testNow }
	t.Cleanup(func() { s.limiter.Stop() })
	require.NotNil(t, s.templates, "templates must parse")

	token, err := gate.Login(testPassword)
	require.NoError(t, err)
	return &testServer{Server: s, store: st, token: token}
}

func (ts *testServer) do(t *testing.T, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("User-Agent", "Mozilla/5.0 (test)")
	switch {
	case strings.HasPrefix(body, "{"):
		r.Header.Set("Content-Type", "application/json")
	case body != "":
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if authed {
		r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: ts.token})
	}
	w := httptest.NewRecorder()
	ts.Handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestOperationalEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))

	w = ts.do(t, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusSeeOther, w.Code, "metrics sit behind the gate")

	w = ts.do(t, http.MethodGet, "/metrics", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chronoly_http_requests_total")

	w = ts.do(t, http.MethodGet, "/static/app.css", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGate(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/", "", false)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = ts.do(t, http.MethodGet, "/api/projects", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/login", "", true)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = ts.do(t, http.MethodGet, "/", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store, max-age=0", w.Header().Get("Cache-Control"))
}

func TestLoginForm(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/login", url.Values{"password": {"nope"}}.Encode(), false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid password")
	assert.EqualValues(t, 1, ts.metrics.loginFailures.Load())

	w = ts.do(t, http.MethodPost, "/login", url.Values{"password": {testPassword}}.Encode(), false)
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	w = ts.do(t, http.MethodPost, "/logout", "", true)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	require.Len(t, w.Result().Cookies(), 1)
	assert.Negative(t, w.Result().Cookies()[0].MaxAge)
}

func TestAPIAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/auth", `{"password":"wrong"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid password", decode[apiError](t, w).Error)

	w = ts.do(t, http.MethodPost, "/api/auth", `{"password":"`+testPassword+`"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"success": true}, decode[map[string]bool](t, w))
	assert.NotEmpty(t, w.Result().Cookies())

	w = ts.do(t, http.MethodDelete, "/api/auth", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIProjectsAndEntries(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/projects", `{"name":"Website","hourlyRate":50,"color":"#3b82f6"}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[core.Project](t, w)
	assert.Equal(t, "Website", p.Name)

	w = ts.do(t, http.MethodPost, "/api/projects", `{"name":"Free","hourlyRate":0,"color":"red"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(core.KindInvalidValue), decode[apiError](t, w).Kind)

	w = ts.do(t, http.MethodPost, "/api/projects", `{"hourlyRate":10}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"name", "color"}, decode[apiError](t, w).MissingFields)

	w = ts.do(t, http.MethodPost, "/api/projects", `{"name":`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/entries",
		`{"projectId":"`+p.ID+`","startTime":"2024-03-04T09:00:00Z","endTime":"2024-03-04T12:00:00Z"}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	e := decode[core.TimeEntry](t, w)

	w = ts.do(t, http.MethodPost, "/api/entries",
		`{"projectId":"ghost","startTime":"2024-03-04T09:00:00Z","endTime":"2024-03-04T12:00:00Z"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(core.KindReferenceNotFound), decode[apiError](t, w).Kind)

	w = ts.do(t, http.MethodGet, "/api/totals?date=2024-03-06", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	totals := decode[totalsResponse](t, w)
	require.Len(t, totals.Totals, 1)
	assert.Equal(t, 3.0, totals.TotalHours)
	assert.Equal(t, 150.0, totals.TotalEarnings)
	assert.True(t, totals.WeekStart.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))

	w = ts.do(t, http.MethodGet, "/api/totals?date=tuesday", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/entries", "", true)
	assert.Len(t, decode[[]core.TimeEntry](t, w), 1)

	w = ts.do(t, http.MethodDelete, "/api/projects?id="+p.ID, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	del := decode[deleteResponse](t, w)
	assert.True(t, del.Success)
	require.NotNil(t, del.RemovedEntries)
	assert.Equal(t, 1, *del.RemovedEntries)

	w = ts.do(t, http.MethodDelete, "/api/entries/"+e.ID, "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/projects/"+p.ID, "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/projects", "", true)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestPageForms(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/projects", url.Values{"name": {"Website"}, "hourlyRate": {"0"}, "color": {"red"}}.Encode(), true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Website", "form keeps the submitted values")

	w = ts.do(t, http.MethodPost, "/projects", url.Values{"name": {"Website"}, "hourlyRate": {"50"}, "color": {"#3b82f6"}}.Encode(), true)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/projects", w.Header().Get("Location"))

	ps, err := ts.store.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)

	w = ts.do(t, http.MethodPost, "/entries", url.Values{
		"projectId": {ps[0].ID},
		"startTime": {"2024-03-05T10:00"},
		"endTime":   {"2024-03-05T09:00"},
	}.Encode(), true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodPost, "/entries", url.Values{
		"projectId":   {ps[0].ID},
		"startTime":   {"2024-03-05T09:00"},
		"endTime":     {"2024-03-05T11:00"},
		"description": {"Landing page"},
	}.Encode(), true)
	require.Equal(t, http.StatusSeeOther, w.Code)

	for _, path := range []string{"/", "/projects", "/projects/new", "/entries", "/entries/new"} {
		w = ts.do(t, http.MethodGet, path, "", true)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	w = ts.do(t, http.MethodGet, "/", "", true)
	assert.Contains(t, w.Body.String(), "Landing page")
	assert.Contains(t, w.Body.String(), "Website")

	es, err := ts.store.ListTimeEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, es, 1)

	w = ts.do(t, http.MethodPost, "/entries/"+es[0].ID+"/delete", url.Values{"next": {"/"}}.Encode(), true)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	// a second delete of the same id still lands back on the list
	w = ts.do(t, http.MethodPost, "/projects/"+ps[0].ID+"/delete", "", true)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	w = ts.do(t, http.MethodPost, "/projects/"+ps[0].ID+"/delete", "", true)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/projects", w.Header().Get("Location"))
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/nowhere", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")

	w = ts.do(t, http.MethodGet, "/api/nowhere", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(core.KindNotFound), decode[apiError](t, w).Kind)
}

func TestBadDateQueryOnDashboard(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/?date=soon", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
