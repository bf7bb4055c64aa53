package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"chronoly/internal/sheets"
)

var week = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

func report() sheets.WeekReport {
	return sheets.WeekReport{
		WeekStart:   week,
		GeneratedAt: week.Add(36 * time.Hour),
		Rows: []sheets.WeekRow{
			{ProjectID: "p1", ProjectName: "Website", Hours: 3, Rate: 50, Earnings: 150},
			{ProjectID: "p2", Hours: 0, Rate: 0, Earnings: 0},
		},
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestReportRows(t *testing.T) {
	rows := reportRows(report())
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"2024-01-08", "Website", 3.0, 50.0, 150.0, "2024-01-09T12:00:00Z"}, rows[0])
	assert.Equal(t, "p2", rows[1][1], "falls back to the id when the name is unknown")
}

func TestSheetRange(t *testing.T) {
	assert.Equal(t, "Totals!A:F", sheetRange("Totals", "A:F"))
	assert.Equal(t, "'Weekly Totals'!A:F", sheetRange("Weekly Totals", "A:F"))
	assert.Equal(t, "'Bob''s'!A:F", sheetRange("Bob's", "A:F"))
}

func TestExportWeek_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "id", sheetName: "x"}
	assert.Error(t, c.ExportWeek(context.Background(), report()))
}

// fakeSheet serves the values get, clear and update calls on one range.
type fakeSheet struct {
	mu      sync.Mutex
	values  [][]any
	paths   []string
	methods []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	f.methods = append(f.methods, r.Method)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.values})
		return
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		f.values = nil
	case r.Method == http.MethodPut:
		var body struct {
			Values [][]any `json:"values"`
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		f.values = body.Values
	default:
		w.WriteHeader(http.StatusNotFound)
	}
	_, _ = w.Write([]byte(`{}`))
}

func newFakeClient(t *testing.T, sheet *fakeSheet) *Client {
	t.Helper()
	srv := httptest.NewServer(sheet)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(),
		Config{SpreadsheetID: "sheet-123"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestExportWeek_WritesRows(t *testing.T) {
	sheet := &fakeSheet{}
	c := newFakeClient(t, sheet)

	require.NoError(t, c.ExportWeek(context.Background(), report()))

	require.NotEmpty(t, sheet.paths)
	assert.Contains(t, sheet.paths[0], "sheet-123")
	assert.Equal(t, []string{http.MethodGet, http.MethodPost, http.MethodPut}, sheet.methods)
	require.Len(t, sheet.values, 2)
	assert.Equal(t, "Website", sheet.values[0][1])
}

func TestExportWeek_SameWeekTwiceKeepsOneSet(t *testing.T) {
	sheet := &fakeSheet{values: [][]any{
		{"2024-01-01", "Website", 1.0, 50.0, 50.0, "2024-01-02T00:00:00Z"},
	}}
	c := newFakeClient(t, sheet)
	ctx := context.Background()

	require.NoError(t, c.ExportWeek(ctx, report()))
	again := report()
	again.GeneratedAt = again.GeneratedAt.Add(time.Hour)
	again.Rows[0].Hours, again.Rows[0].Earnings = 4, 200
	require.NoError(t, c.ExportWeek(ctx, again))

	require.Len(t, sheet.values, 3)
	assert.Equal(t, "2024-01-01", sheet.values[0][0], "other weeks are kept")
	assert.Equal(t, []any{"2024-01-08", "Website", 4.0, 50.0, 200.0, "2024-01-09T13:00:00Z"}, sheet.values[1])
	assert.Equal(t, "p2", sheet.values[2][1])
}

func TestMergeWeek(t *testing.T) {
	existing := [][]any{
		{"2024-01-01", "a"},
		{"2024-01-08", "old"},
		{"2024-01-08", "older"},
		{"2024-01-15", "b"},
		{},
	}

	got, dropped := mergeWeek(existing, report())
	assert.Equal(t, 2, dropped)
	require.Len(t, got, 5)
	assert.Equal(t, "a", got[0][1])
	assert.Equal(t, "Website", got[1][1], "replacement rows take the old position")
	assert.Equal(t, "p2", got[2][1])
	assert.Equal(t, "b", got[3][1])

	empty := report()
	empty.Rows = nil
	got, dropped = mergeWeek(existing, empty)
	assert.Equal(t, 2, dropped)
	assert.Len(t, got, 3)
}
