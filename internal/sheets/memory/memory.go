// Package memory keeps exported weekly reports in process, for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chronoly/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	reports map[string]sheets.WeekReport
	exports int
}

var _ sheets.TotalsExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{reports: make(map[string]sheets.WeekReport)}
}

func weekKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ExportWeek replaces the stored report for the report's week.
func (e *Exporter) ExportWeek(ctx context.Context, r sheets.WeekReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r.Rows = append([]sheets.WeekRow(nil), r.Rows...)
	e.reports[weekKey(r.WeekStart)] = r
	e.exports++
	return nil
}

// Report returns the last report exported for the week starting at weekStart.
func (e *Exporter) Report(weekStart time.Time) (sheets.WeekReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.reports[weekKey(weekStart)]
	return r, ok
}

// Weeks lists the exported week starts in ascending order.
func (e *Exporter) Weeks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.reports))
	for k := range e.reports {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Exports counts calls to ExportWeek.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
