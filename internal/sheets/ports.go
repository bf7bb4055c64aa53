// Package sheets defines the outbound port for exporting weekly totals to a
// spreadsheet, plus the report shape shared by its adapters.
package sheets

import (
	"context"
	"time"

	"chronoly/internal/core"
)

// Ports for outbound adapters.
type (
	// TotalsExporter writes one week of totals somewhere a human can read them.
	TotalsExporter interface {
		ExportWeek(ctx context.Context, report WeekReport) error
	}
)

// WeekRow is one project's line in a weekly report.
type WeekRow struct {
	ProjectID   string
	ProjectName string
	Hours       float64
	Rate        float64
	Earnings    float64
}

// WeekReport is the export unit: every project's totals for one week.
type WeekReport struct {
	WeekStart   time.Time
	Rows        []WeekRow
	GeneratedAt time.Time
}

// TotalHours sums the hours of every row.
func (r WeekReport) TotalHours() float64 {
	var h float64
	for _, row := range r.Rows {
		h += row.Hours
	}
	return h
}

// TotalEarnings sums the earnings of every row.
func (r WeekReport) TotalEarnings() float64 {
	var e float64
	for _, row := range r.Rows {
		e += row.Earnings
	}
	return e
}

// BuildWeekReport joins totals with project names and rates. Totals whose project
// is missing from projects are kept with an empty name.
func BuildWeekReport(projects []core.Project, totals []core.WeeklyTotal, weekStart, now time.Time) WeekReport {
	idx := core.ProjectIndex(projects)
	rows := make([]WeekRow, 0, len(totals))
	for _, t := range totals {
		p := idx[t.ProjectID]
		rows = append(rows, WeekRow{
			ProjectID:   t.ProjectID,
			ProjectName: p.Name,
			Hours:       t.TotalHours,
			Rate:        p.HourlyRate,
			Earnings:    t.TotalEarnings,
		})
	}
	return WeekReport{WeekStart: weekStart, Rows: rows, GeneratedAt: now}
}
