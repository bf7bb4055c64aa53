// Package worker turns change events into spreadsheet exports of the affected week.
package worker

import (
	"context"
	"fmt"
	"time"

	"chronoly/internal/amqp"
	"chronoly/internal/log"
	"chronoly/internal/services"
	"chronoly/internal/sheets"
)

// TotalsSource computes a week's dashboard. *services.TrackerService satisfies it.
type TotalsSource interface {
	Dashboard(ctx context.Context, ref time.Time) (services.Dashboard, error)
}

// ExportWorker recomputes and exports weekly totals.
type ExportWorker struct {
	source   TotalsSource
	exporter sheets.TotalsExporter
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
}

func NewExportWorker(source TotalsSource, exporter sheets.TotalsExporter, loc *time.Location, logger *log.Logger) *ExportWorker {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportWorker{
		source:   source,
		exporter: exporter,
		loc:      loc,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Handle exports the week touched by msg. Time entry events name their start time;
// project events and entries whose time is unknown refresh the current week.
func (w *ExportWorker) Handle(ctx context.Context, msg *amqp.ChangeMessage) error {
	ref := w.now()
	if msg.StartTime != nil {
		ref = *msg.StartTime
	}
	w.logger.InfoContext(ctx, "Processing change message",
		"entity", msg.Entity,
		"action", msg.Action,
		"id", msg.ID)
	return w.ExportWeek(ctx, ref)
}

// ExportWeek exports the totals of the week containing ref.
func (w *ExportWorker) ExportWeek(ctx context.Context, ref time.Time) error {
	d, err := w.source.Dashboard(ctx, ref.In(w.loc))
	if err != nil {
		return fmt.Errorf("compute weekly totals: %w", err)
	}

	report := sheets.BuildWeekReport(d.Projects, d.Totals, d.WeekStart, w.now())
	if err := w.exporter.ExportWeek(ctx, report); err != nil {
		return fmt.Errorf("export week %s: %w", d.WeekStart.Format("2006-01-02"), err)
	}

	w.logger.InfoContext(ctx, "Weekly totals exported",
		log.FieldWeekStart, d.WeekStart.Format("2006-01-02"),
		"projects", len(report.Rows),
		"hours", report.TotalHours())
	return nil
}
