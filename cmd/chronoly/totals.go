package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/markusmobius/go-dateparser"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"chronoly/internal/cli"
	"chronoly/internal/core"
	"chronoly/internal/services"
)

func newTotalsCmd(a *app) *cobra.Command {
	var (
		week   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print the weekly totals per project",
		Example: `  chronoly totals
  chronoly totals --week "last monday"
  chronoly totals --week 2024-03-04 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			ref, err := parseWeekRef(week, time.Now(), loc)
			if err != nil {
				return err
			}

			res, _, err := cli.OpenBackend(ctx, a.logger, a.cfg)
			if err != nil {
				return err
			}
			defer res.Cleanup()

			d, err := services.NewTrackerService(res.Store, services.WithLogger(a.logger)).Dashboard(ctx, ref)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeTotalsJSON(out, d)
			}
			renderTotals(out, d, loc, colorEnabled(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&week, "week", "w", "", `Any day of the week to show, e.g. "last monday" or 2024-03-04`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// parseWeekRef resolves a natural language date relative to now. Empty means now.
func parseWeekRef(input string, now time.Time, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	now = now.In(loc)
	if input == "" || strings.EqualFold(input, "now") || strings.EqualFold(input, "this week") {
		return now, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", input, loc); err == nil {
		return t, nil
	}
	if strings.EqualFold(input, "last week") {
		return now.AddDate(0, 0, -7), nil
	}

	d, err := dateparser.Parse(&dateparser.Configuration{CurrentTime: now}, input)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse week %q: %w", input, err)
	}
	return d.Time.In(loc), nil
}

func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type totalsJSON struct {
	WeekStart     time.Time          `json:"weekStart"`
	WeekEnd       time.Time          `json:"weekEnd"`
	Totals        []core.WeeklyTotal `json:"totals"`
	TotalHours    float64            `json:"totalHours"`
	TotalEarnings float64            `json:"totalEarnings"`
}

func writeTotalsJSON(w io.Writer, d services.Dashboard) error {
	totals := d.Totals
	if totals == nil {
		totals = []core.WeeklyTotal{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(totalsJSON{
		WeekStart:     d.WeekStart,
		WeekEnd:       d.WeekEnd,
		Totals:        totals,
		TotalHours:    d.TotalHours,
		TotalEarnings: d.TotalEarnings,
	})
}

var (
	colorTitle  = lipgloss.Color("#3B82F6")
	colorMuted  = lipgloss.Color("#6B7280")
	colorBorder = lipgloss.Color("#4B5563")
)

func renderTotals(w io.Writer, d services.Dashboard, loc *time.Location, color bool) {
	title := lipgloss.NewStyle().Bold(true)
	muted := lipgloss.NewStyle()
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	border := lipgloss.NewStyle()
	if color {
		title = title.Foreground(colorTitle)
		muted = muted.Foreground(colorMuted)
		border = border.Foreground(colorBorder)
	}

	start := d.WeekStart.In(loc)
	fmt.Fprintln(w, title.Render(fmt.Sprintf("Week of %s", start.Format("Mon 2 Jan 2006"))))

	if len(d.Totals) == 0 {
		fmt.Fprintln(w, muted.Render("No projects yet."))
		return
	}

	index := core.ProjectIndex(d.Projects)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(border).
		Headers("Project", "Rate", "Hours", "Earnings").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cell
			if row == table.HeaderRow {
				s = header
			}
			if col >= 2 {
				s = s.Align(lipgloss.Right)
			}
			return s
		})
	for _, tot := range d.Totals {
		p := index[tot.ProjectID]
		t.Row(p.Name, core.FormatCurrency(p.HourlyRate)+"/h", core.FormatDuration(tot.TotalHours), core.FormatCurrency(tot.TotalEarnings))
	}
	t.Row("Total", "", core.FormatDuration(d.TotalHours), core.FormatCurrency(d.TotalEarnings))

	fmt.Fprintln(w, t.String())
}
