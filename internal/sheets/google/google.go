package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"chronoly/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is used when GOOGLE_SHEET_NAME is empty.
const DefaultSheetName = "Weekly Totals"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ sheets.TotalsExporter = (*Client)(nil)

// Config selects the spreadsheet and how to authenticate.
type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}

	if len(opts) == 0 {
		creds, err := credentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets exporter ready", "sheet", cfg.SheetName)

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetName: cfg.SheetName}, nil
}

func credentials(ctx context.Context, cfg Config) ([]byte, error) {
	switch {
	case cfg.CredentialsJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportWeek writes one row per project for the report's week:
// week start, project, hours, rate, earnings, exported at.
// Rows already on the sheet for that week are replaced in place; other weeks are kept.
func (c *Client) ExportWeek(ctx context.Context, report sheets.WeekReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := sheetRange(c.sheetName, "A:F")

	cur, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	values, replaced := mergeWeek(cur.Values, report)
	if replaced == 0 && len(values) == len(cur.Values) {
		// nothing for this week on the sheet and nothing to add
		return nil
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	if len(values) > 0 {
		vr := &gsheet.ValueRange{Values: values}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, sheetRange(c.sheetName, "A1"), vr).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("write %s: %w", rng, err)
		}
	}

	slog.InfoContext(ctx, "Exported weekly totals",
		"week_start", report.WeekStart.Format("2006-01-02"),
		"rows", len(report.Rows),
		"replaced", replaced)
	return nil
}

// mergeWeek drops the rows of the report's week from existing and puts the report's
// rows where the first of them was, or at the end. It returns the merged rows and how
// many were dropped.
func mergeWeek(existing [][]any, r sheets.WeekReport) ([][]any, int) {
	week := r.WeekStart.Format("2006-01-02")
	fresh := reportRows(r)

	out := make([][]any, 0, len(existing)+len(fresh))
	at, dropped := -1, 0
	for _, row := range existing {
		if len(row) > 0 && fmt.Sprint(row[0]) == week {
			if at < 0 {
				at = len(out)
			}
			dropped++
			continue
		}
		out = append(out, row)
	}
	if at < 0 {
		return append(out, fresh...), dropped
	}
	merged := make([][]any, 0, len(out)+len(fresh))
	merged = append(merged, out[:at]...)
	merged = append(merged, fresh...)
	return append(merged, out[at:]...), dropped
}

func reportRows(r sheets.WeekReport) [][]any {
	week := r.WeekStart.Format("2006-01-02")
	exported := r.GeneratedAt.UTC().Format(time.RFC3339)
	out := make([][]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		name := row.ProjectName
		if name == "" {
			name = row.ProjectID
		}
		out = append(out, []any{week, name, row.Hours, row.Rate, row.Earnings, exported})
	}
	return out
}

// sheetRange quotes the sheet name as A1 notation requires when it has spaces.
func sheetRange(sheet, cells string) string {
	if strings.ContainsAny(sheet, " '!") {
		return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
	}
	return sheet + "!" + cells
}
