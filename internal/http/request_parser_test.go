package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"chronoly/internal/core"
)

var rome = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}()

func TestParseWeekParam(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   url.Values
		want    time.Time
		wantErr bool
	}{
		{
			name:  "absent uses now",
			query: url.Values{},
			want:  now,
		},
		{
			name:  "date in location",
			query: url.Values{"date": {"2024-03-04"}},
			want:  time.Date(2024, 3, 4, 0, 0, 0, 0, rome),
		},
		{
			name:    "garbage",
			query:   url.Values{"date": {"last week"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWeekParam(tt.query, now, rome)
			if tt.wantErr {
				if core.KindOf(err) != core.KindInvalidValue {
					t.Errorf("KindOf(err) = %q, want InvalidValue", core.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseWeekParam() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseProjectForm(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		wantRate *float64
		wantKind core.Kind
	}{
		{
			name:     "plain rate",
			form:     url.Values{"name": {" Website "}, "hourlyRate": {"50"}, "color": {"#fff"}},
			wantRate: core.Float64(50),
		},
		{
			name:     "comma decimal",
			form:     url.Values{"name": {"x"}, "hourlyRate": {"12,5"}, "color": {"red"}},
			wantRate: core.Float64(12.5),
		},
		{
			name: "blank rate is absent",
			form: url.Values{"name": {"x"}, "color": {"red"}},
		},
		{
			name:     "not a number",
			form:     url.Values{"name": {"x"}, "hourlyRate": {"lots"}},
			wantKind: core.KindInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseProjectForm(tt.form)
			if tt.wantKind != "" {
				if core.KindOf(err) != tt.wantKind {
					t.Errorf("KindOf(err) = %q, want %q", core.KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in.Name != strings.TrimSpace(tt.form.Get("name")) {
				t.Errorf("Name = %q", in.Name)
			}
			switch {
			case tt.wantRate == nil && in.HourlyRate != nil:
				t.Errorf("HourlyRate = %v, want nil", *in.HourlyRate)
			case tt.wantRate != nil && (in.HourlyRate == nil || *in.HourlyRate != *tt.wantRate):
				t.Errorf("HourlyRate = %v, want %v", in.HourlyRate, *tt.wantRate)
			}
		})
	}
}

func TestParseEntryForm(t *testing.T) {
	form := url.Values{
		"projectId":   {"p1"},
		"startTime":   {"2024-03-04T09:00"},
		"endTime":     {"2024-03-04T12:30"},
		"description": {"  design\x00 review "},
		"isAutomatic": {"on"},
	}

	in, err := ParseEntryForm(form, rome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in.StartTime.Equal(time.Date(2024, 3, 4, 9, 0, 0, 0, rome)) {
		t.Errorf("StartTime = %v", in.StartTime)
	}
	if in.EndTime.Sub(in.StartTime) != 3*time.Hour+30*time.Minute {
		t.Errorf("span = %v", in.EndTime.Sub(in.StartTime))
	}
	if in.Description != "design review" {
		t.Errorf("Description = %q", in.Description)
	}
	if !in.IsAutomatic {
		t.Error("IsAutomatic should be true")
	}

	form.Set("endTime", "tomorrow")
	_, err = ParseEntryForm(form, rome)
	if got := core.FieldsOf(err); len(got) != 1 || got[0] != "endTime" {
		t.Errorf("FieldsOf(err) = %v, want [endTime]", got)
	}
}

func TestDecodeProjectJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantRate float64
		wantKind core.Kind
	}{
		{name: "number", body: `{"name":"a","hourlyRate":42.5,"color":"red"}`, wantRate: 42.5},
		{name: "string", body: `{"name":"a","hourlyRate":"42","color":"red"}`, wantRate: 42},
		{name: "malformed", body: `{"name":`, wantKind: core.KindInvalidValue},
		{name: "bad string", body: `{"name":"a","hourlyRate":"abc"}`, wantKind: core.KindInvalidValue},
		{name: "bool", body: `{"name":"a","hourlyRate":true}`, wantKind: core.KindInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(tt.body))
			in, err := DecodeProjectJSON(r)
			if tt.wantKind != "" {
				if core.KindOf(err) != tt.wantKind {
					t.Errorf("KindOf(err) = %q, want %q", core.KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in.HourlyRate == nil || *in.HourlyRate != tt.wantRate {
				t.Errorf("HourlyRate = %v, want %v", in.HourlyRate, tt.wantRate)
			}
		})
	}
}

func TestDecodeEntryJSON(t *testing.T) {
	body := `{"projectId":"p1","startTime":"2024-03-04T09:00:00Z","endTime":"2024-03-04T10:00:00Z"}`
	r := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(body))

	in, err := DecodeEntryJSON(r, rome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.ProjectID != "p1" || in.EndTime.Sub(in.StartTime) != time.Hour {
		t.Errorf("unexpected input: %+v", in)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  padded  ":        "padded",
		"bell\x07 removed":  "bell removed",
		"keeps\ttab":        "keeps\ttab",
		"line\nbreak":       "line\nbreak",
		"\x1b[31mred\x1b[0m": "[31mred[0m",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIDParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "/api/projects?id=q1", nil)
	if got := idParam(r, ""); got != "q1" {
		t.Errorf("idParam from query = %q", got)
	}
	if got := idParam(r, "p1"); got != "p1" {
		t.Errorf("idParam from path = %q", got)
	}
}
