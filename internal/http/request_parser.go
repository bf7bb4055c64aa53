// This file turns form values and JSON bodies into validated-ready core inputs.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chronoly/internal/core"
)

const (
	maxBodyBytes = 1 << 20

	dateLayout          = "2006-01-02"
	datetimeLocalLayout = "2006-01-02T15:04"
)

// errMalformedBody reports a request body that could not be decoded.
var errMalformedBody = &core.Error{Err: core.ErrInvalidValue, Message: "malformed request body"}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseWeekParam returns the reference time named by the "date" query parameter
// (YYYY-MM-DD in loc), or now when it is absent.
func ParseWeekParam(query url.Values, now time.Time, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(query.Get("date"))
	if v == "" {
		return now.In(loc), nil
	}
	t, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return time.Time{}, core.InvalidValue("date", "date must be formatted YYYY-MM-DD")
	}
	return t, nil
}

// parseTimestamp accepts RFC 3339 or an HTML datetime-local value interpreted in loc.
// An empty string yields the zero time, which validation reports as missing.
func parseTimestamp(field, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{datetimeLocalLayout, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, core.InvalidValue(field, fmt.Sprintf("%s must be a date and time", field))
}

// parseRateField reads an hourly rate. Blank means absent.
func parseRateField(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	rate, err := core.ParseRate(s)
	if err != nil {
		return nil, core.InvalidValue("hourlyRate", "hourly rate must be a positive number")
	}
	return &rate, nil
}

// ParseProjectForm reads the new-project form.
func ParseProjectForm(form url.Values) (core.ProjectInput, error) {
	in := core.ProjectInput{
		Name:  sanitizeInput(form.Get("name")),
		Color: sanitizeInput(form.Get("color")),
	}
	rate, err := parseRateField(form.Get("hourlyRate"))
	if err != nil {
		return in, err
	}
	in.HourlyRate = rate
	return in, nil
}

// ParseEntryForm reads the new-entry form. Times are datetime-local values in loc.
func ParseEntryForm(form url.Values, loc *time.Location) (core.TimeEntryInput, error) {
	in := core.TimeEntryInput{
		ProjectID:   sanitizeInput(form.Get("projectId")),
		Description: sanitizeInput(form.Get("description")),
		IsAutomatic: formBool(form.Get("isAutomatic")),
	}
	var err error
	if in.StartTime, err = parseTimestamp("startTime", form.Get("startTime"), loc); err != nil {
		return in, err
	}
	if in.EndTime, err = parseTimestamp("endTime", form.Get("endTime"), loc); err != nil {
		return in, err
	}
	return in, nil
}

func formBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return strings.EqualFold(strings.TrimSpace(v), "on")
	}
	return b
}

// decodeJSON reads at most maxBodyBytes of JSON into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errMalformedBody
	}
	return nil
}

// projectRequest is the JSON body of POST /api/projects.
type projectRequest struct {
	Name       string          `json:"name"`
	HourlyRate json.RawMessage `json:"hourlyRate"`
	Color      string          `json:"color"`
}

// DecodeProjectJSON reads a project from a JSON body. The rate may be a number or
// a numeric string.
func DecodeProjectJSON(r *http.Request) (core.ProjectInput, error) {
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		return core.ProjectInput{}, err
	}
	in := core.ProjectInput{
		Name:  sanitizeInput(req.Name),
		Color: sanitizeInput(req.Color),
	}

	raw := strings.TrimSpace(string(req.HourlyRate))
	switch {
	case raw == "" || raw == "null":
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(req.HourlyRate, &s); err != nil {
			return in, errMalformedBody
		}
		rate, err := parseRateField(s)
		if err != nil {
			return in, err
		}
		in.HourlyRate = rate
	default:
		var f float64
		if err := json.Unmarshal(req.HourlyRate, &f); err != nil {
			return in, core.InvalidValue("hourlyRate", "hourly rate must be a positive number")
		}
		in.HourlyRate = &f
	}
	return in, nil
}

// entryRequest is the JSON body of POST /api/entries.
type entryRequest struct {
	ProjectID   string `json:"projectId"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description"`
	IsAutomatic bool   `json:"isAutomatic"`
}

// DecodeEntryJSON reads a time entry from a JSON body.
func DecodeEntryJSON(r *http.Request, loc *time.Location) (core.TimeEntryInput, error) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		return core.TimeEntryInput{}, err
	}
	in := core.TimeEntryInput{
		ProjectID:   sanitizeInput(req.ProjectID),
		Description: sanitizeInput(req.Description),
		IsAutomatic: req.IsAutomatic,
	}
	var err error
	if in.StartTime, err = parseTimestamp("startTime", req.StartTime, loc); err != nil {
		return in, err
	}
	if in.EndTime, err = parseTimestamp("endTime", req.EndTime, loc); err != nil {
		return in, err
	}
	return in, nil
}

// idParam returns the id from the path, falling back to the "id" query parameter.
func idParam(r *http.Request, fromPath string) string {
	if fromPath != "" {
		return fromPath
	}
	return strings.TrimSpace(r.URL.Query().Get("id"))
}

