package core

import (
	"math"
	"strings"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 2000
)

// Validate checks required fields and the rate before a project is stored.
func (in ProjectInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if in.HourlyRate == nil {
		missing = append(missing, "hourlyRate")
	}
	if strings.TrimSpace(in.Color) == "" {
		missing = append(missing, "color")
	}
	if len(missing) > 0 {
		return MissingFields(missing...)
	}

	rate := *in.HourlyRate
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return InvalidValue("hourlyRate", "hourly rate must be a positive number")
	}
	if len(strings.TrimSpace(in.Name)) > maxNameLength {
		return InvalidValue("name", "name too long (max 200 characters)")
	}
	return nil
}

// Validate checks required fields and the time span before a time entry is stored.
// Referential integrity is checked by the caller, which owns the store.
func (in TimeEntryInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.ProjectID) == "" {
		missing = append(missing, "projectId")
	}
	if in.StartTime.IsZero() {
		missing = append(missing, "startTime")
	}
	if in.EndTime.IsZero() {
		missing = append(missing, "endTime")
	}
	if len(missing) > 0 {
		return MissingFields(missing...)
	}

	if !in.EndTime.After(in.StartTime) {
		return InvalidValue("endTime", "end time must be after start time")
	}
	if len(in.Description) > maxDescriptionLength {
		return InvalidValue("description", "description too long (max 2000 characters)")
	}
	return nil
}
