package core

import (
	"sort"
	"time"
)

// WeekBounds returns the closed interval [start, end] of the ISO week containing ref,
// in ref's location. start is Monday 00:00, end is the last nanosecond of Sunday.
func WeekBounds(ref time.Time) (start, end time.Time) {
	y, m, d := ref.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
	// time.Weekday starts on Sunday; shift so Monday is 0.
	offset := (int(midnight.Weekday()) + 6) % 7
	start = midnight.AddDate(0, 0, -offset)
	end = start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}

// HoursBetween returns the number of whole hours from start to end.
// Fractions are truncated, not rounded; negative spans count as zero.
func HoursBetween(start, end time.Time) float64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return float64(d / time.Hour)
}

type accumulator struct {
	hours float64
	rate  float64
}

// CalculateWeeklyTotals buckets entries into the week containing ref and returns one
// total per project, in project order. Only entries lying entirely inside the week
// count; entries whose project is unknown are skipped.
func CalculateWeeklyTotals(projects []Project, entries []TimeEntry, ref time.Time) []WeeklyTotal {
	weekStart, weekEnd := WeekBounds(ref)

	order := make([]string, 0, len(projects))
	acc := make(map[string]*accumulator, len(projects))
	for _, p := range projects {
		if _, dup := acc[p.ID]; dup {
			continue
		}
		acc[p.ID] = &accumulator{rate: p.HourlyRate}
		order = append(order, p.ID)
	}

	for _, e := range entries {
		a, ok := acc[e.ProjectID]
		if !ok {
			continue
		}
		if e.StartTime.Before(weekStart) || e.EndTime.After(weekEnd) {
			continue
		}
		a.hours += HoursBetween(e.StartTime, e.EndTime)
	}

	totals := make([]WeeklyTotal, 0, len(order))
	for _, id := range order {
		a := acc[id]
		totals = append(totals, WeeklyTotal{
			ProjectID:     id,
			TotalHours:    a.hours,
			TotalEarnings: a.hours * a.rate,
			WeekStartDate: weekStart,
		})
	}
	return totals
}

// SumTotals returns the grand hours and earnings across totals.
func SumTotals(totals []WeeklyTotal) (hours, earnings float64) {
	for _, t := range totals {
		hours += t.TotalHours
		earnings += t.TotalEarnings
	}
	return hours, earnings
}

// RecentEntries returns up to n entries, most recent start time first.
// The input slice is not modified.
func RecentEntries(entries []TimeEntry, n int) []TimeEntry {
	sorted := make([]TimeEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.After(sorted[j].StartTime)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ProjectIndex maps project ids to projects for lookups in views.
func ProjectIndex(projects []Project) map[string]Project {
	idx := make(map[string]Project, len(projects))
	for _, p := range projects {
		if _, ok := idx[p.ID]; !ok {
			idx[p.ID] = p
		}
	}
	return idx
}
