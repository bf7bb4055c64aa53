package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoly/internal/core"
)

func TestBuildWeekReport(t *testing.T) {
	week := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	projects := []core.Project{{ID: "p1", Name: "Website", HourlyRate: 50}}
	totals := []core.WeeklyTotal{
		{ProjectID: "p1", TotalHours: 3, TotalEarnings: 150, WeekStartDate: week},
		{ProjectID: "gone", TotalHours: 1, TotalEarnings: 10, WeekStartDate: week},
	}

	r := BuildWeekReport(projects, totals, week, week.Add(time.Hour))

	require.Len(t, r.Rows, 2)
	assert.Equal(t, WeekRow{ProjectID: "p1", ProjectName: "Website", Hours: 3, Rate: 50, Earnings: 150}, r.Rows[0])
	assert.Empty(t, r.Rows[1].ProjectName)
	assert.Equal(t, 4.0, r.TotalHours())
	assert.Equal(t, 160.0, r.TotalEarnings())
}
