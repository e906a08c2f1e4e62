package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zyra-ai/zyra/internal/domain/models"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func intervalSchedule(value int, unit string) *models.WorkflowSchedule {
	return &models.WorkflowSchedule{
		Schedule: models.ScheduleSpec{
			Type:     models.ScheduleTypeInterval,
			Interval: &models.IntervalSpec{Value: value, Unit: unit},
		},
	}
}

func TestNextRun_IntervalWithoutLastRun(t *testing.T) {
	c := NewCalculator()
	now := at(10, 0)

	next, err := c.NextRun(intervalSchedule(30, models.IntervalMinutes), now)

	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(30*time.Minute), *next)
}

func TestNextRun_IntervalFromLastRun(t *testing.T) {
	c := NewCalculator()
	s := intervalSchedule(2, models.IntervalDays)
	last := at(8, 15)
	s.LastRun = &last

	next, err := c.NextRun(s, at(10, 0))

	require.NoError(t, err)
	assert.Equal(t, last.Add(48*time.Hour), *next)

	s = intervalSchedule(3, models.IntervalHours)
	next, err = c.NextRun(s, at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(13, 0), *next)
}

func TestNextRun_IntervalUnknownUnit(t *testing.T) {
	c := NewCalculator()

	_, err := c.NextRun(intervalSchedule(1, "weeks"), at(10, 0))

	assert.ErrorIs(t, err, ErrUnsupportedSchedule)
}

func TestNextRun_Once(t *testing.T) {
	c := NewCalculator()
	past := at(9, 0)
	future := at(11, 0)

	s := &models.WorkflowSchedule{Schedule: models.ScheduleSpec{Type: models.ScheduleTypeOnce, Datetime: &past}}
	next, err := c.NextRun(s, at(10, 0))
	require.NoError(t, err)
	assert.Nil(t, next)

	s.Schedule.Datetime = &future
	next, err = c.NextRun(s, at(10, 0))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, future, *next)
}

func TestNextCronRun(t *testing.T) {
	c := NewCalculator()

	tests := []struct {
		name string
		expr string
		from time.Time
		want time.Time
	}{
		{"later today", "30 14 * * *", at(10, 0), at(14, 30)},
		{"already passed rolls to tomorrow", "0 9 * * *", at(10, 0), at(9, 0).AddDate(0, 0, 1)},
		{"exact match rolls to tomorrow", "0 10 * * *", at(10, 0), at(10, 0).AddDate(0, 0, 1)},
		{"weekday field is ignored", "0 12 * * 1", at(10, 0), at(12, 0)},
		{"wildcard hour keeps current hour", "45 * * * *", at(10, 0), at(10, 45)},
		{"wildcard minute means minute zero", "* 11 * * *", at(10, 20), at(11, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.NextCronRun(tt.expr, tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextCronRun_InvalidExpression(t *testing.T) {
	c := NewCalculator()

	for _, expr := range []string{"", "0 9 * *", "0 0 9 * * *", "99 9 * * *", "bogus"} {
		_, err := c.NextCronRun(expr, at(10, 0))
		assert.ErrorIs(t, err, ErrInvalidExpression, expr)
	}
}

func TestNextRuns(t *testing.T) {
	c := NewCalculator()

	runs, err := c.NextRuns(intervalSchedule(15, models.IntervalMinutes), at(10, 0), 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(10, 15), at(10, 30), at(10, 45)}, runs)

	cronSchedule := &models.WorkflowSchedule{Schedule: models.ScheduleSpec{Type: models.ScheduleTypeCron, Cron: "0 9 * * *"}}
	runs, err = c.NextRuns(cronSchedule, at(8, 0), 2)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(9, 0), at(9, 0).AddDate(0, 0, 1)}, runs)
}
