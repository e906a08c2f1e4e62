package cron

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zyra-ai/zyra/internal/domain/models"
)

var ErrUnsupportedSchedule = errors.New("unsupported schedule")

// Calculator computes the next fire time of a workflow schedule.
//
// Cron support is intentionally partial: the minute and hour fields are
// honoured, day-of-month, month and day-of-week are accepted but ignored.
// "0 9 * * 1" therefore fires every day at 09:00.
type Calculator struct {
	parser *Parser
	cache  map[string]*Expression
	mu     sync.RWMutex
}

func NewCalculator() *Calculator {
	return &Calculator{
		parser: NewParser(),
		cache:  make(map[string]*Expression),
	}
}

// NextRun returns when the schedule should fire next, or nil when it never
// will again (a one-off schedule whose time has passed).
func (c *Calculator) NextRun(s *models.WorkflowSchedule, now time.Time) (*time.Time, error) {
	switch s.Schedule.Type {
	case models.ScheduleTypeInterval:
		if s.Schedule.Interval == nil {
			return nil, fmt.Errorf("%w: interval schedule without interval", ErrUnsupportedSchedule)
		}
		step := s.Schedule.Interval.Duration()
		if step <= 0 {
			return nil, fmt.Errorf("%w: interval %d %s", ErrUnsupportedSchedule, s.Schedule.Interval.Value, s.Schedule.Interval.Unit)
		}
		base := now
		if s.LastRun != nil {
			base = *s.LastRun
		}
		next := base.Add(step)
		return &next, nil

	case models.ScheduleTypeOnce:
		if s.Schedule.Datetime == nil {
			return nil, fmt.Errorf("%w: once schedule without datetime", ErrUnsupportedSchedule)
		}
		if !s.Schedule.Datetime.After(now) {
			return nil, nil
		}
		next := *s.Schedule.Datetime
		return &next, nil

	case models.ScheduleTypeCron:
		next, err := c.NextCronRun(s.Schedule.Cron, now)
		if err != nil {
			return nil, err
		}
		return &next, nil

	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnsupportedSchedule, s.Schedule.Type)
	}
}

// NextCronRun sets the literal minute and hour of the expression on the day
// of from. A wildcard minute means minute 0 and a wildcard hour keeps the
// hour of from. Results not after from roll forward exactly one day.
func (c *Calculator) NextCronRun(expression string, from time.Time) (time.Time, error) {
	expr, err := c.parse(expression)
	if err != nil {
		return time.Time{}, err
	}

	minute := 0
	if expr.Minute != nil {
		minute = *expr.Minute
	}
	hour := from.Hour()
	if expr.Hour != nil {
		hour = *expr.Hour
	}

	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// NextRuns previews the next n fire times, assuming every run happens on time.
func (c *Calculator) NextRuns(s *models.WorkflowSchedule, now time.Time, n int) ([]time.Time, error) {
	preview := s.Clone()
	runs := make([]time.Time, 0, n)
	cursor := now

	for i := 0; i < n; i++ {
		next, err := c.NextRun(preview, cursor)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		runs = append(runs, *next)
		preview.LastRun = next
		cursor = *next
		if preview.Schedule.Type == models.ScheduleTypeOnce {
			break
		}
	}

	return runs, nil
}

func (c *Calculator) Validate(expression string) error {
	_, err := c.parse(expression)
	return err
}

func (c *Calculator) parse(expression string) (*Expression, error) {
	c.mu.RLock()
	expr, ok := c.cache[expression]
	c.mu.RUnlock()
	if ok {
		return expr, nil
	}

	expr, err := c.parser.Parse(expression)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[expression] = expr
	c.mu.Unlock()

	return expr, nil
}
