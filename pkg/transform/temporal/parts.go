package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
)

// Calendar part column names added by DateParts.
const (
	Hour    = "hour"
	Day     = "day"
	Week    = "week"
	Month   = "month"
	Year    = "year"
	Weekday = "weekday"
)

// Parts is the calendar breakdown of one instant.
type Parts struct {
	Hour, Day, Week, Month, Year, Weekday int
}

// PartsOf breaks t down in loc. Week is the ISO-8601 week number and Weekday
// runs from 1 (Sunday) to 7 (Saturday).
func PartsOf(t time.Time, loc *time.Location) Parts {
	t = t.In(locationOrUTC(loc))
	_, week := t.ISOWeek()
	return Parts{
		Hour:    t.Hour(),
		Day:     t.Day(),
		Week:    week,
		Month:   int(t.Month()),
		Year:    t.Year(),
		Weekday: int(t.Weekday()) + 1,
	}
}

// DateParts adds hour, day, week, month, year and weekday columns derived
// from a time column.
type DateParts struct {
	Column   string
	Location *time.Location
}

func (t *DateParts) Name() string { return "date_parts" }

func (t *DateParts) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownColumn, t.Column)
	}
	tc, ok := col.(*frame.TimeColumn)
	if !ok {
		return nil, fmt.Errorf("column %s is %v: %w", t.Column, col.Kind(), apperrors.ErrKindMismatch)
	}
	names := []string{Hour, Day, Week, Month, Year, Weekday}
	cols := make([]*frame.IntColumn, len(names))
	for i, n := range names {
		cols[i] = frame.NewIntColumn(n, 0)
	}
	for i := 0; i < tc.Len(); i++ {
		v, ok := tc.Get(i)
		if !ok {
			for _, c := range cols {
				c.AppendNull()
			}
			continue
		}
		p := PartsOf(v, t.Location)
		for j, x := range []int{p.Hour, p.Day, p.Week, p.Month, p.Year, p.Weekday} {
			cols[j].Append(int64(x))
		}
	}
	out := f
	for _, c := range cols {
		var err error
		if out, err = out.WithColumn(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}
