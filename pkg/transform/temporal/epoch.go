package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
)

// EpochMillis derives a time column from an integer column holding
// milliseconds since the Unix epoch. Times carry Location (UTC when nil).
type EpochMillis struct {
	Column   string
	Output   string
	Location *time.Location
}

func (t *EpochMillis) Name() string { return "epoch_millis" }

func (t *EpochMillis) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownColumn, t.Column)
	}
	ic, ok := col.(*frame.IntColumn)
	if !ok {
		return nil, fmt.Errorf("column %s is %v: %w", t.Column, col.Kind(), apperrors.ErrKindMismatch)
	}
	loc := locationOrUTC(t.Location)
	out := frame.NewTimeColumn(t.Output, 0)
	for i := 0; i < ic.Len(); i++ {
		ms, ok := ic.Get(i)
		if !ok {
			out.AppendNull()
			continue
		}
		out.Append(FromMillis(ms, loc))
	}
	return f.WithColumn(out)
}

// FromMillis converts epoch milliseconds to a time in loc.
func FromMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(locationOrUTC(loc))
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
