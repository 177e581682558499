package relational

import (
	"context"
	"fmt"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
)

// InSet keeps the rows whose string value in Column is one of Values. Null
// cells never match.
type InSet struct {
	Column string
	Values map[string]struct{}
}

func NewInSet(col string, vals ...string) *InSet {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return &InSet{Column: col, Values: m}
}

func (t *InSet) Name() string { return "filter_in" }

func (t *InSet) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownColumn, t.Column)
	}
	sc, ok := col.(*frame.StringColumn)
	if !ok {
		return nil, fmt.Errorf("column %s is %v: %w", t.Column, col.Kind(), apperrors.ErrKindMismatch)
	}
	keep := make([]int, 0, sc.Len())
	for i := 0; i < sc.Len(); i++ {
		v, ok := sc.Get(i)
		if !ok {
			continue
		}
		if _, ok := t.Values[v]; ok {
			keep = append(keep, i)
		}
	}
	return f.Take(keep), nil
}
