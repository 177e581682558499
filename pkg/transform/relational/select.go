package relational

import (
	"context"
	"fmt"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
)

// Select projects the named columns in the given order.
type Select struct{ Columns []string }

func (t *Select) Name() string { return "select" }

func (t *Select) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	cols, err := f.Lookup(t.Columns...)
	if err != nil {
		return nil, err
	}
	out, err := frame.FromColumns(cols...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rename maps old column names to new ones. Unmapped columns keep their name.
type Rename struct{ Mapping map[string]string }

func (t *Rename) Name() string { return "rename" }

func (t *Rename) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	for from := range t.Mapping {
		if _, ok := f.ColumnByName(from); !ok {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownColumn, from)
		}
	}
	cols := make([]frame.Column, f.Cols())
	for i := range cols {
		c := f.Column(i)
		if to, ok := t.Mapping[c.Name()]; ok {
			c = c.Rename(to)
		}
		cols[i] = c
	}
	return frame.FromColumns(cols...)
}
