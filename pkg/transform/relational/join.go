package relational

import (
	"context"
	"fmt"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
)

// InnerJoin is an equality hash join of the input (left) frame against Right.
// Columns lists the right-hand columns appended to the output; they must not
// collide with left column names. Rows with a null key on either side never
// match. Output is ordered by left row, then by right row.
type InnerJoin struct {
	Right   *frame.Frame
	LeftOn  []string
	RightOn []string
	Columns []string
}

func (t *InnerJoin) Name() string { return "inner_join" }

func (t *InnerJoin) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	if len(t.LeftOn) == 0 || len(t.LeftOn) != len(t.RightOn) {
		return nil, fmt.Errorf("join needs matching key lists, got %d and %d", len(t.LeftOn), len(t.RightOn))
	}
	lk, err := f.Lookup(t.LeftOn...)
	if err != nil {
		return nil, err
	}
	rk, err := t.Right.Lookup(t.RightOn...)
	if err != nil {
		return nil, err
	}
	for i := range lk {
		if lk[i].Kind() != rk[i].Kind() {
			return nil, fmt.Errorf("join %s=%s: %v vs %v: %w", t.LeftOn[i], t.RightOn[i], lk[i].Kind(), rk[i].Kind(), apperrors.ErrKindMismatch)
		}
	}
	rcols, err := t.Right.Lookup(t.Columns...)
	if err != nil {
		return nil, err
	}
	for _, c := range rcols {
		if _, clash := f.ColumnByName(c.Name()); clash {
			return nil, fmt.Errorf("%w: %s on both sides of join", apperrors.ErrDuplicateColumn, c.Name())
		}
	}

	build := make(map[string][]int, t.Right.Rows())
	for r := 0; r < t.Right.Rows(); r++ {
		k, ok := frame.JoinKey(rk, r)
		if !ok {
			continue
		}
		build[k] = append(build[k], r)
	}

	var lrows, rrows []int
	for l := 0; l < f.Rows(); l++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		k, ok := frame.JoinKey(lk, l)
		if !ok {
			continue
		}
		for _, r := range build[k] {
			lrows = append(lrows, l)
			rrows = append(rrows, r)
		}
	}

	out := make([]frame.Column, 0, f.Cols()+len(rcols))
	for i := 0; i < f.Cols(); i++ {
		out = append(out, f.Column(i).Take(lrows))
	}
	for _, c := range rcols {
		out = append(out, c.Take(rrows))
	}
	return frame.FromColumns(out...)
}
