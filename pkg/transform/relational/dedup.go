package relational

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
)

// DropDuplicates keeps one row per distinct value of Keys.
//
// Rows are ranked by OrderBy when set (nulls last, ties in input order) and
// the first ranked row of each key survives; without OrderBy the first row in
// input order survives. Survivors keep their original relative order, so the
// result depends only on the input rows.
type DropDuplicates struct {
	Keys       []string
	OrderBy    string
	Descending bool
}

func (t *DropDuplicates) Name() string {
	return "drop_duplicates(" + strings.Join(t.Keys, ",") + ")"
}

func (t *DropDuplicates) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	keys, err := f.Lookup(t.Keys...)
	if err != nil {
		return nil, err
	}
	order := make([]int, f.Rows())
	for i := range order {
		order[i] = i
	}
	if t.OrderBy != "" {
		oc, ok := f.ColumnByName(t.OrderBy)
		if !ok {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownColumn, t.OrderBy)
		}
		sort.SliceStable(order, func(a, b int) bool {
			return less(oc, order[a], order[b], t.Descending)
		})
	}
	seen := make(map[string]struct{}, f.Rows())
	keep := make([]int, 0, f.Rows())
	for _, r := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		k := frame.RowKey(keys, r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, r)
	}
	sort.Ints(keep)
	return f.Take(keep), nil
}

// Distinct drops rows that repeat every column of an earlier row.
type Distinct struct{}

func (t *Distinct) Name() string { return "distinct" }

func (t *Distinct) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	return (&DropDuplicates{Keys: f.Schema().Names()}).Apply(ctx, f)
}

// less orders rows a and b of c; nulls sort after every value in both
// directions.
func less(c frame.Column, a, b int, desc bool) bool {
	an, bn := c.IsNull(a), c.IsNull(b)
	switch {
	case an && bn:
		return false
	case an:
		return false
	case bn:
		return true
	}
	cmp := compare(c.Value(a), c.Value(b))
	if desc {
		return cmp > 0
	}
	return cmp < 0
}

func compare(a, b any) int {
	switch x := a.(type) {
	case int64:
		y := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case !x && y:
			return -1
		case x && !y:
			return 1
		}
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return 0
}
