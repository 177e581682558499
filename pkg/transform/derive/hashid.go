package derive

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
)

// HashID adds a string column holding a name-based (v5) UUID of the row's
// values in Columns. Equal inputs always produce equal ids.
type HashID struct {
	Output    string
	Columns   []string
	Namespace uuid.UUID
}

func (t *HashID) Name() string { return "hash_id" }

func (t *HashID) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("hash_id %s: no source columns: %w", t.Output, apperrors.ErrInvalidConfig)
	}
	cols, err := f.Lookup(t.Columns...)
	if err != nil {
		return nil, err
	}
	ns := t.Namespace
	if ns == uuid.Nil {
		ns = uuid.NameSpaceOID
	}
	out := frame.NewStringColumn(t.Output, 0)
	for i := 0; i < f.Rows(); i++ {
		out.Append(uuid.NewSHA1(ns, []byte(frame.RowKey(cols, i))).String())
	}
	return f.WithColumn(out)
}
