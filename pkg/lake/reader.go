package lake

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
	"github.com/wdm0006/songlake/pkg/storage"
)

// ReadTable loads every part file of table name into a frame shaped like
// schema. Partition columns are restored from the directory names. A table
// with no part files reads as an empty frame.
func ReadTable(ctx context.Context, store storage.Store, name string, schema frame.Schema, format Format) (*frame.Frame, error) {
	c := codec{format: format}
	if c.format == "" {
		c.format = FormatParquet
	}
	root := name + "/"
	keys, err := store.List(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	out := frame.NewFrame(schema)
	for _, key := range keys {
		if !c.isPart(key) {
			continue
		}
		part, err := parsePartitions(strings.TrimPrefix(key, root))
		if err != nil {
			return nil, fmt.Errorf("table %s: %s: %w", name, key, err)
		}
		payloadSchema := frame.Schema{}
		for _, cs := range schema.Columns {
			if _, ok := part[cs.Name]; !ok {
				payloadSchema.Columns = append(payloadSchema.Columns, cs)
			}
		}
		data, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		pf, err := c.decode(key, data, payloadSchema)
		if err != nil {
			return nil, fmt.Errorf("table %s: %s: %w", name, key, err)
		}
		pvals := make(map[string]any, len(part))
		for col, raw := range part {
			cs, ok := schema.Lookup(col)
			if !ok {
				continue
			}
			v, err := parsePartitionValue(raw, cs.Type)
			if err != nil {
				return nil, fmt.Errorf("table %s: partition %s=%s: %w", name, col, raw, err)
			}
			pvals[col] = v
		}
		if err := appendRows(out, pf, pvals); err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
	}
	return out, nil
}

func appendRows(dst, src *frame.Frame, consts map[string]any) error {
	for i := 0; i < src.Rows(); i++ {
		dst.AppendNullRow()
		row := dst.Rows() - 1
		for _, cs := range dst.Schema().Columns {
			var v any
			if pv, ok := consts[cs.Name]; ok {
				v = pv
			} else if c, ok := src.ColumnByName(cs.Name); ok {
				v = c.Value(i)
			}
			if err := dst.SetCell(row, cs.Name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// parsePartitions extracts the key=value directories of a table-relative key.
func parsePartitions(rel string) (map[string]string, error) {
	segs := strings.Split(rel, "/")
	out := make(map[string]string, len(segs)-1)
	for _, s := range segs[:len(segs)-1] {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: bad partition directory %q", apperrors.ErrMalformedRecord, s)
		}
		out[k] = v
	}
	return out, nil
}

func parsePartitionValue(raw string, k frame.Kind) (any, error) {
	if raw == DefaultPartition {
		return nil, nil
	}
	s, err := url.PathUnescape(raw)
	if err != nil {
		return nil, err
	}
	switch k {
	case frame.KindString:
		return s, nil
	case frame.KindInt:
		return strconv.ParseInt(s, 10, 64)
	case frame.KindFloat:
		return strconv.ParseFloat(s, 64)
	case frame.KindBool:
		return strconv.ParseBool(s)
	case frame.KindTime:
		return time.ParseInLocation(timeLayout, s, time.UTC)
	}
	return nil, fmt.Errorf("%w: %v", apperrors.ErrKindMismatch, k)
}
