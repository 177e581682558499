package parquetio

import (
    "bytes"
    "errors"
    "fmt"
    "io"
    "time"

    parquet "github.com/segmentio/parquet-go"

    "github.com/wdm0006/songlake/pkg/apperrors"
    "github.com/wdm0006/songlake/pkg/frame"
)

const readBatch = 1024

// Decode reads a Parquet file into a frame of the given schema. Top-level
// file columns are matched to schema columns by name; file columns outside the
// schema are skipped and schema columns missing from the file stay null.
func Decode(data []byte, schema frame.Schema) (*frame.Frame, error) {
    pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
    if err != nil { return nil, fmt.Errorf("parquet open: %w", err) }

    // leaf column index -> target column
    targets := make([]*frame.ColumnSchema, len(pf.Schema().Columns()))
    for i, path := range pf.Schema().Columns() {
        if len(path) != 1 { continue }
        if cs, ok := schema.Lookup(path[0]); ok {
            cs := cs
            targets[i] = &cs
        }
    }

    f := frame.NewFrame(schema)
    buf := make([]parquet.Row, readBatch)
    for _, rg := range pf.RowGroups() {
        rows := rg.Rows()
        for {
            n, err := rows.ReadRows(buf)
            for _, row := range buf[:n] {
                f.AppendNullRow()
                r := f.Rows() - 1
                for _, v := range row {
                    c := v.Column()
                    if c < 0 || c >= len(targets) || targets[c] == nil || v.IsNull() { continue }
                    val, cerr := valueOf(v, targets[c].Type)
                    if cerr != nil { _ = rows.Close(); return nil, fmt.Errorf("column %s: %w", targets[c].Name, cerr) }
                    if cerr := f.SetCell(r, targets[c].Name, val); cerr != nil { _ = rows.Close(); return nil, cerr }
                }
            }
            if errors.Is(err, io.EOF) { break }
            if err != nil { _ = rows.Close(); return nil, fmt.Errorf("parquet read: %w", err) }
            if n == 0 { break }
        }
        if err := rows.Close(); err != nil { return nil, err }
    }
    return f, nil
}

func valueOf(v parquet.Value, k frame.Kind) (any, error) {
    switch k {
    case frame.KindString:
        if v.Kind() == parquet.ByteArray { return string(v.ByteArray()), nil }
    case frame.KindInt:
        switch v.Kind() {
        case parquet.Int32:
            return int64(v.Int32()), nil
        case parquet.Int64:
            return v.Int64(), nil
        }
    case frame.KindFloat:
        switch v.Kind() {
        case parquet.Double:
            return v.Double(), nil
        case parquet.Float:
            return float64(v.Float()), nil
        case parquet.Int64:
            return float64(v.Int64()), nil
        }
    case frame.KindBool:
        if v.Kind() == parquet.Boolean { return v.Boolean(), nil }
    case frame.KindTime:
        if v.Kind() == parquet.Int64 { return time.UnixMilli(v.Int64()).UTC(), nil }
    }
    return nil, fmt.Errorf("%w: parquet %v into %v", apperrors.ErrKindMismatch, v.Kind(), k)
}
