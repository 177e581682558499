package parquetio

import (
    "encoding/json"
    "fmt"
    "strings"
    "time"

    "github.com/xitongsys/parquet-go-source/buffer"
    "github.com/xitongsys/parquet-go/parquet"
    pw "github.com/xitongsys/parquet-go/writer"

    "github.com/wdm0006/songlake/pkg/apperrors"
    "github.com/wdm0006/songlake/pkg/frame"
)

type WriterOptions struct {
    // Compression is one of snappy (default), gzip, zstd or uncompressed.
    Compression string
    // Parallel is the number of marshalling goroutines (default 4).
    Parallel int64
}

// ParseCompression maps a codec name to its parquet codec.
func ParseCompression(name string) (parquet.CompressionCodec, error) {
    switch strings.ToLower(strings.TrimSpace(name)) {
    case "", "snappy":
        return parquet.CompressionCodec_SNAPPY, nil
    case "gzip":
        return parquet.CompressionCodec_GZIP, nil
    case "zstd":
        return parquet.CompressionCodec_ZSTD, nil
    case "none", "uncompressed":
        return parquet.CompressionCodec_UNCOMPRESSED, nil
    }
    return parquet.CompressionCodec_UNCOMPRESSED, fmt.Errorf("%w: parquet compression %q", apperrors.ErrInvalidConfig, name)
}

func parquetSchemaJSON(s frame.Schema) (string, error) {
    // Build a minimal JSON schema for parquet-go JSONWriter
    type field struct { Tag string `json:"Tag"` }
    type schema struct {
        Tag    string  `json:"Tag"`
        Fields []field `json:"Fields"`
    }
    sc := schema{Tag: "name=spark_schema, repetitiontype=REQUIRED"}
    for _, cs := range s.Columns {
        tag := "name=" + cs.Name + ", repetitiontype=OPTIONAL, type="
        switch cs.Type {
        case frame.KindFloat:
            tag += "DOUBLE"
        case frame.KindInt:
            tag += "INT64"
        case frame.KindBool:
            tag += "BOOLEAN"
        case frame.KindString:
            tag += "BYTE_ARRAY, convertedtype=UTF8"
        case frame.KindTime:
            tag += "INT64, convertedtype=TIMESTAMP_MILLIS"
        default:
            return "", fmt.Errorf("column %s: %w: %v", cs.Name, apperrors.ErrKindMismatch, cs.Type)
        }
        sc.Fields = append(sc.Fields, field{Tag: tag})
    }
    b, err := json.Marshal(sc)
    if err != nil { return "", err }
    return string(b), nil
}

// Encode writes f as a single Parquet file held in memory.
func Encode(f *frame.Frame, opt WriterOptions) ([]byte, error) {
    schema, err := parquetSchemaJSON(f.Schema())
    if err != nil { return nil, err }
    codec, err := ParseCompression(opt.Compression)
    if err != nil { return nil, err }
    np := opt.Parallel
    if np <= 0 { np = 4 }

    fw := buffer.NewBufferFile()
    writer, err := pw.NewJSONWriter(schema, fw, np)
    if err != nil { return nil, fmt.Errorf("parquet writer init: %w", err) }
    writer.CompressionType = codec

    for r := 0; r < f.Rows(); r++ {
        rec := make(map[string]any, f.Cols())
        for i := 0; i < f.Cols(); i++ {
            col := f.Column(i)
            v := col.Value(r)
            if v == nil { continue }
            if t, ok := v.(time.Time); ok { v = t.UnixMilli() }
            rec[col.Name()] = v
        }
        line, err := json.Marshal(rec)
        if err != nil { return nil, fmt.Errorf("parquet encode row %d: %w", r, err) }
        if err := writer.Write(string(line)); err != nil {
            _ = writer.WriteStop()
            return nil, fmt.Errorf("parquet write row %d: %w", r, err)
        }
    }
    if err := writer.WriteStop(); err != nil { return nil, fmt.Errorf("parquet finalize: %w", err) }
    if err := fw.Close(); err != nil { return nil, err }
    return fw.Bytes(), nil
}
