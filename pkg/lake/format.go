package lake

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
	"github.com/wdm0006/songlake/pkg/io/ioutils"
	"github.com/wdm0006/songlake/pkg/io/jsonlio"
	"github.com/wdm0006/songlake/pkg/io/parquetio"
)

// Format is the file format of table part files.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatParquet:
		return FormatParquet, nil
	case FormatJSONL:
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, s)
}

// codec encodes one part file and names its extension.
type codec struct {
	format      Format
	compression string
	parallel    int64
}

func (c codec) ext() string {
	switch c.format {
	case FormatJSONL:
		if strings.EqualFold(c.compression, "gzip") {
			return ".json.gz"
		}
		return ".json"
	default:
		if c.compression == "" {
			return ".snappy.parquet"
		}
		if strings.EqualFold(c.compression, "uncompressed") || strings.EqualFold(c.compression, "none") {
			return ".parquet"
		}
		return "." + strings.ToLower(c.compression) + ".parquet"
	}
}

func (c codec) isPart(key string) bool {
	switch c.format {
	case FormatJSONL:
		return strings.HasSuffix(key, ".json") || strings.HasSuffix(key, ".json.gz")
	default:
		return strings.HasSuffix(key, ".parquet")
	}
}

func (c codec) encode(f *frame.Frame) ([]byte, error) {
	switch c.format {
	case FormatJSONL:
		b, err := jsonlio.Encode(f)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(c.compression, "gzip") {
			return ioutils.Compress(b)
		}
		return b, nil
	case FormatParquet:
		return parquetio.Encode(f, parquetio.WriterOptions{Compression: c.compression, Parallel: c.parallel})
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, c.format)
}

func (c codec) decode(key string, data []byte, schema frame.Schema) (*frame.Frame, error) {
	switch c.format {
	case FormatJSONL:
		rc, err := ioutils.OpenMaybeCompressed(bytes.NewReader(data), key)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		return jsonlio.NewReader(schema, jsonlio.ReaderOptions{Mode: jsonlio.FailFast}).ReadAll(rc, key)
	case FormatParquet:
		return parquetio.Decode(data, schema)
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, c.format)
}
