package jsonlio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/frame"
)

// Mode selects what happens to a line that is not a JSON object or whose
// values cannot be converted to the schema.
type Mode int

const (
	// FailFast aborts the read on the first malformed line.
	FailFast Mode = iota
	// DropMalformed skips malformed lines and counts them.
	DropMalformed
)

func (m Mode) String() string {
	if m == DropMalformed {
		return "dropmalformed"
	}
	return "failfast"
}

// ParseMode accepts "failfast" and "dropmalformed" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "failfast":
		return FailFast, nil
	case "dropmalformed":
		return DropMalformed, nil
	}
	return FailFast, fmt.Errorf("%w: malformed mode %q", apperrors.ErrInvalidConfig, s)
}

type ReaderOptions struct {
	Mode Mode
}

// Reader decodes line-delimited JSON objects into frames of a fixed schema.
// Keys absent from the schema are ignored; schema columns absent from a
// record are null.
type Reader struct {
	schema  frame.Schema
	opt     ReaderOptions
	dropped int
}

func NewReader(schema frame.Schema, opt ReaderOptions) *Reader {
	return &Reader{schema: schema, opt: opt}
}

func (r *Reader) Schema() frame.Schema { return r.schema }

// Dropped reports how many lines DropMalformed has skipped so far.
func (r *Reader) Dropped() int { return r.dropped }

// ReadAll decodes every record in src into a new frame.
func (r *Reader) ReadAll(src io.Reader, name string) (*frame.Frame, error) {
	f := frame.NewFrame(r.schema)
	if _, err := r.ReadInto(f, src, name); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadInto appends the records of src to f and returns the number of rows
// added. name labels errors.
func (r *Reader) ReadInto(f *frame.Frame, src io.Reader, name string) (int, error) {
	br := bufio.NewReader(src)
	added := 0
	for lineNo := 1; ; lineNo++ {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return added, fmt.Errorf("%s: %w", name, readErr)
		}
		if len(bytes.TrimSpace(line)) > 0 {
			vals, err := r.decodeLine(line)
			if err != nil {
				if r.opt.Mode == DropMalformed {
					r.dropped++
				} else {
					return added, fmt.Errorf("%s:%d: %w", name, lineNo, err)
				}
			} else {
				f.AppendNullRow()
				row := f.Rows() - 1
				for i, cs := range r.schema.Columns {
					if err := f.SetCell(row, cs.Name, vals[i]); err != nil {
						return added, fmt.Errorf("%s:%d: %w", name, lineNo, err)
					}
				}
				added++
			}
		}
		if readErr == io.EOF {
			return added, nil
		}
	}
}

func (r *Reader) decodeLine(line []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedRecord, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: not an object", apperrors.ErrMalformedRecord)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", apperrors.ErrMalformedRecord)
	}
	vals := make([]any, len(r.schema.Columns))
	for i, cs := range r.schema.Columns {
		v, err := convert(cs.Type, m[cs.Name])
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", apperrors.ErrMalformedRecord, cs.Name, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func convert(k frame.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case frame.KindString:
		switch t := v.(type) {
		case string:
			return t, nil
		case json.Number:
			return t.String(), nil
		case bool:
			return strconv.FormatBool(t), nil
		default:
			// nested values keep their JSON text
			b, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}
	case frame.KindInt:
		switch t := v.(type) {
		case json.Number:
			if x, err := t.Int64(); err == nil {
				return x, nil
			}
			x, err := t.Float64()
			if err != nil || x != float64(int64(x)) {
				return nil, fmt.Errorf("%s is not an integer", t)
			}
			return int64(x), nil
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return nil, nil
			}
			return strconv.ParseInt(s, 10, 64)
		}
	case frame.KindFloat:
		switch t := v.(type) {
		case json.Number:
			return t.Float64()
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return nil, nil
			}
			return strconv.ParseFloat(s, 64)
		}
	case frame.KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			return strconv.ParseBool(strings.ToLower(strings.TrimSpace(t)))
		}
	case frame.KindTime:
		switch t := v.(type) {
		case string:
			return time.Parse(time.RFC3339Nano, t)
		case json.Number:
			ms, err := t.Int64()
			if err != nil {
				return nil, err
			}
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %v", v, k)
}
