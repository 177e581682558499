package jsonlio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"time"

	"github.com/wdm0006/songlake/pkg/frame"
)

// Encode renders f as JSON lines. Null cells are omitted and times are
// written as RFC 3339 strings.
func Encode(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	enc := json.NewEncoder(w)
	for r := 0; r < f.Rows(); r++ {
		m := map[string]any{}
		for i := 0; i < f.Cols(); i++ {
			col := f.Column(i)
			v := col.Value(r)
			if v == nil {
				continue
			}
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.RFC3339Nano)
			}
			m[col.Name()] = v
		}
		if err := enc.Encode(m); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
