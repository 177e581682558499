package frame

import (
	"strconv"
	"strings"
	"time"
)

// RowKey encodes the values of cols at row into a canonical string. Nulls are
// encoded as a distinct value, so two null cells compare equal.
func RowKey(cols []Column, row int) string {
	var b strings.Builder
	for _, c := range cols {
		appendValue(&b, c.Value(row))
	}
	return b.String()
}

// JoinKey is like RowKey but reports false if any value is null: a null never
// matches anything in an equality join.
func JoinKey(cols []Column, row int) (string, bool) {
	var b strings.Builder
	for _, c := range cols {
		if c.IsNull(row) {
			return "", false
		}
		appendValue(&b, c.Value(row))
	}
	return b.String(), true
}

func appendValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("n;")
	case bool:
		if t {
			b.WriteString("b1;")
		} else {
			b.WriteString("b0;")
		}
	case int64:
		b.WriteByte('i')
		b.WriteString(strconv.FormatInt(t, 10))
		b.WriteByte(';')
	case float64:
		b.WriteByte('f')
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
		b.WriteByte(';')
	case string:
		b.WriteByte('s')
		b.WriteString(strconv.Itoa(len(t)))
		b.WriteByte(':')
		b.WriteString(t)
	case time.Time:
		// instants compare equal regardless of location
		b.WriteByte('t')
		b.WriteString(strconv.FormatInt(t.UnixNano(), 10))
		b.WriteByte(';')
	}
}
