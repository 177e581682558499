package profile

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wdm0006/songlake/pkg/frame"
)

type NumStats struct {
	Count int     `json:"count"`
	Nulls int     `json:"nulls"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Sum   float64 `json:"sum"`
}

type StringStats struct {
	Count int            `json:"count"`
	Nulls int            `json:"nulls"`
	Freqs map[string]int `json:"-"`
}

type TimeStats struct {
	Count int       `json:"count"`
	Nulls int       `json:"nulls"`
	Min   time.Time `json:"min"`
	Max   time.Time `json:"max"`
}

type ColumnProfile struct {
	Name string
	Kind frame.Kind
	Num  *NumStats
	Str  *StringStats
	Time *TimeStats
}

// Nulls returns the null count whatever the column kind.
func (cp *ColumnProfile) Nulls() int {
	switch {
	case cp.Num != nil:
		return cp.Num.Nulls
	case cp.Str != nil:
		return cp.Str.Nulls
	case cp.Time != nil:
		return cp.Time.Nulls
	}
	return 0
}

// Collector accumulates per-column statistics over one or more frames of the
// same schema. A positive topK keeps string frequencies and reports the topK
// most frequent values per column. Bool columns are skipped.
type Collector struct {
	cols  []ColumnProfile
	index map[string]int
	topK  int
}

func NewCollector(schema frame.Schema, topK int) *Collector {
	c := &Collector{index: make(map[string]int), topK: topK}
	c.cols = make([]ColumnProfile, len(schema.Columns))
	for i, cs := range schema.Columns {
		cp := ColumnProfile{Name: cs.Name, Kind: cs.Type}
		switch cs.Type {
		case frame.KindFloat, frame.KindInt:
			cp.Num = &NumStats{Min: math.Inf(1), Max: math.Inf(-1)}
		case frame.KindString:
			cp.Str = &StringStats{Freqs: make(map[string]int)}
		case frame.KindTime:
			cp.Time = &TimeStats{}
		}
		c.cols[i] = cp
		c.index[cs.Name] = i
	}
	return c
}

// ConsumeFrame folds f into the running statistics. Columns unknown to the
// collector are ignored.
func (c *Collector) ConsumeFrame(f *frame.Frame) {
	for ci := 0; ci < f.Cols(); ci++ {
		col := f.Column(ci)
		idx, ok := c.index[col.Name()]
		if !ok || c.cols[idx].Kind != col.Kind() {
			continue
		}
		cp := &c.cols[idx]
		switch col := col.(type) {
		case *frame.FloatColumn:
			for i := 0; i < col.Len(); i++ {
				v, ok := col.Get(i)
				if !ok {
					cp.Num.Nulls++
					continue
				}
				cp.Num.add(v)
			}
		case *frame.IntColumn:
			for i := 0; i < col.Len(); i++ {
				v, ok := col.Get(i)
				if !ok {
					cp.Num.Nulls++
					continue
				}
				cp.Num.add(float64(v))
			}
		case *frame.StringColumn:
			for i := 0; i < col.Len(); i++ {
				v, ok := col.Get(i)
				if !ok {
					cp.Str.Nulls++
					continue
				}
				cp.Str.Count++
				if c.topK > 0 {
					cp.Str.Freqs[v]++
				}
			}
		case *frame.TimeColumn:
			for i := 0; i < col.Len(); i++ {
				v, ok := col.Get(i)
				if !ok {
					cp.Time.Nulls++
					continue
				}
				if cp.Time.Count == 0 || v.Before(cp.Time.Min) {
					cp.Time.Min = v
				}
				if cp.Time.Count == 0 || v.After(cp.Time.Max) {
					cp.Time.Max = v
				}
				cp.Time.Count++
			}
		}
	}
}

func (s *NumStats) add(v float64) {
	s.Count++
	if v < s.Min {
		s.Min = v
	}
	if v > s.Max {
		s.Max = v
	}
	s.Sum += v
}

func (c *Collector) Columns() []ColumnProfile { return c.cols }

func (c *Collector) ReportText() string {
	var b strings.Builder
	b.WriteString("Profile Summary\n")
	for _, cp := range c.cols {
		fmt.Fprintf(&b, "- %s (%v): ", cp.Name, cp.Kind)
		switch {
		case cp.Num != nil:
			if cp.Num.Count == 0 {
				fmt.Fprintf(&b, "count=0 nulls=%d\n", cp.Num.Nulls)
				continue
			}
			mean := cp.Num.Sum / float64(cp.Num.Count)
			fmt.Fprintf(&b, "count=%d nulls=%d min=%.6g max=%.6g mean=%.6g\n", cp.Num.Count, cp.Num.Nulls, cp.Num.Min, cp.Num.Max, mean)
		case cp.Time != nil:
			fmt.Fprintf(&b, "count=%d nulls=%d", cp.Time.Count, cp.Time.Nulls)
			if cp.Time.Count > 0 {
				fmt.Fprintf(&b, " min=%s max=%s", cp.Time.Min.Format(time.RFC3339), cp.Time.Max.Format(time.RFC3339))
			}
			b.WriteString("\n")
		case cp.Str != nil:
			fmt.Fprintf(&b, "count=%d nulls=%d\n", cp.Str.Count, cp.Str.Nulls)
			for _, kv := range c.top(cp.Str.Freqs) {
				fmt.Fprintf(&b, "  • %q: %d\n", kv.k, kv.v)
			}
		default:
			b.WriteString("\n")
		}
	}
	return b.String()
}

type kv struct {
	k string
	v int
}

func (c *Collector) top(freqs map[string]int) []kv {
	arr := make([]kv, 0, len(freqs))
	for k, v := range freqs {
		arr = append(arr, kv{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v != arr[j].v {
			return arr[i].v > arr[j].v
		}
		return arr[i].k < arr[j].k
	})
	if c.topK > 0 && c.topK < len(arr) {
		arr = arr[:c.topK]
	}
	return arr
}

type JSONColumn struct {
	Name string       `json:"name"`
	Kind string       `json:"kind"`
	Num  *NumStats    `json:"num,omitempty"`
	Time *TimeStats   `json:"time,omitempty"`
	Str  *JSONStrings `json:"str,omitempty"`
}

type JSONStrings struct {
	Count int            `json:"count"`
	Nulls int            `json:"nulls"`
	Top   map[string]int `json:"top,omitempty"`
}

func (c *Collector) ReportJSON() []JSONColumn {
	out := make([]JSONColumn, 0, len(c.cols))
	for _, cp := range c.cols {
		jc := JSONColumn{Name: cp.Name, Kind: cp.Kind.String(), Time: cp.Time}
		if cp.Num != nil && cp.Num.Count > 0 {
			jc.Num = cp.Num
		} else if cp.Num != nil {
			// infinities do not marshal
			jc.Num = &NumStats{Nulls: cp.Num.Nulls}
		}
		if cp.Str != nil {
			js := &JSONStrings{Count: cp.Str.Count, Nulls: cp.Str.Nulls}
			if top := c.top(cp.Str.Freqs); len(top) > 0 {
				js.Top = make(map[string]int, len(top))
				for _, e := range top {
					js.Top[e.k] = e.v
				}
			}
			jc.Str = js
		}
		out = append(out, jc)
	}
	return out
}
