package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// TableStats summarises one written table.
type TableStats struct {
	Name       string       `json:"name"`
	Rows       int          `json:"rows"`
	Partitions int          `json:"partitions"`
	Files      int          `json:"files"`
	Bytes      int64        `json:"bytes"`
	Columns    []JSONColumn `json:"columns,omitempty"`
}

// Report holds the run metrics written to report_path.
type Report struct {
	mu sync.Mutex

	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	ExecutionTime  string         `json:"total_execution_time"`
	InputFiles     map[string]int `json:"input_files"`
	InputBytes     int64          `json:"input_bytes"`
	DroppedRecords map[string]int `json:"dropped_records"`
	Tables         []TableStats   `json:"tables"`
}

func NewReport(start time.Time) *Report {
	return &Report{
		StartedAt:      start.UTC(),
		InputFiles:     make(map[string]int),
		DroppedRecords: make(map[string]int),
	}
}

// AddInput records the objects one pipeline read.
func (r *Report) AddInput(pipeline string, files int, bytes int64, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InputFiles[pipeline] += files
	r.InputBytes += bytes
	r.DroppedRecords[pipeline] += dropped
}

func (r *Report) AddTable(ts TableStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tables = append(r.Tables, ts)
}

// Table returns the stats recorded for name.
func (r *Report) Table(name string) (TableStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableStats{}, false
}

func (r *Report) Finish(end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = end.UTC()
	r.ExecutionTime = end.Sub(r.StartedAt).String()
	sort.SliceStable(r.Tables, func(i, j int) bool { return r.Tables[i].Name < r.Tables[j].Name })
}

func (r *Report) MarshalIndent() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}

// WriteFile writes the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	b, err := r.MarshalIndent()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
