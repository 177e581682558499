// Package etl turns raw song metadata and listening events into the songs,
// artists, users, time and songplays tables.
package etl

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wdm0006/songlake/pkg/config"
	"github.com/wdm0006/songlake/pkg/frame"
	"github.com/wdm0006/songlake/pkg/io/ioutils"
	"github.com/wdm0006/songlake/pkg/io/jsonlio"
	"github.com/wdm0006/songlake/pkg/lake"
	"github.com/wdm0006/songlake/pkg/profile"
	"github.com/wdm0006/songlake/pkg/storage"
)

// Table names under the output root.
const (
	TableSongs     = "songs"
	TableArtists   = "artists"
	TableUsers     = "users"
	TableTime      = "time"
	TableSongplays = "songplays"
)

var (
	songsTable     = lake.TableSpec{Name: TableSongs, PartitionBy: []string{"year", "artist_id"}}
	artistsTable   = lake.TableSpec{Name: TableArtists}
	usersTable     = lake.TableSpec{Name: TableUsers}
	timeTable      = lake.TableSpec{Name: TableTime, PartitionBy: []string{"year", "month"}}
	songplaysTable = lake.TableSpec{Name: TableSongplays, PartitionBy: []string{"year", "month"}}
)

// Pipelines selects which halves of the job run.
type Pipelines string

const (
	PipelineAll  Pipelines = "all"
	PipelineSong Pipelines = "song"
	PipelineLog  Pipelines = "log"
)

func ParsePipelines(s string) (Pipelines, error) {
	switch p := Pipelines(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PipelineAll, nil
	case PipelineAll, PipelineSong, PipelineLog:
		return p, nil
	}
	return "", fmt.Errorf("unknown pipeline %q (want all, song or log)", s)
}

// Job runs the song and log pipelines from one input store to one output
// store. A Job is not safe for concurrent use.
type Job struct {
	in, out  storage.Store
	songGlob string
	logGlob  string
	workers  int
	loc      *time.Location
	mode     jsonlio.Mode
	format   lake.Format
	writer   *lake.Writer
	topK     int
	report   *profile.Report
	profiles map[string]*profile.Collector
	logger   *zap.Logger
}

func New(cfg *config.Config, in, out storage.Store, logger *zap.Logger) (*Job, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode, err := jsonlio.ParseMode(cfg.MalformedMode)
	if err != nil {
		return nil, err
	}
	format, err := lake.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Job{
		in:       in,
		out:      out,
		songGlob: cfg.SongGlob,
		logGlob:  cfg.LogGlob,
		workers:  workers,
		loc:      cfg.Location(),
		mode:     mode,
		format:   format,
		writer:   lake.NewWriter(out, format, cfg.Compression, logger).WithParallel(workers),
		topK:     cfg.ReportTopK,
		report:   profile.NewReport(time.Now()),
		profiles: make(map[string]*profile.Collector),
		logger:   logger,
	}, nil
}

// Report returns the metrics gathered so far.
func (j *Job) Report() *profile.Report { return j.report }

// Profile returns the column profile of a table written by the last Run, or
// nil when the table was not written.
func (j *Job) Profile(table string) *profile.Collector { return j.profiles[table] }

// Run executes the selected pipelines in order, song before log, and stops at
// the first error.
func (j *Job) Run(ctx context.Context, p Pipelines) (*profile.Report, error) {
	j.report = profile.NewReport(time.Now())
	j.profiles = make(map[string]*profile.Collector)
	defer func() { j.report.Finish(time.Now()) }()
	if p == PipelineAll || p == PipelineSong {
		if err := j.ProcessSongData(ctx); err != nil {
			return j.report, fmt.Errorf("song pipeline: %w", err)
		}
	}
	if p == PipelineAll || p == PipelineLog {
		if err := j.ProcessLogData(ctx); err != nil {
			return j.report, fmt.Errorf("log pipeline: %w", err)
		}
	}
	return j.report, nil
}

// readInput decodes every object matching pattern, in key order, into one
// frame of schema.
func (j *Job) readInput(ctx context.Context, pipeline, pattern string, schema frame.Schema) (*frame.Frame, error) {
	keys, err := storage.Glob(ctx, j.in, pattern)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		j.logger.Warn("no input objects matched",
			zap.String("pipeline", pipeline),
			zap.String("pattern", pattern),
			zap.Stringer("store", j.in))
	}
	blobs, err := storage.FetchAll(ctx, j.in, keys, j.workers)
	if err != nil {
		return nil, err
	}
	r := jsonlio.NewReader(schema, jsonlio.ReaderOptions{Mode: j.mode})
	f := frame.NewFrame(schema)
	var size int64
	for i, key := range keys {
		size += int64(len(blobs[i]))
		rc, err := ioutils.OpenMaybeCompressed(bytes.NewReader(blobs[i]), key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		_, err = r.ReadInto(f, rc, key)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
	}
	if r.Dropped() > 0 {
		j.logger.Warn("dropped malformed records",
			zap.String("pipeline", pipeline),
			zap.Int("dropped", r.Dropped()))
	}
	j.report.AddInput(pipeline, len(keys), size, r.Dropped())
	j.logger.Info("input loaded",
		zap.String("pipeline", pipeline),
		zap.Int("objects", len(keys)),
		zap.Int64("bytes", size),
		zap.Int("rows", f.Rows()))
	return f, nil
}

func (j *Job) writeTable(ctx context.Context, spec lake.TableSpec, f *frame.Frame) error {
	st, err := j.writer.WriteTable(ctx, spec, f)
	if err != nil {
		return err
	}
	c := profile.NewCollector(f.Schema(), j.topK)
	c.ConsumeFrame(f)
	j.profiles[spec.Name] = c
	j.report.AddTable(profile.TableStats{
		Name:       st.Table,
		Rows:       st.Rows,
		Partitions: st.Partitions,
		Files:      st.Files,
		Bytes:      st.Bytes,
		Columns:    c.ReportJSON(),
	})
	return nil
}
