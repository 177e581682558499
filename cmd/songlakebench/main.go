package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/wdm0006/songlake/pkg/config"
	"github.com/wdm0006/songlake/pkg/etl"
	"github.com/wdm0006/songlake/pkg/storage"
)

// baseTS is 2018-11-01 00:00:00 UTC in epoch milliseconds.
const baseTS = int64(1541030400000)

var pages = []string{"NextSong", "NextSong", "NextSong", "NextSong", "Home", "Logout", "Settings"}

type generator struct {
	songs, artists, users int
	rnd                   *rand.Rand
}

func (g *generator) songID(i int) string   { return fmt.Sprintf("SO%016X", i) }
func (g *generator) artistID(i int) string { return fmt.Sprintf("AR%016X", i%g.artists) }

func (g *generator) writeSongs(ctx context.Context, s storage.Store) (int64, error) {
	var total int64
	for i := 0; i < g.songs; i++ {
		rec := map[string]any{
			"num_songs":        1,
			"song_id":          g.songID(i),
			"title":            fmt.Sprintf("Song %d", i),
			"artist_id":        g.artistID(i),
			"artist_name":      fmt.Sprintf("Artist %d", i%g.artists),
			"artist_location":  "",
			"artist_latitude":  nil,
			"artist_longitude": nil,
			"year":             1970 + g.rnd.Intn(50),
			"duration":         60 + g.rnd.Float64()*300,
		}
		if g.rnd.Intn(3) == 0 {
			rec["artist_latitude"] = g.rnd.Float64()*180 - 90
			rec["artist_longitude"] = g.rnd.Float64()*360 - 180
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return total, err
		}
		id := g.songID(i)
		n := len(id)
		key := fmt.Sprintf("song_data/%c/%c/%c/TR%s.json", id[n-1], id[n-2], id[n-3], id)
		if err := s.Put(ctx, key, b); err != nil {
			return total, err
		}
		total += int64(len(b))
	}
	return total, nil
}

func (g *generator) writeLogs(ctx context.Context, s storage.Store, events, days int) (int64, error) {
	var total int64
	perDay := events / days
	for d := 0; d < days; d++ {
		var buf []byte
		for e := 0; e < perDay; e++ {
			u := g.rnd.Intn(g.users)
			level := "free"
			if g.rnd.Intn(4) == 0 {
				level = "paid"
			}
			rec := map[string]any{
				"artist":    nil,
				"auth":      "Logged In",
				"firstName": fmt.Sprintf("First%d", u),
				"lastName":  fmt.Sprintf("Last%d", u),
				"gender":    []string{"F", "M"}[u%2],
				"level":     level,
				"page":      pages[g.rnd.Intn(len(pages))],
				"ts":        baseTS + int64(d)*86_400_000 + g.rnd.Int63n(86_400_000),
				"song":      fmt.Sprintf("Song %d", g.rnd.Intn(g.songs*2)),
				"sessionId": g.rnd.Intn(1000),
				"location":  "Somewhere",
				"userAgent": "bench",
				"userId":    fmt.Sprint(u),
			}
			b, err := json.Marshal(rec)
			if err != nil {
				return total, err
			}
			buf = append(append(buf, b...), '\n')
		}
		key := fmt.Sprintf("log-data/2018/11/2018-11-%02d-events.json", d+1)
		if err := s.Put(ctx, key, buf); err != nil {
			return total, err
		}
		total += int64(len(buf))
	}
	return total, nil
}

func main() {
	os.Exit(run())
}

// checkSizes rejects generator settings that would produce no input. Every
// day needs at least one event.
func checkSizes(songs, artists, users, events, days, topK int) error {
	if days <= 0 || artists <= 0 || users <= 0 || songs <= 0 {
		return errors.New("songs, artists, users and days must be positive")
	}
	if events < days {
		return fmt.Errorf("events (%d) must be at least days (%d)", events, days)
	}
	if topK < 0 {
		return errors.New("profile must not be negative")
	}
	return nil
}

func run() int {
	var (
		songs   = flag.Int("songs", 20_000, "number of song objects to generate")
		artists = flag.Int("artists", 5_000, "number of distinct artists")
		users   = flag.Int("users", 100, "number of distinct users")
		events  = flag.Int("events", 200_000, "number of log events")
		days    = flag.Int("days", 30, "number of daily log files")
		workers = flag.Int("workers", 8, "concurrent input fetches")
		format  = flag.String("format", "parquet", "output format: parquet or jsonl")
		dir     = flag.String("dir", "", "working directory (default: a removed temp dir)")
		jsonOut = flag.Bool("json", false, "emit JSON summary")
		topK    = flag.Int("profile", 0, "print a column profile per table with this many top string values")
		seed    = flag.Int64("seed", 42, "random seed")
	)
	flag.Parse()
	if err := checkSizes(*songs, *artists, *users, *events, *days, *topK); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	root := *dir
	if root == "" {
		tmp, err := os.MkdirTemp("", "songlakebench-*")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		root = tmp
	}
	ctx := context.Background()
	logger := zap.NewNop()
	in, err := storage.NewLocalStore(filepath.Join(root, "input"), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	out, err := storage.NewLocalStore(filepath.Join(root, "output"), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	g := &generator{songs: *songs, artists: *artists, users: *users, rnd: rand.New(rand.NewSource(*seed))}
	songBytes, err := g.writeSongs(ctx, in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logBytes, err := g.writeLogs(ctx, in, *events, *days)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg := &config.Config{
		SongGlob:      "song_data/*/*/*/*.json",
		LogGlob:       "log-data/*/*/*.json",
		TimeZone:      "UTC",
		MalformedMode: "failfast",
		Format:        *format,
		Workers:       *workers,
		ReportTopK:    *topK,
	}
	job, err := etl.New(cfg, in, out, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// Warm up
	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	var msBefore, msAfter runtime.MemStats
	runtime.ReadMemStats(&msBefore)
	start := time.Now()
	report, err := job.Run(ctx, etl.PipelineAll)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	elapsed := time.Since(start)
	runtime.ReadMemStats(&msAfter)

	inputBytes := songBytes + logBytes
	tables := map[string]int{}
	for _, t := range report.Tables {
		tables[t.Name] = t.Rows
	}
	names := []string{etl.TableSongs, etl.TableArtists, etl.TableUsers, etl.TableTime, etl.TableSongplays}
	summary := map[string]any{
		"songs":                 *songs,
		"events":                *events,
		"input_bytes":           inputBytes,
		"elapsed_ms":            elapsed.Milliseconds(),
		"mb_per_sec":            float64(inputBytes) / 1e6 / elapsed.Seconds(),
		"mem_alloc_bytes":       msAfter.Alloc,
		"mem_total_alloc_bytes": msAfter.TotalAlloc - msBefore.TotalAlloc,
		"gc_num":                msAfter.NumGC - msBefore.NumGC,
		"table_rows":            tables,
		"format":                *format,
	}
	if *topK > 0 {
		profiles := map[string]any{}
		for _, t := range report.Tables {
			profiles[t.Name] = t.Columns
		}
		summary["profiles"] = profiles
	}

	if *jsonOut {
		b, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(b))
		return 0
	}
	fmt.Printf("Input: %d songs, %d events (%d MB)\n", *songs, *events, inputBytes/1024/1024)
	fmt.Printf("Elapsed: %s\n", elapsed)
	fmt.Printf("Throughput: %.1f MB/s\n", float64(inputBytes)/1e6/elapsed.Seconds())
	for _, name := range names {
		fmt.Printf("  %-10s %d rows\n", name, tables[name])
	}
	fmt.Printf("Current Alloc: %d MB\n", msAfter.Alloc/1024/1024)
	fmt.Printf("Total Alloc (delta): %d MB\n", (msAfter.TotalAlloc-msBefore.TotalAlloc)/1024/1024)
	fmt.Printf("GC cycles (delta): %d\n", msAfter.NumGC-msBefore.NumGC)
	if *topK > 0 {
		for _, name := range names {
			if c := job.Profile(name); c != nil {
				fmt.Printf("\n[%s] %s", name, c.ReportText())
			}
		}
	}
	return 0
}
