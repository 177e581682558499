package etl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/config"
	"github.com/wdm0006/songlake/pkg/frame"
	"github.com/wdm0006/songlake/pkg/lake"
	"github.com/wdm0006/songlake/pkg/storage"
)

const (
	songS1 = `{"num_songs": 1, "artist_id": "A1", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Artist", "song_id": "S1", "title": "X", "duration": 200.0, "year": 2000}`
	songS2 = `{"num_songs": 1, "artist_id": "A2", "artist_latitude": 35.14968, "artist_longitude": -90.04892, "artist_location": "Memphis, TN", "artist_name": "Other", "song_id": "S2", "title": "Y", "duration": 150.5, "year": 0}`

	eventU1 = `{"artist":"Artist","auth":"Logged In","firstName":"Ann","gender":"F","itemInSession":0,"lastName":"Lee","length":200.0,"level":"free","location":"Town","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":1,"song":"X","status":200,"ts":1541721000000,"userAgent":"UA","userId":"U1"}`
	eventU1Later = `{"artist":"Nobody","auth":"Logged In","firstName":"Ann","gender":"F","itemInSession":1,"lastName":"Lee","length":100.0,"level":"paid","location":"Town","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":1,"song":"Unknown","status":200,"ts":1541721060000,"userAgent":"UA","userId":"U1"}`
	eventU2Home  = `{"artist":null,"auth":"Logged In","firstName":"Bob","gender":"M","itemInSession":0,"lastName":"Ray","length":null,"level":"free","location":"City","method":"GET","page":"Home","registration":1540919166796.0,"sessionId":7,"song":null,"status":200,"ts":1541721100000,"userAgent":"UA2","userId":"U2"}`
)

func put(t *testing.T, root, key, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func seedInput(t *testing.T, root string) {
	t.Helper()
	put(t, root, "song_data/A/A/A/TRAAA01.json", songS1)
	put(t, root, "song_data/A/A/B/TRAAB01.json", songS1)
	put(t, root, "song_data/A/B/A/TRABA01.json", songS2)
	put(t, root, "song_data/README.md", "not a song")
	put(t, root, "log-data/2018/11/2018-11-08-events.json", eventU1+"\n"+eventU2Home+"\n"+eventU1Later+"\n")
}

func testConfig() *config.Config {
	return &config.Config{
		SongGlob:      "song_data/*/*/*/*.json",
		LogGlob:       "log-data/*/*/*.json",
		TimeZone:      "UTC",
		MalformedMode: "failfast",
		Format:        "parquet",
		Compression:   "snappy",
		Workers:       4,
	}
}

type env struct {
	inRoot string
	in     storage.Store
	out    *storage.LocalStore
}

func newEnv(t *testing.T) env {
	t.Helper()
	inRoot := t.TempDir()
	in, err := storage.NewLocalStore(inRoot, zap.NewNop())
	require.NoError(t, err)
	out, err := storage.NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return env{inRoot: inRoot, in: in, out: out}
}

func readTable(t *testing.T, s storage.Store, name string, schema frame.Schema) *frame.Frame {
	t.Helper()
	f, err := lake.ReadTable(context.Background(), s, name, schema, lake.FormatParquet)
	require.NoError(t, err)
	return f
}

func value(t *testing.T, f *frame.Frame, row int, name string) any {
	t.Helper()
	c, ok := f.ColumnByName(name)
	require.True(t, ok, name)
	return c.Value(row)
}

func snapshot(t *testing.T, s storage.Store) map[string][]byte {
	t.Helper()
	ctx := context.Background()
	keys, err := s.List(ctx, "")
	require.NoError(t, err)
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		b, err := s.Get(ctx, k)
		require.NoError(t, err)
		out[k] = b
	}
	return out
}

func TestJobEndToEnd(t *testing.T) {
	convey.Convey("Given song metadata and a day of event logs", t, func() {
		e := newEnv(t)
		seedInput(t, e.inRoot)
		job, err := New(testConfig(), e.in, e.out, zap.NewNop())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Running both pipelines", func() {
			report, err := job.Run(context.Background(), PipelineAll)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("songs holds one row per song_id, partitioned by year and artist", func() {
				songs := readTable(t, e.out, TableSongs, SongsSchema)
				convey.So(songs.Rows(), convey.ShouldEqual, 2)
				keys, err := e.out.List(context.Background(), "songs/")
				convey.So(err, convey.ShouldBeNil)
				convey.So(keys, convey.ShouldContain, "songs/year=2000/artist_id=A1/part-00000.snappy.parquet")
				convey.So(keys, convey.ShouldContain, "songs/year=0/artist_id=A2/part-00000.snappy.parquet")
				convey.So(keys, convey.ShouldContain, "songs/_SUCCESS")
			})

			convey.Convey("artists are unique and renamed", func() {
				artists := readTable(t, e.out, TableArtists, ArtistsSchema)
				convey.So(artists.Rows(), convey.ShouldEqual, 2)
				convey.So(value(t, artists, 0, "artist_id"), convey.ShouldEqual, "A1")
				convey.So(value(t, artists, 0, "name"), convey.ShouldEqual, "Artist")
				convey.So(value(t, artists, 0, "latitude"), convey.ShouldBeNil)
				convey.So(value(t, artists, 1, "location"), convey.ShouldEqual, "Memphis, TN")
			})

			convey.Convey("users only come from NextSong events and carry the latest level", func() {
				users := readTable(t, e.out, TableUsers, UsersSchema)
				convey.So(users.Rows(), convey.ShouldEqual, 1)
				convey.So(value(t, users, 0, "userId"), convey.ShouldEqual, "U1")
				convey.So(value(t, users, 0, "level"), convey.ShouldEqual, "paid")
			})

			convey.Convey("time breaks the event timestamp down in UTC", func() {
				times := readTable(t, e.out, TableTime, TimeSchema)
				convey.So(times.Rows(), convey.ShouldEqual, 2)
				var row = -1
				for i := 0; i < times.Rows(); i++ {
					if value(t, times, i, "hour") == int64(23) && value(t, times, i, "weekday") == int64(5) && value(t, times, i, "timestamp").(time.Time).Minute() == 50 {
						row = i
					}
				}
				convey.So(row, convey.ShouldBeGreaterThanOrEqualTo, 0)
				convey.So(value(t, times, row, "day"), convey.ShouldEqual, int64(8))
				convey.So(value(t, times, row, "week"), convey.ShouldEqual, int64(45))
				convey.So(value(t, times, row, "month"), convey.ShouldEqual, int64(11))
				convey.So(value(t, times, row, "year"), convey.ShouldEqual, int64(2018))
			})

			convey.Convey("exactly one songplay links U1 to S1", func() {
				sp := readTable(t, e.out, TableSongplays, SongplaysSchema)
				convey.So(sp.Rows(), convey.ShouldEqual, 1)
				convey.So(value(t, sp, 0, "user_id"), convey.ShouldEqual, "U1")
				convey.So(value(t, sp, 0, "song_id"), convey.ShouldEqual, "S1")
				convey.So(value(t, sp, 0, "artist_id"), convey.ShouldEqual, "A1")
				convey.So(value(t, sp, 0, "session_id"), convey.ShouldEqual, int64(1))
				convey.So(value(t, sp, 0, "level"), convey.ShouldEqual, "free")
				convey.So(value(t, sp, 0, "year"), convey.ShouldEqual, int64(2018))
				convey.So(value(t, sp, 0, "month"), convey.ShouldEqual, int64(11))
				start := value(t, sp, 0, "start_time").(time.Time)
				convey.So(start.Equal(time.Date(2018, 11, 8, 23, 50, 0, 0, time.UTC)), convey.ShouldBeTrue)
				convey.So(value(t, sp, 0, "songplay_id"), convey.ShouldNotBeEmpty)
			})

			convey.Convey("the report describes every table", func() {
				convey.So(report.InputFiles["song"], convey.ShouldEqual, 3)
				convey.So(report.InputFiles["log"], convey.ShouldEqual, 1)
				convey.So(report.Tables, convey.ShouldHaveLength, 5)
				st, ok := report.Table(TableSongplays)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(st.Rows, convey.ShouldEqual, 1)
				convey.So(st.Partitions, convey.ShouldEqual, 1)
			})

			convey.Convey("a second run leaves byte-identical tables", func() {
				before := snapshot(t, e.out)
				again, err := New(testConfig(), e.in, e.out, zap.NewNop())
				convey.So(err, convey.ShouldBeNil)
				_, err = again.Run(context.Background(), PipelineAll)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snapshot(t, e.out), convey.ShouldResemble, before)
			})
		})
	})
}

func TestLogPipelineWithoutSongs(t *testing.T) {
	e := newEnv(t)
	seedInput(t, e.inRoot)
	job, err := New(testConfig(), e.in, e.out, zap.NewNop())
	require.NoError(t, err)

	_, err = job.Run(context.Background(), PipelineLog)
	require.NoError(t, err)

	sp := readTable(t, e.out, TableSongplays, SongplaysSchema)
	assert.Zero(t, sp.Rows())
	keys, err := e.out.List(context.Background(), "songplays/")
	require.NoError(t, err)
	assert.Equal(t, []string{"songplays/_SUCCESS"}, keys)
	users := readTable(t, e.out, TableUsers, UsersSchema)
	assert.Equal(t, 1, users.Rows())
}

func TestMalformedModes(t *testing.T) {
	e := newEnv(t)
	seedInput(t, e.inRoot)
	put(t, e.inRoot, "log-data/2018/11/2018-11-09-events.json", eventU1+"\n{not json\n")

	job, err := New(testConfig(), e.in, e.out, zap.NewNop())
	require.NoError(t, err)
	_, err = job.Run(context.Background(), PipelineLog)
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)

	cfg := testConfig()
	cfg.MalformedMode = "dropmalformed"
	job, err = New(cfg, e.in, e.out, zap.NewNop())
	require.NoError(t, err)
	report, err := job.Run(context.Background(), PipelineLog)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DroppedRecords["log"])
	assert.Equal(t, 2, report.InputFiles["log"])
}

func TestTimeZone(t *testing.T) {
	e := newEnv(t)
	seedInput(t, e.inRoot)
	cfg := testConfig()
	cfg.TimeZone = "America/New_York"
	job, err := New(cfg, e.in, e.out, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, job.ProcessLogData(context.Background()))

	times := readTable(t, e.out, TableTime, TimeSchema)
	require.Equal(t, 2, times.Rows())
	for i := 0; i < times.Rows(); i++ {
		assert.Equal(t, int64(18), value(t, times, i, "hour"))
	}
}

func TestJSONLFormat(t *testing.T) {
	e := newEnv(t)
	seedInput(t, e.inRoot)
	cfg := testConfig()
	cfg.Format = "jsonl"
	cfg.Compression = "gzip"
	job, err := New(cfg, e.in, e.out, zap.NewNop())
	require.NoError(t, err)
	_, err = job.Run(context.Background(), PipelineAll)
	require.NoError(t, err)

	sp, err := lake.ReadTable(context.Background(), e.out, TableSongplays, SongplaysSchema, lake.FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 1, sp.Rows())
	keys, err := e.out.List(context.Background(), "users/")
	require.NoError(t, err)
	assert.Contains(t, keys, "users/part-00000.json.gz")
}

func TestTableProfiles(t *testing.T) {
	e := newEnv(t)
	seedInput(t, e.inRoot)
	cfg := testConfig()
	cfg.ReportTopK = 1
	job, err := New(cfg, e.in, e.out, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, job.Profile(TableUsers))

	report, err := job.Run(context.Background(), PipelineAll)
	require.NoError(t, err)

	c := job.Profile(TableUsers)
	require.NotNil(t, c)
	assert.Contains(t, c.ReportText(), "- level (string): count=1 nulls=0\n")
	assert.Contains(t, c.ReportText(), `"paid": 1`)

	st, ok := report.Table(TableUsers)
	require.True(t, ok)
	var level map[string]int
	for _, jc := range st.Columns {
		if jc.Name == "level" {
			level = jc.Str.Top
		}
	}
	assert.Equal(t, map[string]int{"paid": 1}, level)

	songs, ok := report.Table(TableSongs)
	require.True(t, ok)
	for _, jc := range songs.Columns {
		if jc.Str != nil {
			assert.LessOrEqual(t, len(jc.Str.Top), 1, jc.Name)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	e := newEnv(t)
	seedInput(t, e.inRoot)
	job, err := New(testConfig(), e.in, e.out, zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = job.Run(ctx, PipelineAll)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParsePipelines(t *testing.T) {
	for in, want := range map[string]Pipelines{"": PipelineAll, "ALL": PipelineAll, "song": PipelineSong, " log ": PipelineLog} {
		got, err := ParsePipelines(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePipelines("users")
	assert.Error(t, err)
}
