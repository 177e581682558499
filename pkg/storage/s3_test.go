package storage_test

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wdm0006/songlake/pkg/frame"
	"github.com/wdm0006/songlake/pkg/lake"
	"github.com/wdm0006/songlake/pkg/storage"
)

// fakeS3 serves the path-style subset of the S3 REST API the store uses:
// ListObjects (v1 and v2), GetObject, PutObject and DeleteObjects. Listings
// come back in map order so callers must sort.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

type listContents struct {
	Key  string `xml:"Key"`
	Size int    `xml:"Size"`
}

type listResult struct {
	XMLName     xml.Name       `xml:"ListBucketResult"`
	Name        string         `xml:"Name"`
	Prefix      string         `xml:"Prefix"`
	KeyCount    int            `xml:"KeyCount"`
	IsTruncated bool           `xml:"IsTruncated"`
	Contents    []listContents `xml:"Contents"`
}

type deleteRequest struct {
	Objects []struct {
		Key string `xml:"Key"`
	} `xml:"Object"`
}

type deleteResult struct {
	XMLName xml.Name `xml:"DeleteResult"`
	Deleted []struct {
		Key string `xml:"Key"`
	} `xml:"Deleted"`
}

func newFakeS3(t *testing.T, bucket string) (*fakeS3, *httptest.Server) {
	t.Helper()
	fs := &fakeS3{bucket: bucket, objects: make(map[string][]byte)}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeS3) seed(key string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.objects[key] = data
}

func (fs *fakeS3) keys() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []string
	for k := range fs.objects {
		out = append(out, k)
	}
	return out
}

func (fs *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != fs.bucket {
		fs.fail(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	q := r.URL.Query()
	switch {
	case r.Method == http.MethodGet && key == "":
		prefix := q.Get("prefix")
		res := listResult{Name: fs.bucket, Prefix: prefix}
		for k, v := range fs.objects {
			if strings.HasPrefix(k, prefix) {
				res.Contents = append(res.Contents, listContents{Key: k, Size: len(v)})
			}
		}
		res.KeyCount = len(res.Contents)
		fs.writeXML(w, res)
	case r.Method == http.MethodGet:
		data, ok := fs.objects[key]
		if !ok {
			fs.fail(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("ETag", fmt.Sprintf("%q", strconv.Itoa(len(data))))
		_, _ = w.Write(data)
	case r.Method == http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			fs.fail(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		fs.objects[key] = data
		w.Header().Set("ETag", fmt.Sprintf("%q", strconv.Itoa(len(data))))
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && q.Has("delete"):
		var req deleteRequest
		if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
			fs.fail(w, http.StatusBadRequest, "MalformedXML")
			return
		}
		var res deleteResult
		for _, o := range req.Objects {
			delete(fs.objects, o.Key)
			res.Deleted = append(res.Deleted, struct {
				Key string `xml:"Key"`
			}{Key: o.Key})
		}
		fs.writeXML(w, res)
	default:
		fs.fail(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func (fs *fakeS3) writeXML(w http.ResponseWriter, v any) {
	b, err := xml.Marshal(v)
	if err != nil {
		fs.fail(w, http.StatusInternalServerError, "InternalError")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(append([]byte(xml.Header), b...))
}

func (fs *fakeS3) fail(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "%s<Error><Code>%s</Code><Message>%s</Message></Error>", xml.Header, code, code)
}

func newS3Store(t *testing.T, srv *httptest.Server, bucket, prefix string) *storage.S3Store {
	t.Helper()
	s, err := storage.NewS3Store(bucket, prefix, storage.S3Options{
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		ForcePathStyle:  true,
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
		MaxRetries:      1,
	}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestS3StoreOperations(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeS3(t, "lake")
	s := newS3Store(t, srv, "lake", "run1")

	for _, k := range []string{
		"songs_v2/part-00000.parquet",
		"songs/year=2000/part-00000.parquet",
		"songs/_SUCCESS",
		"song_data/A/B/C/TRABCEI128F424C983.json",
		"song_data/A/A/B/TRAABJL12903CDCF1A.json",
	} {
		require.NoError(t, s.Put(ctx, k, []byte(k)))
	}
	fake.seed("elsewhere/songs/part-00000.parquet", []byte("x"))

	assert.ElementsMatch(t, []string{
		"run1/songs_v2/part-00000.parquet",
		"run1/songs/year=2000/part-00000.parquet",
		"run1/songs/_SUCCESS",
		"run1/song_data/A/B/C/TRABCEI128F424C983.json",
		"run1/song_data/A/A/B/TRAABJL12903CDCF1A.json",
		"elsewhere/songs/part-00000.parquet",
	}, fake.keys())

	keys, err := s.List(ctx, "songs")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"songs/_SUCCESS",
		"songs/year=2000/part-00000.parquet",
		"songs_v2/part-00000.parquet",
	}, keys)

	keys, err = storage.Glob(ctx, s, "song_data/*/*/*/*.json")
	require.NoError(t, err)
	require.Equal(t, []string{
		"song_data/A/A/B/TRAABJL12903CDCF1A.json",
		"song_data/A/B/C/TRABCEI128F424C983.json",
	}, keys)
	blobs, err := storage.FetchAll(ctx, s, keys, 2)
	require.NoError(t, err)
	for i, k := range keys {
		assert.Equal(t, k, string(blobs[i]))
	}

	_, err = s.Get(ctx, "songs/missing.parquet")
	assert.Error(t, err)

	require.NoError(t, s.DeletePrefix(ctx, "songs/"))
	keys, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"song_data/A/A/B/TRAABJL12903CDCF1A.json",
		"song_data/A/B/C/TRABCEI128F424C983.json",
		"songs_v2/part-00000.parquet",
	}, keys)
	assert.Contains(t, fake.keys(), "elsewhere/songs/part-00000.parquet")
}

func TestS3StoreLakeOverwrite(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeS3(t, "lake")
	s := newS3Store(t, srv, "lake", "out/")
	fake.seed("out/artists_v2/part-00000.snappy.parquet", []byte("keep"))

	schema := frame.Schema{Columns: []frame.ColumnSchema{
		{Name: "artist_id", Type: frame.KindString, Nullable: true},
		{Name: "name", Type: frame.KindString, Nullable: true},
	}}
	build := func(rows ...[]any) *frame.Frame {
		f := frame.NewFrame(schema)
		for i, r := range rows {
			f.AppendNullRow()
			for j, cs := range schema.Columns {
				require.NoError(t, f.SetCell(i, cs.Name, r[j]))
			}
		}
		return f
	}
	spec := lake.TableSpec{Name: "artists", PartitionBy: []string{"artist_id"}}
	w := lake.NewWriter(s, lake.FormatParquet, "", zap.NewNop())

	_, err := w.WriteTable(ctx, spec, build([]any{"AR1", "One"}, []any{"AR2", "Two"}))
	require.NoError(t, err)
	st, err := w.WriteTable(ctx, spec, build([]any{"AR3", "Three"}))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Files)

	keys, err := s.List(ctx, "artists")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"artists/_SUCCESS",
		"artists/artist_id=AR3/part-00000.snappy.parquet",
		"artists_v2/part-00000.snappy.parquet",
	}, keys)

	back, err := lake.ReadTable(ctx, s, "artists", schema, lake.FormatParquet)
	require.NoError(t, err)
	require.Equal(t, 1, back.Rows())
	assert.Equal(t, "AR3", back.Column(0).Value(0))
	assert.Equal(t, "Three", back.Column(1).Value(0))
}
