package ioutils

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"path"
)

// OpenMaybeCompressed wraps r with a gzip reader when name ends in .gz or the
// stream starts with the gzip magic bytes.
func OpenMaybeCompressed(r io.Reader, name string) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	gz := path.Ext(name) == ".gz"
	if !gz {
		b, err := br.Peek(2)
		gz = err == nil && b[0] == 0x1f && b[1] == 0x8b
	}
	if gz {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return zr, nil
	}
	return io.NopCloser(br), nil
}

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
