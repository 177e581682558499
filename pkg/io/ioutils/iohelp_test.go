package ioutils

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMaybeCompressed(t *testing.T) {
	plain := []byte("{\"song_id\":\"S1\"}\n")
	gz, err := Compress(plain)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "plain.json", data: plain},
		{name: "sniffed.json", data: gz},
		{name: "named.json.gz", data: gz},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := OpenMaybeCompressed(bytes.NewReader(tt.data), tt.name)
			require.NoError(t, err)
			defer func() { _ = rc.Close() }()
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestOpenMaybeCompressedShortInput(t *testing.T) {
	rc, err := OpenMaybeCompressed(bytes.NewReader([]byte("x")), "one.json")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}
