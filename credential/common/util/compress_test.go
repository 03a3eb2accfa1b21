package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple string", input: []byte("Hello, World!")},
		{name: "empty data", input: []byte{}},
		{name: "large data", input: bytes.Repeat([]byte("This is a test string for compression. "), 1000)},
		{name: "unicode data", input: []byte("Hello 世界! Привет! こんにちは!")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := CompressToBase64URL(tt.input)
			require.NoError(t, err)
			assert.NotContains(t, encoded, "=")

			decoded, err := DecompressFromBase64URL(encoded)
			require.NoError(t, err)
			assert.Equal(t, len(tt.input), len(decoded))
			assert.True(t, bytes.Equal(tt.input, decoded))
		})
	}
}

func TestDecompress_Invalid(t *testing.T) {
	_, err := Decompress([]byte("not gzip"))
	assert.Error(t, err)

	_, err = DecompressFromBase64URL("***")
	assert.Error(t, err)
}

func TestDecompress_SizeLimit(t *testing.T) {
	compressed, err := Compress(make([]byte, MaxDecompressedSize+1))
	require.NoError(t, err)

	_, err = Decompress(compressed)
	assert.Error(t, err)
}
