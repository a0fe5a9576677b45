package compression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{None, Deflate, Brotli} {
		t.Run(string(alg), func(t *testing.T) {
			plaintext := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for compressibility")

			compressed, err := Compress(alg, plaintext)
			require.NoError(t, err)

			decompressed, err := Decompress(alg, compressed)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decompressed)
		})
	}
}

func TestDeflateActuallyShrinksRepetitiveInput(t *testing.T) {
	plaintext := make([]byte, 4096)
	for i := range plaintext {
		plaintext[i] = 'a'
	}

	compressed, err := Compress(Deflate, plaintext)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(plaintext))
}

func TestParseRejectsUnknownToken(t *testing.T) {
	_, err := Parse("gzip")
	assert.Error(t, err)
}

func TestParseAcceptsKnownTokens(t *testing.T) {
	alg, err := Parse("deflate")
	require.NoError(t, err)
	assert.Equal(t, Deflate, alg)

	alg, err = Parse("brotli")
	require.NoError(t, err)
	assert.Equal(t, Brotli, alg)
}

func TestDecompressRejectsUnknownAlgorithm(t *testing.T) {
	_, err := Decompress(Algorithm("bogus"), []byte("data"))
	assert.Error(t, err)
}
