// Package compression implements the compression stage of the message
// codec pipeline (spec component C4): "deflate" and "brotli".
//
// Grounded on original_source/hyperborealib/src/crypto/compression/{deflate,brotli}.rs,
// reworked onto the Go libraries the example pack actually uses for these
// algorithms: github.com/klauspost/compress/flate (teacher's deflate
// implementation of choice) and github.com/andybalholm/brotli.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
)

// Algorithm identifies a compression stage of the pipeline grammar.
type Algorithm string

const (
	// None passes data through unchanged. Not a wire token by itself; the
	// pipeline grammar simply omits the compression segment.
	None Algorithm = ""

	// Deflate is the "deflate" pipeline token.
	Deflate Algorithm = "deflate"

	// Brotli is the "brotli" pipeline token.
	Brotli Algorithm = "brotli"
)

// Parse validates a pipeline compression token.
func Parse(token string) (Algorithm, error) {
	switch Algorithm(token) {
	case Deflate:
		return Deflate, nil
	case Brotli:
		return Brotli, nil
	default:
		return None, fmt.Errorf("compression: unknown algorithm %q", token)
	}
}

// Compress applies the algorithm to data.
func Compress(alg Algorithm, data []byte) ([]byte, error) {
	switch alg {
	case None:
		return data, nil

	case Deflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case Brotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("compression: unknown algorithm %q", alg)
	}
}

// Decompress reverses Compress.
func Decompress(alg Algorithm, data []byte) ([]byte, error) {
	switch alg {
	case None:
		return data, nil

	case Deflate:
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		return io.ReadAll(r)

	case Brotli:
		r := brotli.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)

	default:
		return nil, fmt.Errorf("compression: unknown algorithm %q", alg)
	}
}
