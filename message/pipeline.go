// Package message implements Hyperborea's message codec pipeline (spec
// component C4): a `base64[/<encryption>][/<compression>]` encoding
// descriptor grammar, deterministic AEAD nonce/key derivation, and the
// plaintext signature every Message carries.
//
// Grounded on original_source/hyperborealib/src/rest_api/send/{message,message_encoding,
// text_compression,text_encryption,text_encoding}.rs, which compose the
// same three stages (compression, encryption, base64) behind a single
// descriptor string.
package message

import (
	"fmt"
	"strings"

	"github.com/hyperborea/hyperborea/crypto/compression"
	"github.com/hyperborea/hyperborea/crypto/encryption"
)

// Pipeline is a parsed encoding descriptor.
type Pipeline struct {
	Encryption  encryption.Algorithm
	Compression compression.Algorithm
}

// String renders the pipeline back into its wire descriptor form.
func (p Pipeline) String() string {
	var b strings.Builder
	b.WriteString("base64")
	if p.Encryption != encryption.None {
		b.WriteByte('/')
		b.WriteString(string(p.Encryption))
	}
	if p.Compression != compression.None {
		b.WriteByte('/')
		b.WriteString(string(p.Compression))
	}
	return b.String()
}

// ParsePipeline parses a wire encoding descriptor per spec.md §4.4's
// grammar: `base64` | `base64/<compression>` | `base64/<encryption>` |
// `base64/<encryption>/<compression>`.
func ParsePipeline(descriptor string) (Pipeline, error) {
	parts := strings.Split(descriptor, "/")
	if len(parts) == 0 || parts[0] != "base64" {
		return Pipeline{}, fmt.Errorf("message: encoding must start with \"base64\", got %q", descriptor)
	}

	var p Pipeline

	switch rest := parts[1:]; len(rest) {
	case 0:
		// identity pipeline

	case 1:
		if enc, err := encryption.Parse(rest[0]); err == nil {
			p.Encryption = enc
			break
		}
		if comp, err := compression.Parse(rest[0]); err == nil {
			p.Compression = comp
			break
		}
		return Pipeline{}, fmt.Errorf("message: unrecognized pipeline token %q", rest[0])

	case 2:
		enc, err := encryption.Parse(rest[0])
		if err != nil {
			return Pipeline{}, fmt.Errorf("message: %w", err)
		}
		comp, err := compression.Parse(rest[1])
		if err != nil {
			return Pipeline{}, fmt.Errorf("message: %w", err)
		}
		p.Encryption = enc
		p.Compression = comp

	default:
		return Pipeline{}, fmt.Errorf("message: encoding %q has too many pipeline stages", descriptor)
	}

	return p, nil
}
