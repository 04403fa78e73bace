// Package compress is the trivial Content-Encoding wrapper §1 calls out as
// out of scope for the parsing core ("compression... trivial wrappers
// over a third-party codec"): gzip and deflate decode/encode built on
// klauspost/compress, the codec the retrieval pack's MiraiMindz-watt
// services (shockwave, bolt) depend on.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Coding names a Content-Encoding this package understands.
type Coding string

const (
	Gzip    Coding = "gzip"
	Deflate Coding = "deflate"
	Identity Coding = "identity"
)

// ParseCoding maps a Content-Encoding header value to a Coding, defaulting
// to Identity for anything unrecognized (compression is additive sugar,
// never load-bearing for message state — SPEC_FULL.md C2 expansion).
func ParseCoding(name string) Coding {
	switch Coding(name) {
	case Gzip, Deflate:
		return Coding(name)
	default:
		return Identity
	}
}

// Decode decompresses body per coding. Identity returns body unchanged.
func Decode(coding Coding, body []byte) ([]byte, error) {
	switch coding {
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "compress: gzip reader")
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "compress: gzip decode")
		}
		return out, nil
	case Deflate:
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "compress: deflate decode")
		}
		return out, nil
	default:
		return body, nil
	}
}

// Encode compresses body per coding. Identity returns body unchanged.
func Encode(coding Coding, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch coding {
	case Gzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, errors.Wrap(err, "compress: gzip encode")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "compress: gzip close")
		}
		return buf.Bytes(), nil
	case Deflate:
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, errors.Wrap(err, "compress: deflate writer")
		}
		if _, err := w.Write(body); err != nil {
			return nil, errors.Wrap(err, "compress: deflate encode")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "compress: deflate close")
		}
		return buf.Bytes(), nil
	default:
		return body, nil
	}
}
