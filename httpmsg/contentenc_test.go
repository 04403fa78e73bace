// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

import (
	"bytes"
	"compress/gzip"
	"testing"
)

func TestDecodedBodyNoEncoding(t *testing.T) {
	msg := NewMessage()
	msg.Body = []byte("hello")
	out, err := msg.DecodedBody()
	if err != nil {
		t.Fatalf("DecodedBody() error = %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("DecodedBody() = %q, want %q", out, "hello")
	}
}

func TestDecodedBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write([]byte("hello, gzip"))
	_ = w.Close()

	msg := NewMessage()
	msg.Headers.Add("Content-Encoding", "gzip")
	msg.Body = buf.Bytes()

	out, err := msg.DecodedBody()
	if err != nil {
		t.Fatalf("DecodedBody() error = %v", err)
	}
	if string(out) != "hello, gzip" {
		t.Fatalf("DecodedBody() = %q, want %q", out, "hello, gzip")
	}
}

func TestDecodedBodyUnknownEncodingPassesThrough(t *testing.T) {
	msg := NewMessage()
	msg.Headers.Add("Content-Encoding", "br")
	msg.Body = []byte("raw-bytes")

	out, err := msg.DecodedBody()
	if err != nil {
		t.Fatalf("DecodedBody() error = %v", err)
	}
	if string(out) != "raw-bytes" {
		t.Fatalf("DecodedBody() = %q, want %q", out, "raw-bytes")
	}
}
