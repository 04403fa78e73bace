// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

import "github.com/intuitivelabs/httpcore/compress"

// DecodedBody unwraps Content-Encoding (gzip/deflate) from Body when the
// header names a supported coding, leaving Body itself untouched —
// SPEC_FULL.md's C2 expansion: additive sugar, never load-bearing for
// State. Requests/responses with no Content-Encoding (or an
// unrecognized one) get Body back unchanged.
func (msg *Message) DecodedBody() ([]byte, error) {
	raw, ok := msg.Headers.Get("Content-Encoding")
	if !ok {
		return msg.Body, nil
	}
	coding := compress.ParseCoding(raw)
	if coding == compress.Identity {
		return msg.Body, nil
	}
	return compress.Decode(coding, msg.Body)
}
