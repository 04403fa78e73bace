// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

import "bytes"

// SerializeRequest emits method SP target SP "HTTP/1.1" CRLF, followed by
// the raw header block (with its terminating blank-line CRLF) and the
// body bytes verbatim. No header is synthesized — in particular no
// automatic Content-Length — per §4.3; callers own framing.
func SerializeRequest(method string, target string, headers *Headers, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(method)
	buf.WriteByte(' ')
	buf.WriteString(target)
	buf.WriteString(" HTTP/1.1\r\n")
	buf.Write(headers.GenerateRaw())
	buf.Write(body)
	return buf.Bytes()
}

// SerializeResponse emits "HTTP/1.1" SP status SP reason CRLF, the raw
// header block, then the body verbatim. statusCode is rendered as three
// decimal digits exactly as RFC 7230 §3.1.2 requires; a reason phrase may
// be empty but must not contain CR or LF (the caller's responsibility —
// see §7 "never thrown across the public surface": this is a write path,
// not a parser, so there is no state enum to report through).
func SerializeResponse(statusCode uint16, reason string, headers *Headers, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("HTTP/1.1 ")
	buf.WriteByte('0' + byte(statusCode/100%10))
	buf.WriteByte('0' + byte(statusCode/10%10))
	buf.WriteByte('0' + byte(statusCode%10))
	buf.WriteByte(' ')
	buf.WriteString(reason)
	buf.WriteString("\r\n")
	buf.Write(headers.GenerateRaw())
	buf.Write(body)
	return buf.Bytes()
}
