// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

// TrEnc is a bitmask of the transfer-codings named in a Transfer-Encoding
// (or TE) header. See RFC 7230 §3.3.1 and the IANA transfer-coding
// registry.
type TrEnc uint

const (
	TrEncNone     TrEnc = 0
	TrEncChunkedF TrEnc = 1 << iota
	TrEncCompressF
	TrEncDeflateF
	TrEncGzipF
	TrEncIdentityF
	TrEncOtherF
)

// trEncResolve maps a coding name to its flag, grounded on the teacher's
// own length-bucketed dispatch (parse_tr_enc.go TrEncResolve).
func trEncResolve(n []byte) TrEnc {
	switch len(n) {
	case 7:
		if equalFoldASCII(n, []byte("chunked")) {
			return TrEncChunkedF
		} else if equalFoldASCII(n, []byte("deflate")) {
			return TrEncDeflateF
		}
	case 8:
		if equalFoldASCII(n, []byte("compress")) {
			return TrEncCompressF
		} else if equalFoldASCII(n, []byte("identity")) {
			return TrEncIdentityF
		}
	case 4:
		if equalFoldASCII(n, []byte("gzip")) {
			return TrEncGzipF
		}
	}
	return TrEncOtherF
}

// transferEncoding parses a raw Transfer-Encoding header value (possibly
// comma-separated, e.g. "gzip, chunked") and reports whether "chunked" is
// present as the *last* coding, which is the only configuration RFC 7230
// §3.3.3 allows this library to act on (a non-final "chunked" is a framing
// error left for the caller to reject).
func transferEncodingIsChunked(buf []byte, val PField) (chunkedLast bool, any bool) {
	var toks []Token
	ParseTokenList(buf, int(val.Offs), val.EndOffs(), &toks)
	if len(toks) == 0 {
		return false, false
	}
	last := toks[len(toks)-1]
	return trEncResolve(last.Val.Get(buf)) == TrEncChunkedF, true
}
