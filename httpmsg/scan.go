// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

import "github.com/intuitivelabs/bytescase"

// isTokenChar reports whether c is a valid RFC 7230 tchar.
//
//	tchar = "!" / "#" / "$" / "%" / "&" / "'" / "*" / "+" / "-" / "." /
//	        "^" / "_" / "`" / "|" / "~" / DIGIT / ALPHA
func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// isQDText reports whether c may appear unescaped inside a quoted-string
// body: HTAB, SP, the single byte '!', and the two printable ranges that
// skip the double-quote (0x22) and backslash (0x5C).
func isQDText(c byte) bool {
	if c == '\t' || c == ' ' || c == '!' {
		return true
	}
	return (c >= 0x23 && c <= 0x5B) || (c >= 0x5D && c <= 0x7E)
}

// isQuotedPairChar reports whether c may follow a backslash inside a
// quoted-string (VCHAR / HTAB / SP).
func isQuotedPairChar(c byte) bool {
	return c == '\t' || c == ' ' || (c >= 0x21 && c <= 0x7E)
}

// skipToken advances past a run of token characters, stopping at the
// first non-token byte or at len(buf).
func skipToken(buf []byte, offs int) int {
	i := offs
	for i < len(buf) && isTokenChar(buf[i]) {
		i++
	}
	return i
}

// skipTokenDelim advances past a run of token characters, also stopping
// early on the extra delimiter byte delim (used for header names, which
// stop at ':' in addition to whitespace).
func skipTokenDelim(buf []byte, offs int, delim byte) int {
	i := offs
	for i < len(buf) && buf[i] != delim && isTokenChar(buf[i]) {
		i++
	}
	return i
}

// skipFieldChars advances past a run of bytes that are none of SP, HTAB,
// CR or LF. Unlike skipToken (restricted to RFC 7230 tchar), this is used
// for start-line fields that are not themselves tokens — the
// request-target (which carries '/', ':', '?', '&', ...) and the
// HTTP-version (which carries '/' and '.') — where the only real
// delimiter is whitespace or the line terminator.
func skipFieldChars(buf []byte, offs int) int {
	i := offs
	for i < len(buf) {
		switch buf[i] {
		case ' ', '\t', '\r', '\n':
			return i
		}
		i++
	}
	return i
}

// skipWS advances past SP/HTAB.
func skipWS(buf []byte, offs int) int {
	i := offs
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}
	return i
}

// skipCRLF consumes exactly one line terminator (CRLF, or a lone CR/LF,
// mirroring the teacher's tolerant line-ending handling). It returns the
// new offset and the number of bytes consumed.
func skipCRLF(buf []byte, offs int) (int, int, ParseErr) {
	if offs >= len(buf) {
		return offs, 0, ErrMoreBytes
	}
	switch buf[offs] {
	case '\r':
		if offs+1 >= len(buf) {
			return offs, 0, ErrMoreBytes
		}
		if buf[offs+1] == '\n' {
			return offs + 2, 2, ErrOk
		}
		return offs + 1, 1, ErrOk
	case '\n':
		return offs + 1, 1, ErrOk
	default:
		return offs, 0, ErrBadChar
	}
}

// skipLWS consumes linear whitespace, including folded continuation lines
// (CRLF followed by at least one SP/HTAB). It returns the new offset, the
// number of trailing CRLF bytes consumed by the *final* line break (0 if
// the value continues without one), and ErrEmpty if the line ended with no
// folded continuation (i.e. end of header value).
func skipLWS(buf []byte, offs int, _ int) (int, int, ParseErr) {
	i := offs
	for {
		j := skipWS(buf, i)
		if j > i {
			i = j
			continue
		}
		if i >= len(buf) {
			return i, 0, ErrMoreBytes
		}
		if buf[i] != '\r' && buf[i] != '\n' {
			return i, 0, ErrOk
		}
		end, crl, err := skipCRLF(buf, i)
		if err != ErrOk {
			return end, 0, err
		}
		if end >= len(buf) {
			return i, crl, ErrEmpty
		}
		if buf[end] != ' ' && buf[end] != '\t' {
			return i, crl, ErrEmpty
		}
		i = end
	}
}

// skipLine advances to the byte after the line terminator ending the
// current line, treating everything before it as line content. It returns
// the offset after the terminator and the terminator length (1 or 2), or
// ErrMoreBytes if no terminator was found yet.
func skipLine(buf []byte, offs int) (int, int, ParseErr) {
	i := offs
	for i < len(buf) && buf[i] != '\r' && buf[i] != '\n' {
		i++
	}
	if i >= len(buf) {
		return i, 0, ErrMoreBytes
	}
	end, crl, err := skipCRLF(buf, i)
	return end, crl, err
}

// hexToU accumulates the hex digits in s into a uint64, rejecting
// overflow (the RFC 7230 §4.1 chunk-size accumulation; decodeChunkSizeLine
// carries its own copy of this loop and does not call hexToU).
func hexToU(s []byte) (uint64, bool) {
	var v uint64
	if len(s) == 0 {
		return 0, false
	}
	for _, c := range s {
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return 0, false
		}
		if (^uint64(0)-d)/16 < v {
			return 0, false
		}
		v = v*16 + d
	}
	return v, true
}

// equalFoldASCII is the case-insensitive byte comparison used throughout
// this package for header names and tokens; it delegates to the teacher's
// own low-level tokenization collaborator.
func equalFoldASCII(a, b []byte) bool {
	return bytescase.CmpEq(a, b)
}
