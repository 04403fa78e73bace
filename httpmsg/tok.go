// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE_BSD.txt file in the root of the source
// tree.

package httpmsg

// Token holds a single RFC 7230 token, e.g. the "chunked" in
// "Transfer-Encoding: chunked" or the "close" in "Connection: close".
// It is a thin PField wrapper so it can be reused directly as a list
// element when a header value is comma-separated.
type Token struct {
	Val PField
}

// ParseTokenList splits a comma-separated list of tokens starting at
// offs, appending each one found to out, and returns the offset where
// scanning stopped, which is end. CR and LF get no special treatment (they
// are skipped like any other non-token byte), so callers pass the bounds
// of an already isolated header value via end.
//
// This mirrors the teacher's PToken parameter-list scanning style (offset
// in, offset + error out, never throwing) but is trimmed to what the
// Connection/Transfer-Encoding/Upgrade header values need: a flat list of
// bare tokens, no chunk-extension-style "name=value" parameters.
func ParseTokenList(buf []byte, offs, end int, out *[]Token) int {
	i := offs
	for i < end {
		i = skipListSep(buf, i, end)
		if i >= end {
			break
		}
		start := i
		for i < end && isTokenChar(buf[i]) {
			i++
		}
		if i == start {
			// not a token char (e.g. stray ';' parameter): skip it so a
			// single malformed list element doesn't stall the whole scan
			i++
			continue
		}
		var t Token
		t.Val.Set(start, i)
		*out = append(*out, t)
	}
	return i
}

// skipListSep advances past comma-list separators: whitespace, commas and
// any ";param=val" decorations attached to the previous element.
func skipListSep(buf []byte, offs, end int) int {
	i := offs
	for i < end {
		switch buf[i] {
		case ' ', '\t', ',':
			i++
			continue
		case ';':
			// skip "; token [= (token|quoted-string)]"
			i++
			i = skipWS(buf, i)
			for i < end && isTokenChar(buf[i]) {
				i++
			}
			i = skipWS(buf, i)
			if i < end && buf[i] == '=' {
				i++
				i = skipWS(buf, i)
				if i < end && buf[i] == '"' {
					i++
					for i < end && buf[i] != '"' {
						if buf[i] == '\\' && i+1 < end {
							i++
						}
						i++
					}
					if i < end {
						i++
					}
				} else {
					for i < end && isTokenChar(buf[i]) {
						i++
					}
				}
			}
			continue
		}
		return i
	}
	return i
}

// TokenListHas reports whether any token in the list case-insensitively
// equals name (e.g. checking a "Connection" header for the "close" token).
func TokenListHas(buf []byte, toks []Token, name string) bool {
	n := []byte(name)
	for _, t := range toks {
		if equalFoldASCII(t.Val.Get(buf), n) {
			return true
		}
	}
	return false
}
