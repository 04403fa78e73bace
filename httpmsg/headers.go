// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

import (
	"strings"
)

// HdrT recognizes the small set of headers the message parser needs to
// act on directly; every other header is just carried, not classified.
type HdrT uint8

const (
	HdrOther HdrT = iota
	HdrContentLength
	HdrTransferEncoding
	HdrConnection
	HdrHost
	HdrContentEncoding
	HdrUpgrade
)

var wellKnown = map[string]HdrT{
	"content-length":    HdrContentLength,
	"transfer-encoding": HdrTransferEncoding,
	"connection":        HdrConnection,
	"host":              HdrHost,
	"content-encoding":  HdrContentEncoding,
	"upgrade":           HdrUpgrade,
}

func classify(name []byte) HdrT {
	// lower-cased comparison on a stack copy; header names are short.
	if t, ok := wellKnown[strings.ToLower(string(name))]; ok {
		return t
	}
	return HdrOther
}

// HeaderState is the terminal/non-terminal state of an incremental
// ParseRawMessage call, matching the Data Model contract verbatim:
// Complete, Incomplete or Error.
type HeaderState uint8

const (
	HeadersIncomplete HeaderState = iota
	HeadersComplete
	HeadersError
)

// rawHeader is one parsed name/value pair together with its recognized
// type, kept in arrival order.
type rawHeader struct {
	Name  string
	Value string
	Type  HdrT
}

// Headers is an ordered, case-insensitive multi-map of header name to
// value: the "Message Headers" external collaborator of §3, implemented
// in full here (the teacher's HdrLst is parse-only; mutation, generation
// and the typed single/multi accessors are this module's addition).
type Headers struct {
	items     []rawHeader
	lineLimit int // max bytes for any single header/start line; 0 = no limit

	// incremental parse state
	offs      int
	state     HeaderState
	malformed bool // saw at least one damaged (colon-less) header line
}

// DefaultHeaderLineLimit matches §6 Limits: "Default: 1000".
const DefaultHeaderLineLimit = 1000

// NewHeaders returns an empty Headers set with the default line limit.
func NewHeaders() *Headers {
	return &Headers{lineLimit: DefaultHeaderLineLimit}
}

// SetLineLimit installs the configured HeaderLineLimit (§6 Configuration).
func (h *Headers) SetLineLimit(n int) {
	if n > 0 {
		h.lineLimit = n
	}
}

// Reset clears all headers and the incremental parse state, ready for a
// fresh message.
func (h *Headers) Reset() {
	h.items = h.items[:0]
	h.offs = 0
	h.state = HeadersIncomplete
	h.malformed = false
}

// Malformed reports whether any header line parsed so far was missing its
// colon (§7 "Damaged header line": recoverable, not fatal — the caller
// marks the owning Message invalid but keeps parsing).
func (h *Headers) Malformed() bool {
	return h.malformed
}

// Set replaces every existing value for name with a single value,
// preserving name's first position in iteration order (or appending if
// name was not present).
func (h *Headers) Set(name, value string) {
	t := classify([]byte(name))
	replaced := false
	out := h.items[:0:0]
	for _, it := range h.items {
		if strings.EqualFold(it.Name, name) {
			if !replaced {
				out = append(out, rawHeader{Name: name, Value: value, Type: t})
				replaced = true
			}
			continue
		}
		out = append(out, it)
	}
	if !replaced {
		out = append(out, rawHeader{Name: name, Value: value, Type: t})
	}
	h.items = out
}

// Add appends a new name/value pair, preserving any existing values for
// the same name (an ordered multi-map permits repeated keys).
func (h *Headers) Add(name, value string) {
	h.items = append(h.items, rawHeader{Name: name, Value: value, Type: classify([]byte(name))})
}

// Has reports whether at least one header named name is present.
func (h *Headers) Has(name string) bool {
	for _, it := range h.items {
		if strings.EqualFold(it.Name, name) {
			return true
		}
	}
	return false
}

// Get returns the first value for name.
func (h *Headers) Get(name string) (string, bool) {
	for _, it := range h.items {
		if strings.EqualFold(it.Name, name) {
			return it.Value, true
		}
	}
	return "", false
}

// GetMulti returns every comma-separated element across every header
// occurrence named name, in order, with surrounding whitespace trimmed —
// the "get-multi-value (comma-split)" operation of §3.
func (h *Headers) GetMulti(name string) []string {
	var out []string
	for _, it := range h.items {
		if !strings.EqualFold(it.Name, name) {
			continue
		}
		for _, part := range strings.Split(it.Value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Len returns the number of header entries (not unique names).
func (h *Headers) Len() int { return len(h.items) }

// GenerateRaw emits the wire form of this header set: each entry as
// "Name: Value\r\n", followed by the blank-line CRLF terminating the
// header block. No header is ever synthesized (e.g. no automatic
// Content-Length) — callers own that per §4.3.
func (h *Headers) GenerateRaw() []byte {
	var sb strings.Builder
	for _, it := range h.items {
		sb.WriteString(it.Name)
		sb.WriteString(": ")
		sb.WriteString(it.Value)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// ConnectionHasClose reports whether a Connection header lists the
// "close" token (case-insensitive, comma-split) — used by the server to
// decide whether to break the connection after responding (§4.4 step 5).
func (h *Headers) ConnectionHasClose() bool {
	for _, tok := range h.GetMulti("Connection") {
		if strings.EqualFold(tok, "close") {
			return true
		}
	}
	return false
}

// ParseRawMessage incrementally parses a CRLF-terminated header block out
// of buf, starting wherever the previous call left off (Headers tracks
// its own resume offset), and reports (state, bodyOffset): state is
// Complete once the blank line terminating the block has been consumed
// (bodyOffset then points at the first body byte), Incomplete if buf was
// exhausted before the block ended (call again once more bytes are
// appended to the *same* buf), or Error on a line exceeding the
// configured line limit. A header line missing its colon is recoverable
// (§7 "Damaged header line"): it is skipped and Malformed() is set, but
// parsing continues rather than returning Error.
//
// Grounded on the teacher's ParseHeaders/ParseHdrLine loop (parse_headers.go):
// same per-line state machine (name, ':', LWS-folded value, CRLF), but
// generalized here from parse-only fields into mutating Set/Add calls so
// the same type also backs Response/Request construction for the
// serializer (§4.3).
func (h *Headers) ParseRawMessage(buf []byte) (HeaderState, int) {
	if h.state == HeadersComplete || h.state == HeadersError {
		return h.state, h.offs
	}
	i := h.offs
	for {
		lineStart := i
		// blank line => end of header block
		if end, crl, err := skipCRLF(buf, i); err == ErrOk {
			h.offs = end
			h.state = HeadersComplete
			return HeadersComplete, end
		} else if err == ErrMoreBytes {
			h.offs = lineStart
			return HeadersIncomplete, lineStart
		}
		// not a blank line: parse "Name: Value" (with LWS folding)
		nameEnd := skipTokenDelim(buf, i, ':')
		if nameEnd >= len(buf) {
			return h.checkLineLimit(lineStart, len(buf))
		}
		if buf[nameEnd] != ':' {
			// Damaged header line (no colon) is recoverable per spec.md
			// §7: mark it and skip to the next line instead of aborting
			// the whole header block. ParseNext turns h.malformed into
			// Valid=false on the owning Message once headers complete.
			end, _, err := skipLine(buf, nameEnd)
			if err == ErrMoreBytes {
				return h.checkLineLimit(lineStart, len(buf))
			}
			h.malformed = true
			i = end
			if lim := h.lineLimit; lim > 0 && (i-lineStart) > lim {
				h.state = HeadersError
				return HeadersError, lineStart
			}
			continue
		}
		name := string(buf[i:nameEnd])
		j := nameEnd + 1
		j = skipWS(buf, j)
		var parts []string
		for {
			k, crl, err := skipLine(buf, j)
			if err == ErrMoreBytes {
				return h.checkLineLimit(lineStart, len(buf))
			}
			// each folded line's content is joined to the value by one SP
			parts = append(parts, strings.TrimSpace(string(buf[j:k-crl])))
			// folded continuation: next line starts with SP/HTAB
			if k < len(buf) && (buf[k] == ' ' || buf[k] == '\t') {
				j = k
				continue
			}
			j = k
			break
		}
		value := strings.Join(parts, " ")
		h.items = append(h.items, rawHeader{Name: name, Value: value, Type: classify([]byte(name))})
		i = j
		if lim := h.lineLimit; lim > 0 && (i-lineStart) > lim {
			h.state = HeadersError
			return HeadersError, lineStart
		}
	}
}

// checkLineLimit distinguishes "need more bytes" from "line too long":
// once a partially-read line already exceeds the configured limit, more
// bytes will never make it valid, so this is unrecoverable (§6 Limits,
// §7 "overlong line").
func (h *Headers) checkLineLimit(lineStart, bufLen int) (HeaderState, int) {
	if lim := h.lineLimit; lim > 0 && (bufLen-lineStart) > lim {
		h.state = HeadersError
		return HeadersError, lineStart
	}
	h.offs = lineStart
	return HeadersIncomplete, lineStart
}
