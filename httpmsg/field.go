// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package httpmsg implements incremental, fragmentation-tolerant HTTP/1.1
// message-syntax parsing and serialization (RFC 7230): the chunked
// transfer-coding decoder, the request/response start-line and header
// parser, and the message serializer. It has no knowledge of transports,
// connections or routing — those live in the server and client packages.
package httpmsg

// OffsT is the type used for offsets and lengths inside a parse buffer.
type OffsT uint32

// PField is a parsed field: an offset and length inside a buffer. It never
// copies bytes; call Get to materialize the slice it denotes.
type PField struct {
	Offs OffsT
	Len  OffsT
}

// Set points a PField at buf[start:end).
func (p *PField) Set(start, end int) {
	if end < start {
		panic("httpmsg: invalid field range")
	}
	p.Offs = OffsT(start)
	p.Len = OffsT(end - start)
}

// Reset clears a PField to the empty value.
func (p *PField) Reset() {
	p.Offs = 0
	p.Len = 0
}

// Extend grows a PField's end to newEnd, keeping its start.
func (p *PField) Extend(newEnd int) {
	if newEnd < int(p.Offs) {
		panic("httpmsg: invalid field end")
	}
	p.Len = OffsT(newEnd) - p.Offs
}

// Empty returns true if the field has zero length.
func (p PField) Empty() bool {
	return p.Len == 0
}

// EndOffs returns the offset one past the end of the field.
func (p PField) EndOffs() int {
	return int(p.Offs) + int(p.Len)
}

// Get returns the byte slice inside buf the field denotes.
func (p PField) Get(buf []byte) []byte {
	return buf[p.Offs : p.Offs+p.Len]
}

// String materializes the field as a string (copies).
func (p PField) String(buf []byte) string {
	return string(p.Get(buf))
}
