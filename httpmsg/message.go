// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

import (
	"math"
	"strings"
)

// State is the coarse lifecycle of a Message as it moves through
// ParseNext (§3 Data Model: Request.state / Response.state). Terminal
// once Complete or Error: further ParseNext calls consume zero bytes and
// do not mutate the message.
type State uint8

const (
	StateLine State = iota
	StateHeaders
	StateBody
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateLine:
		return "Line"
	case StateHeaders:
		return "Headers"
	case StateBody:
		return "Body"
	case StateComplete:
		return "Complete"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// bodyMode records how the body is framed, once headers are known. Purely
// internal bookkeeping; invisible to State.
type bodyMode uint8

const (
	bodyUndetermined bodyMode = iota
	bodyNone
	bodyContentLength
	bodyChunked
)

// Message is a partially or fully parsed HTTP/1.1 request or response.
// The teacher keeps one PMsg struct shared between both roles
// (parse_msg.go); this does the same — Request() and the role-specific
// accessors below dispense the view the spec's Data Model splits into
// separate Request/Response types.
type Message struct {
	FLine   FLine
	Headers Headers
	Body    []byte

	// Valid is the spec's "all syntactic and semantic checks passed"
	// flag. It can go false while State still advances to Headers (an
	// unknown method, a version other than HTTP/1.1, a bad status), and a
	// message can reach Complete with Valid false (a damaged header line
	// or a Host mismatch is recoverable and still completes the parse).
	Valid bool
	State State

	// MaxBodyBytes is the hard Content-Length ceiling (§4.2); 0 means
	// unlimited (the client side leaves this unset, the server installs
	// 10,000,000 per §6 Limits).
	MaxBodyBytes int64

	// serverHost is the configured Host used for three-way validation;
	// empty disables the check (client-side messages never set it).
	serverHost string

	flineOffs int
	mode      bodyMode
	clenWant  int64
	bodyStart int
	decoder   *Decoder
	chunkFed  int
	msgEnd    int
}

// NewMessage returns a Message ready to parse a fresh start line.
func NewMessage() *Message {
	m := &Message{}
	m.Headers = *NewHeaders()
	return m
}

// Reset clears msg back to its initial state, preserving the configured
// HeaderLineLimit/MaxBodyBytes/serverHost so a connection's per-message
// limits don't need reinstalling between pipelined requests.
func (msg *Message) Reset() {
	lineLimit := msg.Headers.lineLimit
	maxBody := msg.MaxBodyBytes
	host := msg.serverHost
	*msg = Message{}
	msg.Headers = *NewHeaders()
	msg.Headers.SetLineLimit(lineLimit)
	msg.MaxBodyBytes = maxBody
	msg.serverHost = host
}

// SetHeaderLineLimit configures the header/start-line limit (§6 Limits).
func (msg *Message) SetHeaderLineLimit(n int) { msg.Headers.SetLineLimit(n) }

// SetMaxBodyBytes installs the hard Content-Length ceiling; 0 disables it.
func (msg *Message) SetMaxBodyBytes(n int64) { msg.MaxBodyBytes = n }

// SetServerHost installs the server's configured Host for request
// validation (§4.2 "Host validation (server only)"); empty disables it.
func (msg *Message) SetServerHost(h string) { msg.serverHost = h }

// Request reports whether this message parsed out as a request (as
// opposed to a response) — undefined (false) until the start line has
// parsed successfully.
func (msg *Message) Request() bool { return msg.FLine.Request() }

// Method returns the request method, MUndef for responses or before the
// start line is parsed.
func (msg *Message) Method() Method {
	if msg.Request() {
		return msg.FLine.MethodNo
	}
	return MUndef
}

// Target returns the raw request-target bytes, nil for responses.
func (msg *Message) Target(buf []byte) []byte {
	if !msg.Request() {
		return nil
	}
	return msg.FLine.Target.Get(buf)
}

// StatusCode returns the parsed status code, 0 for requests.
func (msg *Message) StatusCode() uint16 { return msg.FLine.Status }

// ReasonPhrase returns the response reason phrase, nil for requests.
func (msg *Message) ReasonPhrase(buf []byte) []byte {
	if msg.Request() {
		return nil
	}
	return msg.FLine.Reason.Get(buf)
}

// ParseNext advances msg through its start-line, headers and body phases
// as far as buf currently allows, always scanning from buf[0:] (the
// caller owns the reassembly buffer and is expected to splice the
// consumed prefix away only once ParseNext reports Complete or Error —
// mid-message it must keep resupplying the same growing buf). The
// returned int is the number of bytes of buf[0:] that make up this
// message, valid only once State is Complete or Error; while still
// parsing it is always 0 (nothing to splice yet).
//
// Grounded on the teacher's ParseMsg (parse_msg.go): same phase
// sequencing (first line → headers → body-type dispatch), generalized
// to drive a real C1 Decoder for Transfer-Encoding: chunked bodies (the
// teacher computes BodyType == MsgBodyChunked but never acts on it — see
// the "Transfer-Encoding integration" note) and to enforce the server's
// body ceiling and Host validation the teacher's SIP-oriented parser
// never needed.
func ParseNext(buf []byte, msg *Message) int {
	if msg.State == StateComplete || msg.State == StateError {
		return 0
	}
	if msg.State == StateLine {
		end, err := ParseFLine(buf, msg.flineOffs, &msg.FLine)
		if err == ErrMoreBytes {
			msg.flineOffs = end
			return 0
		}
		if err != ErrOk {
			msg.State = StateError
			return 0
		}
		msg.Valid = true
		if msg.Request() {
			if !equalFoldASCII(msg.FLine.Version.Get(buf), []byte("HTTP/1.1")) {
				msg.Valid = false
			}
			if msg.FLine.MethodNo == MOther {
				msg.Valid = false
			}
		} else if msg.FLine.Status > 999 {
			msg.Valid = false
		}
		msg.State = StateHeaders
		msg.Headers.offs = end
	}
	if msg.State == StateHeaders {
		hstate, bodyOffset := msg.Headers.ParseRawMessage(buf)
		switch hstate {
		case HeadersIncomplete:
			return 0
		case HeadersError:
			msg.State = StateError
			return 0
		}
		if msg.Headers.Malformed() {
			// Damaged header line (§7): recoverable, not fatal — the
			// message still completes, it just can't be trusted.
			msg.Valid = false
		}
		msg.bodyStart = bodyOffset
		if !msg.enterBody() {
			msg.State = StateError
			return 0
		}
		if msg.Request() {
			msg.validateHost(buf)
		}
		if msg.State == StateComplete {
			return msg.bodyStart
		}
	}
	if msg.State == StateBody {
		done := msg.consumeBody(buf)
		if msg.State == StateError {
			return 0
		}
		if !done {
			return 0
		}
		msg.State = StateComplete
		return msg.msgEnd
	}
	return 0
}

// enterBody classifies the body framing from the now-complete headers
// and, for the zero-length cases, completes the message immediately. It
// returns false on an unrecoverable framing error (malformed or
// over-ceiling Content-Length).
func (msg *Message) enterBody() bool {
	if raw, ok := msg.Headers.Get("Transfer-Encoding"); ok {
		b := []byte(raw)
		var pf PField
		pf.Set(0, len(b))
		chunkedLast, any := transferEncodingIsChunked(b, pf)
		if any && chunkedLast {
			// Transfer-Encoding takes priority over Content-Length per
			// RFC 7230 §3.3.3; the teacher's own BodyType dispatch
			// already encodes this priority, this module just acts on
			// it for the chunked case by driving a real Decoder instead
			// of leaving the body phase unreachable.
			msg.mode = bodyChunked
			msg.decoder = NewDecoder(false)
			msg.State = StateBody
			return true
		}
	}
	if raw, ok := msg.Headers.Get("Content-Length"); ok {
		n, good := parseContentLength([]byte(raw))
		if !good {
			return false
		}
		if msg.MaxBodyBytes > 0 && n > msg.MaxBodyBytes {
			return false
		}
		msg.mode = bodyContentLength
		msg.clenWant = n
		if n == 0 {
			msg.Body = []byte{}
			msg.State = StateComplete
			return true
		}
		msg.State = StateBody
		return true
	}
	msg.mode = bodyNone
	msg.Body = []byte{}
	msg.State = StateComplete
	return true
}

// consumeBody attempts to finish the body phase from whatever is now
// buffered, reporting whether the message is fully assembled.
func (msg *Message) consumeBody(buf []byte) bool {
	switch msg.mode {
	case bodyContentLength:
		have := int64(len(buf)) - int64(msg.bodyStart)
		if have < msg.clenWant {
			return false
		}
		end := msg.bodyStart + int(msg.clenWant)
		msg.Body = buf[msg.bodyStart:end]
		msg.msgEnd = end
		return true
	case bodyChunked:
		newBytes := buf[msg.bodyStart+msg.chunkFed:]
		n := msg.decoder.Decode(newBytes, 0, len(newBytes))
		msg.chunkFed += n
		switch msg.decoder.State() {
		case ChunkError:
			msg.State = StateError
			return false
		case ChunkComplete:
			msg.Body = msg.decoder.BodyAsBytes()
			msg.msgEnd = msg.bodyStart + msg.chunkFed
			return true
		default:
			return false
		}
	}
	return true
}

// validateHost implements §4.2 "Host validation (server only)": absence
// of a Host header always invalidates the request; when the server has a
// configured host and the request-target carries an authority, all three
// (request Host, target authority, server host) must agree.
func (msg *Message) validateHost(buf []byte) {
	hostHdr, ok := msg.Headers.Get("Host")
	if !ok || strings.TrimSpace(hostHdr) == "" {
		msg.Valid = false
		return
	}
	if msg.serverHost == "" {
		return
	}
	targetURL, err := msg.FLine.TargetURL(buf)
	if err != nil {
		return
	}
	if targetURL.Host != "" && !strings.EqualFold(targetURL.Host, msg.serverHost) {
		msg.Valid = false
		return
	}
	if !strings.EqualFold(strings.TrimSpace(hostHdr), msg.serverHost) {
		msg.Valid = false
	}
}

// parseContentLength parses a Content-Length value as a non-negative
// base-10 integer, rejecting anything that isn't all-digits or that
// overflows an int64 (the "Content-Length: 1000...(70 digits)" scenario
// of §8 must fail here, not panic or wrap).
func parseContentLength(s []byte) (int64, bool) {
	s = []byte(strings.TrimSpace(string(s)))
	if len(s) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := uint64(c - '0')
		if v > (math.MaxUint64-d)/10 {
			return 0, false
		}
		v = v*10 + d
	}
	if v > uint64(math.MaxInt64) {
		return 0, false
	}
	return int64(v), true
}
