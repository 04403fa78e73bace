// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpmsg

import (
	"math/rand"
	"testing"
)

func TestHeadersParseRawMessage(t *testing.T) {
	raw := "Host: www.example.com\r\n" +
		"User-Agent: test/1.0\r\n" +
		"Connection: keep-alive, Upgrade\r\n" +
		"X-Multi: a\r\n" +
		"X-Multi: b\r\n" +
		"\r\n" +
		"body-starts-here"
	buf := []byte(raw)
	h := NewHeaders()
	state, bodyOffset := h.ParseRawMessage(buf)
	if state != HeadersComplete {
		t.Fatalf("state = %v, want HeadersComplete", state)
	}
	if buf[bodyOffset:] == nil || string(buf[bodyOffset:]) != "body-starts-here" {
		t.Fatalf("bodyOffset = %d -> %q, want %q", bodyOffset, buf[bodyOffset:], "body-starts-here")
	}
	if v, ok := h.Get("host"); !ok || v != "www.example.com" {
		t.Fatalf("Get(host) = %q, %v", v, ok)
	}
	if !h.Has("Connection") {
		t.Fatal("Has(Connection) = false")
	}
	multi := h.GetMulti("X-Multi")
	if len(multi) != 2 || multi[0] != "a" || multi[1] != "b" {
		t.Fatalf("GetMulti(X-Multi) = %v, want [a b]", multi)
	}
	if h.ConnectionHasClose() {
		// "keep-alive, Upgrade" doesn't contain "close"; sanity check the
		// negative case explicitly instead of asserting true.
		t.Fatal("ConnectionHasClose() = true, want false for \"keep-alive, Upgrade\"")
	}
}

func TestHeadersConnectionClose(t *testing.T) {
	h := NewHeaders()
	h.Add("Connection", "close")
	if !h.ConnectionHasClose() {
		t.Fatal("ConnectionHasClose() = false, want true")
	}
	h2 := NewHeaders()
	h2.Add("Connection", "keep-alive")
	if h2.ConnectionHasClose() {
		t.Fatal("ConnectionHasClose() = true, want false")
	}
}

func TestHeadersSetReplaces(t *testing.T) {
	h := NewHeaders()
	h.Add("X-A", "1")
	h.Add("X-A", "2")
	h.Set("X-A", "3")
	if got := h.GetMulti("X-A"); len(got) != 1 || got[0] != "3" {
		t.Fatalf("after Set, GetMulti(X-A) = %v, want [3]", got)
	}
}

func TestHeadersGenerateRaw(t *testing.T) {
	h := NewHeaders()
	h.Add("Host", "example.com")
	h.Add("Content-Length", "0")
	raw := h.GenerateRaw()
	want := "Host: example.com\r\nContent-Length: 0\r\n\r\n"
	if string(raw) != want {
		t.Fatalf("GenerateRaw() = %q, want %q", raw, want)
	}
}

func TestHeadersLineLimit(t *testing.T) {
	h := NewHeaders()
	h.SetLineLimit(16)
	longLine := "X-Long: " + string(make([]byte, 64)) + "\r\n\r\n"
	buf := []byte(longLine)
	for i := range buf {
		if buf[i] == 0 {
			buf[i] = 'a'
		}
	}
	state, _ := h.ParseRawMessage(buf)
	if state != HeadersError {
		t.Fatalf("state = %v, want HeadersError for overlong line", state)
	}
}

func TestHeadersMissingColon(t *testing.T) {
	h := NewHeaders()
	buf := []byte("User-Agent curl/7.0\r\nHost: x\r\n\r\n")
	state, _ := h.ParseRawMessage(buf)
	if state != HeadersComplete {
		t.Fatalf("state = %v, want HeadersComplete (damaged line is recoverable)", state)
	}
	if !h.Malformed() {
		t.Fatalf("Malformed() = false, want true after a colon-less header line")
	}
	if _, ok := h.Get("Host"); !ok {
		t.Fatalf("Get(Host) missing, want subsequent well-formed headers still parsed")
	}
}

func TestHeadersFolded(t *testing.T) {
	h := NewHeaders()
	buf := []byte("X-Folded: first\r\n second\r\n\r\n")
	state, bodyOffset := h.ParseRawMessage(buf)
	if state != HeadersComplete {
		t.Fatalf("state = %v, want HeadersComplete", state)
	}
	if bodyOffset != len(buf) {
		t.Fatalf("bodyOffset = %d, want %d", bodyOffset, len(buf))
	}
	v, ok := h.Get("X-Folded")
	if !ok || v != "first second" {
		t.Fatalf("Get(X-Folded) = %q, %v, want %q", v, ok, "first second")
	}
}

func TestHeadersRandomFragmentation(t *testing.T) {
	raw := "Host: www.example.com\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"
	buf := []byte(raw)
	for trial := 0; trial < 20; trial++ {
		h := NewHeaders()
		o := 0
		for {
			end := len(buf)
			if o < len(buf) {
				end = o + 1 + rand.Intn(len(buf)-o)
			}
			state, off := h.ParseRawMessage(buf[:end])
			if state == HeadersIncomplete {
				o = off
				continue
			}
			if state != HeadersComplete {
				t.Fatalf("trial %d: state = %v, want HeadersComplete", trial, state)
			}
			if string(buf[off:]) != "hello" {
				t.Fatalf("trial %d: body = %q, want %q", trial, buf[off:], "hello")
			}
			break
		}
		if v, _ := h.Get("Content-Length"); v != "5" {
			t.Fatalf("trial %d: Content-Length = %q, want 5", trial, v)
		}
	}
}
