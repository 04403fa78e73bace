package server

import "github.com/intuitivelabs/httpcore/httpmsg"

// cannedBody is the fixed response body shared by both canned responses
// (§6 "External interfaces" / Canned responses).
const cannedBody = "FeelsBadMan\r\n"

func cannedHeaders() *httpmsg.Headers {
	h := httpmsg.NewHeaders()
	h.Add("Content-Length", "13")
	h.Add("Content-Type", "text/plain")
	return h
}

// canned404 serializes the fixed 404 Not Found response returned on a
// routing miss.
func canned404() []byte {
	return httpmsg.SerializeResponse(404, "Not Found", cannedHeaders(), []byte(cannedBody))
}

// canned400 serializes the fixed 400 Bad Request response returned for an
// invalid or errored request.
func canned400() []byte {
	return httpmsg.SerializeResponse(400, "Bad Request", cannedHeaders(), []byte(cannedBody))
}
