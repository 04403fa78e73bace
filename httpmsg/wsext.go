package httpmsg

import (
	"strings"

	"github.com/intuitivelabs/bytescase"
)

// WSExtension is a recognized Sec-WebSocket-Extensions token (IANA
// "extension-name" registry, https://www.iana.org/assignments/websocket).
type WSExtension uint

const (
	WSExtNone WSExtension = 0
	// WSExtPermessageDeflate is the only extension this module classifies
	// by name: it is the one most servers actually negotiate, and its
	// presence is surfaced purely as a fact for the caller's log/metrics —
	// this module never performs the deflate framing itself.
	WSExtPermessageDeflate WSExtension = 1 << iota
	WSExtOther
)

// ResolveWSExtension maps a single Sec-WebSocket-Extensions token (no
// parameters, already trimmed) to its flag.
func ResolveWSExtension(name []byte) WSExtension {
	if len(name) == 18 && bytescase.CmpEq(name, []byte("permessage-deflate")) {
		return WSExtPermessageDeflate
	}
	return WSExtOther
}

// ParseWSExtensions splits a full Sec-WebSocket-Extensions header value
// into its recognized extension flags. The header's value is always
// fully buffered by the time header parsing completes, so unlike
// Transfer-Encoding or chunked bodies no incremental state machine is
// needed here.
func ParseWSExtensions(value string) WSExtension {
	var flags WSExtension
	for _, tok := range strings.Split(value, ",") {
		tok = strings.TrimSpace(tok)
		if semi := strings.IndexByte(tok, ';'); semi >= 0 {
			tok = strings.TrimSpace(tok[:semi])
		}
		if tok == "" {
			continue
		}
		flags |= ResolveWSExtension([]byte(tok))
	}
	return flags
}
