package client

import (
	"bufio"
	"bytes"
	"io"
	"net"

	"github.com/gorilla/websocket"

	"github.com/intuitivelabs/httpcore/httpmsg"
	"github.com/intuitivelabs/httpcore/transport"
)

// Detacher is implemented by transport.Connection implementations that
// can hand exclusive ownership of the underlying net.Conn to a caller
// with its own framing (§4.5 "Upgrade semantics"). Only safe to call
// synchronously from within the data-received callback: that is the
// connection's own read-loop goroutine, so there is no concurrent Read
// in flight at the moment of the call.
type Detacher interface {
	Detach() (net.Conn, []byte)
}

// isUpgradeResponse reports whether resp is a 101 response naming any
// Upgrade target at all — the first half of the §4.5 hand-off decision.
// The second half, isWebSocketUpgrade, narrows to the one protocol this
// module wraps with a dedicated type.
func isUpgradeResponse(resp *httpmsg.Message) bool {
	if resp.StatusCode() != 101 {
		return false
	}
	_, ok := resp.Headers.Get("Upgrade")
	return ok
}

// isWebSocketUpgrade reports whether resp's Upgrade header names the
// websocket protocol specifically.
func isWebSocketUpgrade(resp *httpmsg.Message) bool {
	raw, ok := resp.Headers.Get("Upgrade")
	if !ok {
		return false
	}
	return httpmsg.ResolveUpgradeProto([]byte(raw)) == httpmsg.UpgradeWebSock
}

// upgradeWebSocket detaches conn and wraps it in a gorilla/websocket.Conn,
// replaying any bytes the HTTP parser's read loop already pulled off the
// wire ahead of the first frame via websocket.NewConnBRW.
func upgradeWebSocket(conn transport.Connection, alreadyParsed []byte) (*websocket.Conn, bool) {
	det, ok := conn.(Detacher)
	if !ok {
		return nil, false
	}
	raw, unread := det.Detach()

	var r io.Reader = raw
	pending := append(append([]byte(nil), alreadyParsed...), unread...)
	if len(pending) > 0 {
		r = io.MultiReader(bytes.NewReader(pending), raw)
	}
	brw := bufio.NewReadWriter(bufio.NewReader(r), bufio.NewWriter(raw))
	return websocket.NewConnBRW(raw, false, 4096, 4096, brw), true
}
