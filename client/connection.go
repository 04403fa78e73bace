package client

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/intuitivelabs/httpcore/httpmsg"
	"github.com/intuitivelabs/httpcore/logging"
	"github.com/intuitivelabs/httpcore/transport"
)

// ClientConnectionState is a pooled outbound connection (§3 Data Model
// "Client Connection State"): at most one Transaction in flight at a
// time, evicted from the pool on transport break, inactivity timeout, or
// an explicit non-persisting request.
type ClientConnectionState struct {
	id      string
	peerKey string
	conn    transport.Connection
	log     zerolog.Logger

	mu           sync.Mutex
	current      *Transaction // non-owning: cleared by completeWith, not here
	reassembly   []byte
	lastActivity time.Time

	// dropSelf, when set, removes this state from its owning Client's
	// pool. Invoked once the connection is handed off to an Upgrade
	// callback, since it is no longer usable for further HTTP traffic.
	dropSelf func()
}

func newClientConnectionState(peerKey string, conn transport.Connection, clock transport.Clock) *ClientConnectionState {
	id := newCorrelationID()
	return &ClientConnectionState{
		id:           id,
		peerKey:      peerKey,
		conn:         conn,
		log:          logging.WithConn(logging.Logger(), id, peerKey),
		lastActivity: clock.Now(),
	}
}

// tryAcquire installs tx as the connection's current transaction if and
// only if none is already in flight, returning false (never mutating
// state) otherwise — the serialization point backing TxRejected.
func (cs *ClientConnectionState) tryAcquire(tx *Transaction) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.current != nil {
		return false
	}
	cs.current = tx
	tx.conn = cs
	return true
}

func (cs *ClientConnectionState) idleSince() time.Time {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.lastActivity
}

// onData feeds newly received bytes through the incremental parser (§4.5
// step 3: "data received drives ParseNext against the awaiting
// transaction's response"). A finished response completes the current
// transaction; a parse error breaks the connection abortively.
func (cs *ClientConnectionState) onData(clock transport.Clock, data []byte) {
	cs.mu.Lock()
	cs.lastActivity = clock.Now()
	cs.reassembly = append(cs.reassembly, data...)
	tx := cs.current
	if tx == nil {
		cs.mu.Unlock()
		return
	}
	buf := cs.reassembly
	resp := httpmsg.NewMessage()
	n := httpmsg.ParseNext(buf, resp)
	if resp.State != httpmsg.StateComplete && resp.State != httpmsg.StateError {
		cs.mu.Unlock()
		return
	}
	leftover := append([]byte(nil), buf[n:]...)
	cs.reassembly = leftover
	cs.current = nil
	cs.mu.Unlock()

	if resp.State == httpmsg.StateError || !resp.Valid {
		tx.completeWith(TxBroken, nil)
		_ = cs.conn.Break(false)
		return
	}

	if tx.upgradeCB != nil && isUpgradeResponse(resp) {
		if isWebSocketUpgrade(resp) {
			if ws, ok := upgradeWebSocket(cs.conn, leftover); ok {
				if raw, ok := resp.Headers.Get("Sec-WebSocket-Extensions"); ok {
					cs.log.Debug().Uint("extensions", uint(httpmsg.ParseWSExtensions(raw))).Msg("websocket upgrade negotiated extensions")
				}
				tx.persistConnection = true // Detach already took the raw conn; completeWith must not Break it
				tx.completeWith(TxCompleted, resp)
				if cs.dropSelf != nil {
					cs.dropSelf()
				}
				tx.upgradeCB(ws, nil, resp)
				return
			}
		} else {
			// Non-WebSocket upgrade target: no dedicated wrapper type to
			// offer, so hand the caller the bare transport.Connection.
			// The caller must install its own data-received callback to
			// take over framing; this connection stops routing bytes
			// through ParseNext the moment cs.current goes nil above.
			tx.persistConnection = true
			tx.completeWith(TxCompleted, resp)
			if cs.dropSelf != nil {
				cs.dropSelf()
			}
			tx.upgradeCB(nil, cs.conn, resp)
			return
		}
	}
	tx.completeWith(TxCompleted, resp)
}

// onBroken fires the current transaction's terminal state (if any) and
// lets the owning Client drop this state from the pool.
func (cs *ClientConnectionState) onBroken(clean bool) {
	cs.mu.Lock()
	tx := cs.current
	cs.current = nil
	cs.mu.Unlock()
	if tx != nil {
		tx.completeWith(TxBroken, nil)
	}
}
