// Package client is the embeddable outbound HTTP/1.1 half (§4.5 "Client
// Core"): request/response transactions multiplexed over a pool of
// persistent per-host connections, built the way server.Server is built
// for the inbound half — same lock discipline, same errgroup-driven
// background worker. Unlike the server, the transport callbacks close over
// their ClientConnectionState directly rather than looking it up by id.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/intuitivelabs/httpcore/httpmsg"
	"github.com/intuitivelabs/httpcore/logging"
	"github.com/intuitivelabs/httpcore/transport"
)

const (
	// DefaultRequestTimeoutSeconds is §6 Limits' "default client request
	// timeout".
	DefaultRequestTimeoutSeconds = 10.0
	// DefaultInactivityIntervalSeconds is §6 Limits' "default persistent
	// connection inactivity".
	DefaultInactivityIntervalSeconds = 60.0
	// HousekeeperPeriodMillis is §6 Limits' "polling period".
	HousekeeperPeriodMillis = 50
)

// UpgradeCallback is invoked once a transaction's response completes a
// 101 Upgrade handshake (§4.5 "Upgrade semantics"). Exactly one of ws/conn
// is non-nil: ws for an Upgrade: websocket target, wrapped and handed off
// entirely to the callback; conn (the bare transport.Connection) for any
// other Upgrade target, which the caller must SetDataReceivedCB on itself
// to take over framing. No further HTTP framing happens on the underlying
// connection either way.
type UpgradeCallback func(ws *websocket.Conn, conn transport.Connection, response *httpmsg.Message)

// Client is the outbound half: mobilize once against a transport,
// fire requests, demobilize to tear everything down.
type Client struct {
	log zerolog.Logger

	mu                 sync.Mutex // lock C
	transport          transport.ClientTransport
	clock              transport.Clock
	requestTimeout     float64
	inactivityInterval float64
	pool               map[string]*ClientConnectionState
	mobilized          bool

	cancel context.CancelFunc
	eg     *errgroup.Group
}

// New returns a Client, not yet mobilized.
func New() *Client {
	return &Client{
		log:  logging.Logger(),
		pool: make(map[string]*ClientConnectionState),
	}
}

// Mobilize installs tr and clock and starts the housekeeping worker.
// requestTimeoutSeconds and inactivityIntervalSeconds less than or equal
// to zero fall back to the §6 Limits defaults.
func (c *Client) Mobilize(tr transport.ClientTransport, clock transport.Clock, requestTimeoutSeconds, inactivityIntervalSeconds float64) bool {
	if tr == nil {
		return false
	}
	if clock == nil {
		clock = transport.SystemClock{}
	}
	if requestTimeoutSeconds <= 0 {
		requestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if inactivityIntervalSeconds <= 0 {
		inactivityIntervalSeconds = DefaultInactivityIntervalSeconds
	}

	c.mu.Lock()
	if c.mobilized {
		c.mu.Unlock()
		return false
	}
	c.transport = tr
	c.clock = clock
	c.requestTimeout = requestTimeoutSeconds
	c.inactivityInterval = inactivityIntervalSeconds
	c.mobilized = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		c.runHousekeeper(ctx)
		return nil
	})
	c.cancel = cancel
	c.eg = eg
	return true
}

// Demobilize breaks every pooled connection and stops the housekeeper.
// Idempotent.
func (c *Client) Demobilize() {
	c.mu.Lock()
	if !c.mobilized {
		c.mu.Unlock()
		return
	}
	c.mobilized = false
	pooled := c.pool
	c.pool = make(map[string]*ClientConnectionState)
	cancel := c.cancel
	eg := c.eg
	c.mu.Unlock()

	for _, cs := range pooled {
		_ = cs.conn.Break(true)
	}
	if cancel != nil {
		cancel()
	}
	if eg != nil {
		_ = eg.Wait()
	}
}

func peerKey(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }

// Request is §4.5's request() operation, the 7-step algorithm: look for
// a usable pooled connection for host:port, dial fresh on a pool miss,
// serialize the HTTP request, send, and return an in-progress Transaction
// the caller awaits. A pooled connection that already has a transaction in
// flight is not dialed around: the new Transaction completes at once as
// TxRejected.
func (c *Client) Request(host string, port int, method, target string, headers *httpmsg.Headers, body []byte, persistConnection bool, upgradeCB UpgradeCallback) *Transaction {
	c.mu.Lock()
	if !c.mobilized {
		c.mu.Unlock()
		tx := newTransaction(persistConnection)
		tx.completeWith(TxUnableToConnect, nil)
		return tx
	}
	tr := c.transport
	clock := c.clock
	key := peerKey(host, port)
	cs, hasPooled := c.pool[key]
	c.mu.Unlock()

	tx := newTransaction(persistConnection)
	tx.upgradeCB = upgradeCB

	if hasPooled {
		if !cs.tryAcquire(tx) {
			// Pooled connection already has an in-flight transaction:
			// refuse rather than silently racing a second one onto it
			// (§9 Open Question "concurrent request() calls sharing a
			// pool entry would corrupt current-transaction").
			tx.completeWith(TxRejected, nil)
			return tx
		}
		if err := c.send(cs, host, port, method, target, headers, body, persistConnection); err != nil {
			tx.completeWith(TxBroken, nil)
			c.drop(key, cs)
			return tx
		}
		if !persistConnection {
			// §4.5 step 7: let the send drain before tearing the
			// connection down.
			_ = cs.conn.Break(true)
			c.drop(key, cs)
		}
		return tx
	}

	conn := tr.Connect(host, port, nil, nil)
	if conn == nil {
		tx.completeWith(TxUnableToConnect, nil)
		return tx
	}
	cs = newClientConnectionState(key, conn, clock)
	cs.dropSelf = func() { c.drop(key, cs) }
	conn.SetDataReceivedCB(func(data []byte) { cs.onData(clock, data) })
	conn.SetBrokenCB(func(clean bool) {
		cs.onBroken(clean)
		c.drop(key, cs)
	})
	cs.current = tx
	tx.conn = cs

	if persistConnection {
		c.mu.Lock()
		c.pool[key] = cs
		c.mu.Unlock()
	}

	if err := c.send(cs, host, port, method, target, headers, body, persistConnection); err != nil {
		tx.completeWith(TxBroken, nil)
		c.drop(key, cs)
		return tx
	}
	if !persistConnection {
		// §4.5 step 7: let the send drain before tearing the connection
		// down. cs was never pooled on this path, so there is nothing to
		// drop.
		_ = cs.conn.Break(true)
	}
	return tx
}

func (c *Client) send(cs *ClientConnectionState, host string, port int, method, target string, headers *httpmsg.Headers, body []byte, persistConnection bool) error {
	if headers == nil {
		headers = httpmsg.NewHeaders()
	}
	if _, ok := headers.Get("Host"); !ok {
		hostHeader := host
		if port != 0 && port != 80 {
			hostHeader = fmt.Sprintf("%s:%d", host, port)
		}
		headers.Add("Host", hostHeader)
	}
	if _, ok := headers.Get("Content-Length"); !ok && len(body) > 0 {
		headers.Add("Content-Length", fmt.Sprintf("%d", len(body)))
	}
	if !persistConnection {
		if _, ok := headers.Get("Connection"); !ok {
			headers.Add("Connection", "close")
		}
	}
	wire := httpmsg.SerializeRequest(method, target, headers, body)
	if err := cs.conn.Send(wire); err != nil {
		return errors.Wrap(err, "client: send failed")
	}
	return nil
}

// drop removes cs from the pool if it is still the entry for key,
// guarding against a fresher connection having already replaced it.
func (c *Client) drop(key string, cs *ClientConnectionState) {
	c.mu.Lock()
	if c.pool[key] == cs {
		delete(c.pool, key)
	}
	c.mu.Unlock()
}

// ParseResponse is a synchronous, connection-less parse of raw bytes into
// a single response Message, mirroring Server.ParseRequest.
func (c *Client) ParseResponse(raw []byte) (*httpmsg.Message, int) {
	msg := httpmsg.NewMessage()
	n := httpmsg.ParseNext(raw, msg)
	return msg, n
}

func newCorrelationID() string { return uuid.NewString() }
