package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intuitivelabs/httpcore/transport"
)

// fakeConn is an in-memory transport.Connection for exercising Client
// without a socket.
type fakeConn struct {
	peer string

	mu          sync.Mutex
	dataCB      func([]byte)
	brokCB      func(bool)
	sent        [][]byte
	broken      bool
	writeClosed bool
}

func (c *fakeConn) PeerID() string { return c.peer }
func (c *fakeConn) SetDataReceivedCB(fn func([]byte)) {
	c.mu.Lock()
	c.dataCB = fn
	c.mu.Unlock()
}
func (c *fakeConn) SetBrokenCB(fn func(bool)) {
	c.mu.Lock()
	c.brokCB = fn
	c.mu.Unlock()
}
func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, cp)
	c.mu.Unlock()
	return nil
}
// Break mirrors tcpConnection's half-close contract: clean=true only
// shuts down the write side, so a response already in flight from the
// peer still reaches dataCB via deliver; the broken callback fires
// synchronously only for an unclean break, where nothing more is ever
// coming.
func (c *fakeConn) Break(clean bool) error {
	c.mu.Lock()
	if clean {
		c.writeClosed = true
		c.mu.Unlock()
		return nil
	}
	already := c.broken
	c.broken = true
	cb := c.brokCB
	c.mu.Unlock()
	if !already && cb != nil {
		cb(clean)
	}
	return nil
}

func (c *fakeConn) deliver(data []byte) {
	c.mu.Lock()
	cb := c.dataCB
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (c *fakeConn) lastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

// fakeTransport hands out pre-scripted fakeConn instances, or nil to
// simulate a connect failure, keyed by call order.
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	calls int
}

func (t *fakeTransport) Connect(host string, port int, dataCB func([]byte), brokenCB func(bool)) transport.Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls >= len(t.conns) {
		t.calls++
		return nil
	}
	c := t.conns[t.calls]
	t.calls++
	if c == nil {
		return nil
	}
	c.SetDataReceivedCB(dataCB)
	c.SetBrokenCB(brokenCB)
	return c
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRequestUnableToConnect(t *testing.T) {
	c := New()
	tr := &fakeTransport{}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	tx := c.Request("example.com", 80, "GET", "/", nil, nil, false, nil)
	tx.AwaitCompletion()
	require.Equal(t, TxUnableToConnect, tx.State())
}

func TestRequestNotMobilizedReturnsUnableToConnect(t *testing.T) {
	c := New()
	tx := c.Request("example.com", 80, "GET", "/", nil, nil, false, nil)
	require.Equal(t, TxUnableToConnect, tx.State())
}

func TestRequestCompletesAndAppliesHostHeader(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "93.184.216.34:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	tx := c.Request("example.com", 80, "GET", "/index.html", nil, nil, false, nil)
	require.Contains(t, string(conn.lastSent()), "Host: example.com\r\n")

	conn.deliver([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"))
	tx.AwaitCompletion()
	require.Equal(t, TxCompleted, tx.State())
	require.Equal(t, "hi", string(tx.Response().Body))
}

func TestRequestNonPersistingDropsFromPool(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	tx := c.Request("h", 80, "GET", "/", nil, nil, false, nil)
	conn.deliver([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	tx.AwaitCompletion()

	c.mu.Lock()
	_, pooled := c.pool[peerKey("h", 80)]
	c.mu.Unlock()
	require.False(t, pooled)
}

func TestRequestNonPersistingSendsConnectionCloseHeader(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	c.Request("h", 80, "GET", "/", nil, nil, false, nil)
	require.Contains(t, string(conn.lastSent()), "Connection: close\r\n")
}

func TestRequestPersistingOmitsConnectionCloseHeader(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	c.Request("h", 80, "GET", "/", nil, nil, true, nil)
	require.NotContains(t, string(conn.lastSent()), "Connection: close")
}

// TestRequestNonPersistingBreaksCleanWithoutDiscardingResponse pins down
// the distinction between the early, post-send break (§4.5 step 7, clean)
// and the later completion-time break (unclean): the former must not
// discard the response that is still in flight.
func TestRequestNonPersistingBreaksCleanWithoutDiscardingResponse(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	tx := c.Request("h", 80, "GET", "/", nil, nil, false, nil)
	conn.mu.Lock()
	writeClosed := conn.writeClosed
	broken := conn.broken
	conn.mu.Unlock()
	require.True(t, writeClosed, "non-persisting request should half-close right after send")
	require.False(t, broken, "the clean post-send break must not fire the broken callback")

	conn.deliver([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"))
	tx.AwaitCompletion()
	require.Equal(t, TxCompleted, tx.State())
	require.Equal(t, "hi", string(tx.Response().Body))
}

func TestRequestPersistingReusesPooledConnection(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	tx1 := c.Request("h", 80, "GET", "/a", nil, nil, true, nil)
	conn.deliver([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	tx1.AwaitCompletion()
	require.Equal(t, TxCompleted, tx1.State())

	tx2 := c.Request("h", 80, "GET", "/b", nil, nil, true, nil)
	require.Equal(t, TxInProgress, tx2.State())
	require.Equal(t, 1, tr.calls, "second request should reuse the pooled connection, not dial again")

	conn.deliver([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	tx2.AwaitCompletion()
	require.Equal(t, TxCompleted, tx2.State())
}

func TestRequestRejectedWhenConnectionBusy(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	tx1 := c.Request("h", 80, "GET", "/a", nil, nil, true, nil)
	require.Equal(t, TxInProgress, tx1.State())

	tx2 := c.Request("h", 80, "GET", "/b", nil, nil, true, nil)
	require.Equal(t, TxRejected, tx2.State())
}

func TestRequestBrokenConnectionCompletesTransactionBroken(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	require.True(t, c.Mobilize(tr, &fakeClock{now: time.Now()}, 0, 0))
	defer c.Demobilize()

	tx := c.Request("h", 80, "GET", "/", nil, nil, true, nil)
	require.NoError(t, conn.Break(false))
	tx.AwaitCompletion()
	require.Equal(t, TxBroken, tx.State())
}

func TestHousekeeperTimesOutSlowTransaction(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	clk := &fakeClock{now: time.Now()}
	require.True(t, c.Mobilize(tr, clk, 1, 1000))
	defer c.Demobilize()

	tx := c.Request("h", 80, "GET", "/", nil, nil, true, nil)
	clk.advance(2 * time.Second)

	require.Eventually(t, func() bool {
		return tx.State() == TxTimeout
	}, time.Second, 5*time.Millisecond)
	require.True(t, conn.broken)
}

func TestHousekeeperEvictsIdlePooledConnection(t *testing.T) {
	c := New()
	conn := &fakeConn{peer: "1.2.3.4:80"}
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	clk := &fakeClock{now: time.Now()}
	require.True(t, c.Mobilize(tr, clk, 1000, 1))
	defer c.Demobilize()

	tx := c.Request("h", 80, "GET", "/", nil, nil, true, nil)
	conn.deliver([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	tx.AwaitCompletion()

	clk.advance(2 * time.Second)

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, pooled := c.pool[peerKey("h", 80)]
		return !pooled
	}, time.Second, 5*time.Millisecond)
}

func TestParseResponseStandalone(t *testing.T) {
	c := New()
	msg, n := c.ParseResponse([]byte("HTTP/1.1 204 No Content\r\n\r\n"))
	require.Greater(t, n, 0)
	require.Equal(t, uint16(204), msg.StatusCode())
}
