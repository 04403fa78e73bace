package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intuitivelabs/httpcore/resourcespace"
	"github.com/intuitivelabs/httpcore/transport"
)

// fakeConn is an in-memory transport.Connection: Send appends to a slice
// the test can inspect instead of going over a socket.
type fakeConn struct {
	peer    string
	dataCB  func([]byte)
	brokCB  func(bool)
	sent    [][]byte
	broken  bool
	cleanAt bool
}

func (c *fakeConn) PeerID() string                     { return c.peer }
func (c *fakeConn) SetDataReceivedCB(fn func([]byte))  { c.dataCB = fn }
func (c *fakeConn) SetBrokenCB(fn func(bool))          { c.brokCB = fn }
func (c *fakeConn) Send(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, cp)
	return nil
}
func (c *fakeConn) Break(clean bool) error {
	c.broken = true
	c.cleanAt = clean
	if c.brokCB != nil {
		c.brokCB(clean)
	}
	return nil
}

// fakeTransport is a transport.ServerTransport that hands a pre-built
// fakeConn to the server's new-connection callback on Bind, rather than
// actually listening on a socket.
type fakeTransport struct {
	bound    bool
	released bool
	failBind bool
}

func (t *fakeTransport) Bind(port int, newConnCB func(transport.Connection)) bool {
	if t.failBind {
		return false
	}
	t.bound = true
	return true
}
func (t *fakeTransport) Release() { t.released = true }

func newAcceptedConn(s *Server) *fakeConn {
	conn := &fakeConn{peer: "127.0.0.1:9"}
	s.onNewConnection(conn)
	return conn
}

func TestMobilizeBindFailure(t *testing.T) {
	s := New()
	ok := s.Mobilize(&fakeTransport{failBind: true}, 8080)
	require.False(t, ok)
}

func TestMobilizeDemobilize(t *testing.T) {
	s := New()
	tr := &fakeTransport{}
	require.True(t, s.Mobilize(tr, 8080))
	require.True(t, tr.bound)
	s.Demobilize()
	require.True(t, tr.released)
}

func TestSimpleGetRoutesTo404(t *testing.T) {
	s := New()
	conn := newAcceptedConn(s)

	conn.dataCB([]byte("GET /missing HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.Len(t, conn.sent, 1)
	require.Contains(t, string(conn.sent[0]), "404 Not Found")
	require.False(t, conn.broken)
}

func TestRegisteredResourceHit(t *testing.T) {
	s := New()
	_, ok := s.RegisterResource([]string{"hello.txt"}, func(req *resourcespace.Request, residual []string) *resourcespace.Response {
		return &resourcespace.Response{StatusCode: 200, Reason: "OK"}
	})
	require.True(t, ok)

	conn := newAcceptedConn(s)
	conn.dataCB([]byte("GET /hello.txt HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.Len(t, conn.sent, 1)
	require.Contains(t, string(conn.sent[0]), "200 OK")
}

func TestInvalidRequestYields400(t *testing.T) {
	s := New()
	conn := newAcceptedConn(s)
	conn.dataCB([]byte("GET /x HTTP/1.1\r\nUser-Agent curl\r\n\r\n"))
	require.Len(t, conn.sent, 1)
	require.Contains(t, string(conn.sent[0]), "400 Bad Request")
	require.False(t, conn.broken, "a damaged header line is recoverable: deliver 400, keep the connection")
}

func TestConnectionCloseHeaderBreaksConnection(t *testing.T) {
	s := New()
	conn := newAcceptedConn(s)
	conn.dataCB([]byte("GET /missing HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"))
	require.Len(t, conn.sent, 1)
	require.True(t, conn.broken)
	require.True(t, conn.cleanAt)
}

func TestPipelinedRequestsProduceTwoResponses(t *testing.T) {
	s := New()
	conn := newAcceptedConn(s)
	one := "GET /missing HTTP/1.1\r\nHost: example.com\r\n\r\n"
	conn.dataCB([]byte(one + one))
	require.Len(t, conn.sent, 2)
	require.Contains(t, string(conn.sent[0]), "404 Not Found")
	require.Contains(t, string(conn.sent[1]), "404 Not Found")
}

func TestSetHeaderLineLimitAppliesLive(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("HeaderLineLimit", "16"))
	v, ok := s.ConfigurationItem("HeaderLineLimit")
	require.True(t, ok)
	require.Equal(t, "16", v)
}

func TestSetAllAggregatesErrors(t *testing.T) {
	s := New()
	err := s.SetAll(map[string]string{
		"HeaderLineLimit": "not-a-number",
		"MaxBodyBytes":    "also-not-a-number",
	})
	require.Error(t, err)
}

func TestBrokenConnectionWakesReaper(t *testing.T) {
	s := New()
	tr := &fakeTransport{}
	require.True(t, s.Mobilize(tr, 8080))
	defer s.Demobilize()

	conn := newAcceptedConn(s)
	conn.Break(true)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.broken) == 0 && len(s.active) == 0
	}, time.Second, 5*time.Millisecond)
}
