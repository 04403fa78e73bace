package transport

import (
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/intuitivelabs/httpcore/logging"
)

func itoa(n int) string { return strconv.Itoa(n) }

func portAddr(port int) string { return ":" + strconv.Itoa(port) }

// TCPServer is the net.Conn-backed ServerTransport. Grounded on the
// teacher pack's accept-loop idiom (alxayo-rtmp-go's conn.Accept): one
// goroutine blocked in Accept, one goroutine per accepted connection.
type TCPServer struct {
	log zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	released bool
}

// NewTCPServer returns a TCPServer ready to Bind.
func NewTCPServer() *TCPServer {
	return &TCPServer{log: logging.Logger()}
}

// Bind implements ServerTransport.
func (s *TCPServer) Bind(port int, newConnCB func(Connection)) bool {
	ln, err := net.Listen("tcp", portAddr(port))
	if err != nil {
		s.log.Error().Err(err).Int("port", port).Msg("bind failed")
		return false
	}
	s.mu.Lock()
	s.listener = ln
	s.released = false
	s.mu.Unlock()

	go s.acceptLoop(ln, newConnCB)
	return true
}

func (s *TCPServer) acceptLoop(ln net.Listener, newConnCB func(Connection)) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			released := s.released
			s.mu.Unlock()
			if released {
				return
			}
			s.log.Warn().Err(err).Msg("accept failed")
			return
		}
		conn := newTCPConnection(raw, s.log)
		newConnCB(conn)
		conn.startReadLoop()
	}
}

// Release implements ServerTransport. Idempotent.
func (s *TCPServer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || s.listener == nil {
		s.released = true
		return
	}
	s.released = true
	_ = s.listener.Close()
}

// TCPClient is the net.Conn-backed ClientTransport.
type TCPClient struct {
	log zerolog.Logger
}

// NewTCPClient returns a TCPClient.
func NewTCPClient() *TCPClient {
	return &TCPClient{log: logging.Logger()}
}

// Connect implements ClientTransport.
func (c *TCPClient) Connect(host string, port int, dataCB func([]byte), brokenCB func(bool)) Connection {
	raw, err := net.Dial("tcp", net.JoinHostPort(host, itoa(port)))
	if err != nil {
		c.log.Warn().Err(err).Str("host", host).Int("port", port).Msg("connect failed")
		return nil
	}
	conn := newTCPConnection(raw, c.log)
	conn.SetDataReceivedCB(dataCB)
	conn.SetBrokenCB(brokenCB)
	conn.startReadLoop()
	return conn
}

// tcpConnection adapts a net.Conn to the Connection interface: a
// dedicated read goroutine pushes received bytes to the installed
// data-received callback and invokes the broken callback exactly once on
// EOF or read error, mirroring the teacher's readLoop/onMessage wiring
// but for raw byte batches rather than reassembled RTMP messages.
type tcpConnection struct {
	raw net.Conn
	log zerolog.Logger

	mu       sync.Mutex
	dataCB   func([]byte)
	brokCB   func(bool)
	broken   int32
	detached int32
	readBuf  []byte
}

func newTCPConnection(raw net.Conn, log zerolog.Logger) *tcpConnection {
	return &tcpConnection{
		raw:     raw,
		log:     logging.WithConn(log, raw.RemoteAddr().String(), raw.RemoteAddr().String()),
		readBuf: make([]byte, 64*1024),
	}
}

func (c *tcpConnection) PeerID() string { return c.raw.RemoteAddr().String() }

func (c *tcpConnection) SetDataReceivedCB(fn func([]byte)) {
	c.mu.Lock()
	c.dataCB = fn
	c.mu.Unlock()
}

func (c *tcpConnection) SetBrokenCB(fn func(bool)) {
	c.mu.Lock()
	c.brokCB = fn
	c.mu.Unlock()
}

func (c *tcpConnection) Send(data []byte) error {
	_, err := c.raw.Write(data)
	if err != nil {
		return errors.Wrap(err, "transport: send failed")
	}
	return nil
}

// halfCloser is the subset of *net.TCPConn (and *net.UnixConn) Break(true)
// uses to shut down the write side only, leaving the read loop free to
// still deliver whatever the peer sends back before it too closes.
type halfCloser interface {
	CloseWrite() error
}

// Break tears the connection down. clean=true shuts down only the write
// side (when the underlying net.Conn supports it): any response already
// in flight from the peer still reaches the data-received callback, and
// the broken callback fires later, on its own, once the read loop
// observes the peer's own close. clean=false closes outright and fires
// the broken callback synchronously — used when the connection is known
// dead (timeout, parse error) and nothing more will ever arrive.
func (c *tcpConnection) Break(clean bool) error {
	if clean {
		if hc, ok := c.raw.(halfCloser); ok {
			if err := hc.CloseWrite(); err != nil {
				return errors.Wrap(err, "transport: break failed")
			}
			return nil
		}
	}
	err := c.raw.Close()
	c.fireBroken(clean)
	if err != nil {
		return errors.Wrap(err, "transport: break failed")
	}
	return nil
}

func (c *tcpConnection) fireBroken(clean bool) {
	if !atomic.CompareAndSwapInt32(&c.broken, 0, 1) {
		return
	}
	c.mu.Lock()
	cb := c.brokCB
	c.mu.Unlock()
	if cb != nil {
		cb(clean)
	}
}

// Detach hands exclusive ownership of the underlying net.Conn to the
// caller, stopping this connection's own read loop before its next Read.
// Safe only when called synchronously from within the data-received
// callback (see Detacher).
func (c *tcpConnection) Detach() (net.Conn, []byte) {
	atomic.StoreInt32(&c.detached, 1)
	return c.raw, nil
}

func (c *tcpConnection) startReadLoop() {
	go func() {
		for {
			if atomic.LoadInt32(&c.detached) == 1 {
				return
			}
			n, err := c.raw.Read(c.readBuf)
			if n > 0 {
				c.mu.Lock()
				cb := c.dataCB
				c.mu.Unlock()
				if cb != nil {
					batch := make([]byte, n)
					copy(batch, c.readBuf[:n])
					cb(batch)
				}
			}
			if err != nil {
				clean := isCleanClose(err)
				c.fireBroken(clean)
				return
			}
		}
	}()
}

func isCleanClose(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
