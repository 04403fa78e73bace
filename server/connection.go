package server

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/intuitivelabs/httpcore/httpmsg"
	"github.com/intuitivelabs/httpcore/logging"
	"github.com/intuitivelabs/httpcore/resourcespace"
	"github.com/intuitivelabs/httpcore/transport"
)

// ServerConnectionState is the per-connection bookkeeping of §3 Data
// Model "Server Connection State": the transport connection, its
// reassembly buffer, and the request under construction. The server looks
// it up by id on every transport callback rather than closing over it
// directly, so that a callback firing after the state has moved to
// broken-connections (or been dropped by the reaper) degrades to a no-op
// instead of touching freed state — the Go equivalent of the spec's
// "weak back-reference" (§4.4 "New-connection handling").
type ServerConnectionState struct {
	id   string
	conn transport.Connection
	log  zerolog.Logger

	mu          sync.Mutex
	reassembly  []byte
	nextRequest *httpmsg.Message
}

func newServerConnectionState(conn transport.Connection, cfg Config) *ServerConnectionState {
	id := uuid.NewString()
	return &ServerConnectionState{
		id:          id,
		conn:        conn,
		log:         logging.WithConn(logging.Logger(), id, conn.PeerID()),
		nextRequest: freshRequest(cfg),
	}
}

func freshRequest(cfg Config) *httpmsg.Message {
	msg := httpmsg.NewMessage()
	msg.SetHeaderLineLimit(cfg.HeaderLineLimit)
	msg.SetMaxBodyBytes(cfg.MaxBodyBytes)
	msg.SetServerHost(cfg.Host)
	return msg
}

// onNewConnection installs the data-received/broken delegates for a newly
// accepted connection, both of which re-resolve the ConnectionState by id
// through the server (§4.4 "Both delegates re-acquire the server lock on
// entry; if the ConnectionState has been released... return silently").
func (s *Server) onNewConnection(conn transport.Connection) {
	s.mu.Lock()
	cfg := s.cfg
	st := newServerConnectionState(conn, cfg)
	s.active[st.id] = st
	s.mu.Unlock()

	id := st.id
	conn.SetDataReceivedCB(func(data []byte) {
		s.handleData(id, data)
	})
	conn.SetBrokenCB(func(clean bool) {
		s.handleBroken(id, clean)
	})
	st.log.Debug().Msg("connection accepted")
}

// handleData is §4.4 "Data-received": append new bytes, then repeatedly
// try to assemble and dispatch a complete request, supporting pipelining
// within a single callback.
func (s *Server) handleData(id string, data []byte) {
	s.mu.Lock()
	st, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		return
	}

	st.mu.Lock()
	st.reassembly = append(st.reassembly, data...)
	for {
		buf := st.reassembly
		req := st.nextRequest
		n := httpmsg.ParseNext(buf, req)
		if req.State != httpmsg.StateComplete && req.State != httpmsg.StateError {
			break
		}
		st.reassembly = buf[n:]

		breakAfter := req.State == httpmsg.StateError
		resp := s.respondTo(req, buf)
		if req.State == httpmsg.StateComplete && req.Valid && req.Headers.ConnectionHasClose() {
			breakAfter = true
		}

		st.nextRequest = freshRequest(s.snapshotConfig())
		if err := st.conn.Send(resp); err != nil {
			st.log.Warn().Err(err).Msg("send failed")
			breakAfter = true
		}
		if breakAfter {
			st.mu.Unlock()
			_ = st.conn.Break(true)
			return
		}
		if len(st.reassembly) == 0 {
			break
		}
	}
	st.mu.Unlock()
}

// respondTo implements the routing/dispatch half of §4.4 step 3-4: a
// complete, valid request is routed through the resource-space tree; a
// routing miss or an invalid/errored request gets a canned response. buf
// is the reassembly buffer snapshot req was parsed against — still valid
// here since the caller has not yet mutated it further.
func (s *Server) respondTo(req *httpmsg.Message, buf []byte) []byte {
	if req.State == httpmsg.StateError || !req.Valid {
		return canned400()
	}

	path := splitPath(string(req.Target(buf)))
	s.mu.Lock()
	handler, residual := s.resources.Resolve(path)
	s.mu.Unlock()
	if handler == nil {
		return canned404()
	}

	rsReq := &resourcespace.Request{
		Method:  req.Method(),
		Target:  string(req.Target(buf)),
		Path:    residual,
		Headers: &req.Headers,
		Body:    req.Body,
	}
	resp := handler(rsReq, residual)
	if resp == nil {
		return canned404()
	}
	headers := resp.Headers
	if headers == nil {
		headers = httpmsg.NewHeaders()
	}
	return httpmsg.SerializeResponse(resp.StatusCode, resp.Reason, headers, resp.Body)
}

// splitPath strips a leading empty path segment (§4.4 step 3: "strip a
// leading empty path segment") and splits the rest on "/".
func splitPath(target string) []string {
	target = strings.TrimPrefix(target, "/")
	if target == "" {
		return nil
	}
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	return strings.Split(target, "/")
}

// handleBroken is §4.4 "Broken-connection handling": move the state from
// active to broken and wake the reaper.
func (s *Server) handleBroken(id string, clean bool) {
	s.mu.Lock()
	st, ok := s.active[id]
	if ok {
		delete(s.active, id)
		s.broken[id] = st
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	st.log.Debug().Bool("clean", clean).Msg("connection broken")
	s.wakeReaper()
}
