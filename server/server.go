// Package server implements the server-side connection manager of §4.4:
// accept connections, reassemble pipelined requests, route them through a
// resource-space tree, respond, and reap broken connections off the
// critical path of any transport callback.
package server

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/intuitivelabs/httpcore/httpmsg"
	"github.com/intuitivelabs/httpcore/logging"
	"github.com/intuitivelabs/httpcore/resourcespace"
	"github.com/intuitivelabs/httpcore/transport"
)

// Server is the C4 Server Core. The zero value is not usable; construct
// with New.
type Server struct {
	log zerolog.Logger

	// mu is lock S (§5 Locking discipline): protects active, broken, cfg
	// and resources.
	mu        sync.Mutex
	cfg       Config
	resources *resourcespace.Tree
	active    map[string]*ServerConnectionState
	broken    map[string]*ServerConnectionState

	transport transport.ServerTransport
	mobilized bool

	reaperWake chan struct{}
	eg         *errgroup.Group
	cancel     context.CancelFunc
}

// New returns an unmobilized Server with default configuration.
func New() *Server {
	return &Server{
		log:        logging.Logger(),
		cfg:        defaultConfig(),
		resources:  resourcespace.New(),
		active:     make(map[string]*ServerConnectionState),
		broken:     make(map[string]*ServerConnectionState),
		reaperWake: make(chan struct{}, 1),
	}
}

// Mobilize binds transport to port and installs the new-connection
// callback, then starts the reaper goroutine. Returns false on bind
// failure (§4.4 "Returns false on bind failure").
func (s *Server) Mobilize(tr transport.ServerTransport, port int) bool {
	s.mu.Lock()
	if s.mobilized {
		s.mu.Unlock()
		return true
	}
	s.transport = tr
	s.mu.Unlock()

	if ok := tr.Bind(port, s.onNewConnection); !ok {
		s.log.Error().Int("port", port).Msg("mobilize: bind failed")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.eg = eg
	eg.Go(func() error {
		s.runReaper(ctx)
		return nil
	})

	s.mu.Lock()
	s.mobilized = true
	s.mu.Unlock()
	s.log.Info().Int("port", port).Msg("mobilized")
	return true
}

// Demobilize releases the transport and stops the reaper. Idempotent.
func (s *Server) Demobilize() {
	s.mu.Lock()
	if !s.mobilized {
		s.mu.Unlock()
		return
	}
	tr := s.transport
	cancel := s.cancel
	s.mobilized = false
	s.mu.Unlock()

	if tr != nil {
		tr.Release()
	}
	if cancel != nil {
		cancel()
	}
	if s.eg != nil {
		_ = s.eg.Wait()
	}
	s.log.Info().Msg("demobilized")
}

// RegisterResource registers handler at the exact resource-space path
// named by segments (§4.4 "register-resource"). Returns (nil, false) on a
// conflicting registration. The returned unregister function takes lock S
// itself.
func (s *Server) RegisterResource(segments []string, handler resourcespace.Handler) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unregister, ok := s.resources.Register(segments, handler)
	if !ok {
		return nil, false
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		unregister()
	}, true
}

// ParseRequest is a synchronous wrapper over C2 for testing (§4.4
// "parse-request(raw) -> Request | null"). It returns the parsed message
// and the number of bytes consumed; the message is nil only when raw is
// empty.
func (s *Server) ParseRequest(raw []byte) (*httpmsg.Message, int) {
	if len(raw) == 0 {
		return nil, 0
	}
	msg := freshRequest(s.snapshotConfig())
	n := httpmsg.ParseNext(raw, msg)
	return msg, n
}

// snapshotConfig returns a copy of the current configuration under lock S,
// used to stamp freshly constructed per-connection/per-request Messages.
func (s *Server) snapshotConfig() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ConfigurationItem returns the string-map façade view of key (§4.4
// "configuration-item(key)").
func (s *Server) ConfigurationItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case "host":
		return s.cfg.Host, true
	case "HeaderLineLimit":
		return strconv.Itoa(s.cfg.HeaderLineLimit), true
	case "MaxBodyBytes":
		return strconv.FormatInt(s.cfg.MaxBodyBytes, 10), true
	}
	return "", false
}

// Set applies a single configuration key (§4.4 "set(key, value)"). The key
// HeaderLineLimit is special: a non-negative integer value updates the
// runtime limit immediately (§9 "Configuration side effects").
func (s *Server) Set(key, value string) error {
	return s.SetAll(map[string]string{key: value})
}

// SetAll applies a batch of configuration settings at once, aggregating
// every rejected key via go-multierror rather than stopping at the first
// bad one (SPEC_FULL.md "Configuration").
func (s *Server) SetAll(settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := decodeConfig(&s.cfg, settings); err != nil {
		return errors.Wrap(err, "server: SetAll failed")
	}
	return nil
}

func (s *Server) wakeReaper() {
	select {
	case s.reaperWake <- struct{}{}:
	default:
	}
}
