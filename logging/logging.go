// Package logging provides the process-wide structured logger shared by
// the server, client and transport packages.
//
// Grounded on the teacher pack's internal/logger (alxayo-rtmp-go): the
// same atomic-level-plus-sync.Once shape, the same env-var/flag
// precedence for the initial level, and the same With* attach-context
// helpers — built on zerolog instead of log/slog, since zerolog is the
// structured logger the rest of the retrieval pack reaches for
// (DESIGN.md "Ambient stack").
package logging

import (
	"flag"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const envLogLevel = "HTTPCORE_LOG_LEVEL"

var (
	atomicLevel int32 // zerolog.Level, stored atomically
	global      zerolog.Logger
	initOnce    sync.Once

	flagLevel = flag.String("log.level", "", "log level (debug, info, warn, error)")
)

// Init initializes the global logger. Safe to call multiple times; only
// the first call installs the writer/level.
func Init() {
	initOnce.Do(func() {
		lvl := detectLevel()
		atomic.StoreInt32(&atomicLevel, int32(lvl))
		zerolog.SetGlobalLevel(lvl)
		global = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
}

func detectLevel() zerolog.Level {
	if *flagLevel == "" {
		for _, arg := range os.Args[1:] {
			if strings.HasPrefix(arg, "-log.level=") {
				parts := strings.SplitN(arg, "=", 2)
				if len(parts) == 2 {
					*flagLevel = parts[1]
				}
			}
		}
	}
	if fl := strings.TrimSpace(*flagLevel); fl != "" {
		if lvl, ok := parseLevel(fl); ok {
			return lvl
		}
	}
	if env := os.Getenv(envLogLevel); env != "" {
		if lvl, ok := parseLevel(env); ok {
			return lvl
		}
	}
	return zerolog.InfoLevel
}

func parseLevel(s string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, true
	case "info", "":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error", "err":
		return zerolog.ErrorLevel, true
	}
	return 0, false
}

// SetLevel changes the runtime log level.
func SetLevel(level string) error {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return errUnknownLevel(level)
	}
	atomic.StoreInt32(&atomicLevel, int32(lvl))
	zerolog.SetGlobalLevel(lvl)
	return nil
}

type errUnknownLevel string

func (e errUnknownLevel) Error() string { return "logging: unknown level " + string(e) }

// Logger returns the global logger, initializing it on first use.
func Logger() zerolog.Logger {
	Init()
	return global
}

// WithConn attaches connection identity fields, mirroring the teacher's
// WithConn(connID, peerAddr) attach helper.
func WithConn(l zerolog.Logger, connID, peerAddr string) zerolog.Logger {
	return l.With().Str("conn_id", connID).Str("peer_addr", peerAddr).Logger()
}

// WithServerID attaches a request/transaction correlation id under the
// req_id field.
func WithServerID(l zerolog.Logger, id string) zerolog.Logger {
	return l.With().Str("req_id", id).Logger()
}
