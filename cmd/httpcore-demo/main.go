// Command httpcore-demo mobilizes a server.Server and client.Client
// against real TCP transports, registers one resource, fires a single
// self-request through it, then waits for a shutdown signal — exercising
// the library end to end the way cmd/rtmp-server exercises the teacher's
// server package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/intuitivelabs/httpcore/client"
	"github.com/intuitivelabs/httpcore/httpmsg"
	"github.com/intuitivelabs/httpcore/logging"
	"github.com/intuitivelabs/httpcore/resourcespace"
	"github.com/intuitivelabs/httpcore/server"
	"github.com/intuitivelabs/httpcore/transport"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logging.Init()
	if err := logging.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("warning: invalid log level, using default: %v\n", err)
	}
	log := logging.Logger()

	srv := server.New()
	srv.RegisterResource([]string{"status"}, func(req *resourcespace.Request, residual []string) *resourcespace.Response {
		headers := httpmsg.NewHeaders()
		headers.Add("Content-Type", "text/plain")
		body := []byte("ok\r\n")
		headers.Add("Content-Length", fmt.Sprintf("%d", len(body)))
		return &resourcespace.Response{StatusCode: 200, Reason: "OK", Headers: headers, Body: body}
	})

	if !srv.Mobilize(transport.NewTCPServer(), cfg.port) {
		log.Error().Int("port", cfg.port).Msg("failed to bind")
		os.Exit(1)
	}
	log.Info().Int("port", cfg.port).Msg("server started")

	demoClientRequest(cfg.port, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		srv.Demobilize()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("server stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error().Msg("forced exit after timeout")
	}
}

func demoClientRequest(port int, log zerolog.Logger) {
	cli := client.New()
	if !cli.Mobilize(transport.NewTCPClient(), transport.SystemClock{}, 0, 0) {
		log.Error().Msg("client mobilize failed")
		return
	}
	defer cli.Demobilize()

	tx := cli.Request("127.0.0.1", port, "GET", "/status", nil, nil, false, nil)
	if !tx.AwaitCompletionTimeout(2 * time.Second) {
		log.Warn().Msg("demo request timed out")
		return
	}
	switch tx.State() {
	case client.TxCompleted:
		resp := tx.Response()
		log.Info().Uint16("status", resp.StatusCode()).Str("body", string(resp.Body)).Msg("demo request completed")
	default:
		log.Warn().Str("state", tx.State().String()).Msg("demo request did not complete")
	}
}
