package main

import (
	"errors"
	"flag"
	"os"
)

type cliConfig struct {
	port     int
	logLevel string
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("httpcore-demo", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.IntVar(&cfg.port, "port", 8080, "TCP listen port")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.port <= 0 || cfg.port > 65535 {
		return nil, errors.New("port must be between 1 and 65535")
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level " + cfg.logLevel)
	}
	return cfg, nil
}
