package server

import (
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/intuitivelabs/httpcore/httpmsg"
)

// Config is the typed server configuration applied at Mobilize time (§9
// Design Note "Configuration side effects": "Prefer exposing configuration
// as a typed structure applied at mobilize time; retain the string-map
// façade only if external tooling depends on it"). The string-map façade
// is ConfigurationItem/Set below.
type Config struct {
	// Host, if non-empty, is required to match both the request's Host
	// header and the request target's authority (§6 Configuration).
	Host string `mapstructure:"host"`

	// HeaderLineLimit bounds any single start line or header line.
	// Default: httpmsg.DefaultHeaderLineLimit.
	HeaderLineLimit int `mapstructure:"HeaderLineLimit"`

	// MaxBodyBytes is the hard Content-Length ceiling (§6 Limits: 10 MB).
	MaxBodyBytes int64 `mapstructure:"MaxBodyBytes"`
}

// DefaultMaxBodyBytes is the server-side Content-Length ceiling (§6
// Limits: "Maximum body (server): 10,000,000 bytes").
const DefaultMaxBodyBytes int64 = 10_000_000

func defaultConfig() Config {
	return Config{
		HeaderLineLimit: httpmsg.DefaultHeaderLineLimit,
		MaxBodyBytes:    DefaultMaxBodyBytes,
	}
}

// decodeConfig applies a batch of string-keyed settings onto a Config via
// mapstructure with WeaklyTypedInput. A value mapstructure cannot coerce
// (e.g. a non-numeric HeaderLineLimit) fails the whole call with
// mapstructure's own error, which lists every such field. The numeric
// keys (HeaderLineLimit, MaxBodyBytes) are then re-read through cast and
// negative values rejected; those rejections are collected via
// multierror, so every negative key in the batch is reported at once.
func decodeConfig(cfg *Config, settings map[string]string) error {
	raw := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		raw[k] = v
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return errors.Wrap(err, "server: config decoder setup failed")
	}
	if err := decoder.Decode(raw); err != nil {
		return errors.Wrap(err, "server: config decode failed")
	}

	var result *multierror.Error
	if v, ok := settings["HeaderLineLimit"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil || n < 0 {
			result = multierror.Append(result, errors.Errorf("server: HeaderLineLimit %q is not a non-negative integer", v))
		} else {
			cfg.HeaderLineLimit = n
		}
	}
	if v, ok := settings["MaxBodyBytes"]; ok {
		n, err := cast.ToInt64E(v)
		if err != nil || n < 0 {
			result = multierror.Append(result, errors.Errorf("server: MaxBodyBytes %q is not a non-negative integer", v))
		} else {
			cfg.MaxBodyBytes = n
		}
	}
	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}
