package gaussconn

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/opengauss-go/gaussconn/connstring"
)

// DialFunc matches net.Dialer.DialContext; tests substitute an in-memory
// pipe dialer (grounded on pgconn/config.go's DialFunc).
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config is the materialized, dial-ready form of a connstring.Config: one
// TLS config per Host entry (nil disables TLS, matching unix sockets which
// never negotiate TLS), plus the dial function.
type Config struct {
	*connstring.Config

	DialFunc   DialFunc
	TLSConfigs []*tls.Config // parallel to Config.Hosts

	// Tracer receives Connect/Execute/Prepare/Acquire/Release lifecycle
	// events, per spec.md section 10.1. Nil disables logging entirely;
	// callers wanting logs set this to a *gausslog.TraceLog wrapping one of
	// the log/*adapter backends.
	Tracer Tracer

	// Metrics receives wire-traffic and command counters, per spec.md
	// section 6. Nil disables metrics entirely; callers wanting them set
	// this to a *gaussmetrics.Collector. PoolName is the label value every
	// metric is reported under; it defaults to the database name if unset.
	Metrics  Metrics
	PoolName string

	certReloaders []*certReloader // non-nil entries only where client cert rotation is in effect
}

// MetricsPool returns the label every gaussmetrics series for this Config is
// recorded under.
func (c *Config) MetricsPool() string {
	if c.PoolName != "" {
		return c.PoolName
	}
	return c.Database
}

// Close releases resources NewConfig opened outside the eventual
// connections themselves — currently, the background file watchers behind
// client certificate rotation.
func (c *Config) Close() error {
	var first error
	for _, r := range c.certReloaders {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewConfig materializes a dial-ready Config from a parsed connection
// string.
func NewConfig(cs *connstring.Config) (*Config, error) {
	dialer := &net.Dialer{KeepAlive: 5 * time.Minute, Timeout: cs.Timeout}

	cfg := &Config{
		Config:   cs,
		DialFunc: dialer.DialContext,
	}

	for _, hp := range cs.Hosts {
		if connstring.IsUnixSocket(hp) {
			cfg.TLSConfigs = append(cfg.TLSConfigs, nil)
			cfg.certReloaders = append(cfg.certReloaders, nil)
			continue
		}
		tlsConfig, reloader, err := buildTLSConfig(cs, hp.Host)
		if err != nil {
			return nil, err
		}
		cfg.TLSConfigs = append(cfg.TLSConfigs, tlsConfig)
		cfg.certReloaders = append(cfg.certReloaders, reloader)
	}

	return cfg, nil
}

// buildTLSConfig mirrors pgconn/config.go's configTLS: sslmode selects the
// verification strictness, TrustServerCertificate and RootCertificate feed
// the cert pool. The client certificate pair, if configured, is served
// through a certReloader so operators can rotate it without restarting the
// pool; the returned reloader is nil whenever no client cert is configured.
func buildTLSConfig(cs *connstring.Config, host string) (*tls.Config, *certReloader, error) {
	if cs.SslMode == connstring.SslDisable {
		return nil, nil, nil
	}

	tlsConfig := &tls.Config{}

	switch cs.SslMode {
	case connstring.SslAllow, connstring.SslPrefer:
		tlsConfig.InsecureSkipVerify = true
	case connstring.SslRequire:
		tlsConfig.InsecureSkipVerify = cs.TrustServerCertificate || cs.RootCertificate == ""
	case connstring.SslVerifyCA, connstring.SslVerifyFull:
		tlsConfig.ServerName = host
	default:
		return nil, nil, errors.Errorf("gaussconn: invalid SslMode %q", cs.SslMode)
	}

	if cs.RootCertificate != "" {
		pool, err := loadRootCAs(cs.RootCertificate)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "gaussconn: unable to read RootCertificate %q", cs.RootCertificate)
		}
		tlsConfig.RootCAs = pool
	}

	var reloader *certReloader
	if cs.SslCertificate != "" && cs.SslKey != "" {
		r, err := newCertReloader(cs.SslCertificate, cs.SslKey)
		if err != nil {
			return nil, nil, errors.Wrap(err, "gaussconn: unable to load client certificate")
		}
		reloader = r
		tlsConfig.GetClientCertificate = r.GetClientCertificate
	}

	return tlsConfig, reloader, nil
}
