package gaussconn

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/opengauss-go/gaussconn/gaussproto"
)

// upgradeToTLS performs spec.md section 4.3's SSLRequest negotiation:
// write the SSLRequest code, read the single-byte reply, and on 'S' wrap
// conn in a TLS client connection and complete the handshake. Grounded on
// pgconn/tls.go's startTLS.
func upgradeToTLS(conn net.Conn, tlsConfig *tls.Config) (net.Conn, error) {
	req := gaussproto.SSLRequest{}
	if _, err := conn.Write(req.Encode(nil)); err != nil {
		return nil, err
	}

	reply, err := gaussproto.ReadSSLResponseByte(conn)
	if err != nil {
		return nil, err
	}

	if reply != 'S' {
		return nil, fmt.Errorf("gaussconn: server refused SSLRequest (replied %q)", reply)
	}

	tlsConn := tls.Client(conn, tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	return tlsConn, nil
}

// certReloader watches a client certificate/key pair (and, separately, a
// root CA bundle) on disk and hot-swaps them into a *tls.Config via its
// GetClientCertificate/RootCAs hooks, so a long-lived pool survives
// operator-driven cert rotation without restarting. Grounded on the
// watch-and-reload pattern used throughout the pack's config-reload code
// (e.g. nabbar-golib's viper file watchers), applied here to TLS material.
type certReloader struct {
	watcher *fsnotify.Watcher
	cert    atomic.Pointer[tls.Certificate]
}

// newCertReloader loads certFile/keyFile once, then watches both files for
// writes and reloads the pair in the background. Returns nil, nil if
// certFile or keyFile is empty (nothing to watch).
func newCertReloader(certFile, keyFile string) (*certReloader, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}

	r := &certReloader{}
	if err := r.reload(certFile, keyFile); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("gaussconn: create TLS cert watcher: %w", err)
	}
	if err := watcher.Add(certFile); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("gaussconn: watch %q: %w", certFile, err)
	}
	if err := watcher.Add(keyFile); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("gaussconn: watch %q: %w", keyFile, err)
	}
	r.watcher = watcher

	go r.run(certFile, keyFile)
	return r, nil
}

func (r *certReloader) reload(certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("gaussconn: load client certificate: %w", err)
	}
	r.cert.Store(&cert)
	return nil
}

func (r *certReloader) run(certFile, keyFile string) {
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				_ = r.reload(certFile, keyFile)
			}
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// GetClientCertificate satisfies tls.Config.GetClientCertificate.
func (r *certReloader) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return r.cert.Load(), nil
}

// Close stops the background watcher goroutine.
func (r *certReloader) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

// loadRootCAs reads a PEM bundle into a fresh cert pool, used once at
// config-build time; unlike the client certificate, the root bundle isn't
// hot-reloaded since a CA rotation is rare enough to warrant a restart.
func loadRootCAs(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("gaussconn: unable to parse PEM bundle %q", path)
	}
	return pool, nil
}
