package gaussconn

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/opengauss-go/gaussconn/connstring"
	"github.com/opengauss-go/gaussconn/gausserr"
	"github.com/opengauss-go/gaussconn/gaussproto"
	"github.com/opengauss-go/gaussconn/internal/ctxwatch"
)

// NoticeHandler receives NoticeResponse messages as they arrive; per
// spec.md section 7, a notice is never an error.
type NoticeHandler func(gaussproto.ErrorFields)

// NotificationHandler receives asynchronous LISTEN/NOTIFY deliveries.
type NotificationHandler func(pid uint32, channel, payload string)

// Connector is spec.md section 3's Connector entity: one socket, its
// buffers (via gaussproto.Frame), its protocol state, its prepared
// statement cache, and its backend key for out-of-band cancellation.
// Grounded on pgconn.PgConn's connect/receiveMessage loop
// (github.com/jackc/pgx/v5/pgconn/pgconn.go), generalized to spec.md's
// named state machine.
type Connector struct {
	cfg  *Config
	host connstring.HostPort

	conn  net.Conn
	frame *gaussproto.Frame

	state atomic.Int32

	pid       uint32
	secretKey uint32

	paramMu sync.RWMutex
	params  map[string]string

	serverVersion *semver.Version

	stmts *stmtCache

	contextWatcher *ctxwatch.ContextWatcher

	onNotice       NoticeHandler
	onNotification NotificationHandler

	gssProvider GSSProvider
}

// Open implements spec.md section 4.3's Closed -> Ready transition: socket
// connect, optional TLS upgrade, startup message, authentication
// sub-protocol, BackendKeyData, and the trailing ReadyForQuery.
func Open(ctx context.Context, cfg *Config, hostIndex int) (conn *Connector, err error) {
	if hostIndex < 0 || hostIndex >= len(cfg.Hosts) {
		return nil, gausserr.ConfigurationInvalid("gaussconn: host index %d out of range", hostIndex)
	}
	host := cfg.Hosts[hostIndex]
	tlsConfig := cfg.TLSConfigs[hostIndex]

	if cfg.Tracer != nil {
		started := cfg.Tracer.ConnectStart(ctx, host.Host, host.Port, cfg.Database)
		defer func() {
			var pid uint32
			if conn != nil {
				pid = conn.pid
			}
			cfg.Tracer.ConnectEnd(ctx, started, host.Host, host.Port, cfg.Database, pid, err)
		}()
	}

	network, address := networkAddress(host)

	dialCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	netConn, err := cfg.DialFunc(dialCtx, network, address)
	if err != nil {
		return nil, gausserr.ConnectionFailed(err, "gaussconn: dial %s", address)
	}

	c := &Connector{
		cfg:    cfg,
		host:   host,
		conn:   netConn,
		params: make(map[string]string),
		stmts:  newStmtCache(cfg.MaxAutoPrepare, cfg.AutoPrepareMinUsages),
	}
	c.state.Store(int32(Connecting))
	c.contextWatcher = newContextWatcher(netConn)
	c.contextWatcher.Watch(ctx)

	if tlsConfig != nil {
		upgraded, err := upgradeToTLS(netConn, tlsConfig)
		c.contextWatcher.Unwatch()
		if err != nil {
			netConn.Close()
			return nil, gausserr.ConnectionFailed(err, "gaussconn: TLS upgrade to %s", address)
		}
		c.conn = upgraded
		c.contextWatcher = newContextWatcher(upgraded)
		c.contextWatcher.Watch(ctx)
	}
	defer c.contextWatcher.Unwatch()

	c.frame = gaussproto.NewFrame(c.conn, c.conn, cfg.ReadBufferSize)
	if cfg.Metrics != nil {
		pool := cfg.MetricsPool()
		c.frame.OnBytesWritten = func(n int) { cfg.Metrics.BytesWritten(pool, n) }
		c.frame.OnBytesRead = func(n int) { cfg.Metrics.BytesRead(pool, n) }
	}

	if err := c.handshake(); err != nil {
		c.conn.Close()
		c.state.Store(int32(Broken))
		return nil, err
	}

	c.state.Store(int32(Ready))
	return c, nil
}

func networkAddress(hp connstring.HostPort) (network, address string) {
	if connstring.IsUnixSocket(hp) {
		return "unix", connstring.UnixSocketPath(hp)
	}
	return "tcp", fmt.Sprintf("%s:%d", hp.Host, hp.Port)
}

func newContextWatcher(conn net.Conn) *ctxwatch.ContextWatcher {
	return ctxwatch.NewContextWatcher(
		func() { conn.SetDeadline(time.Unix(1, 0)) },
		func() { conn.SetDeadline(time.Time{}) },
	)
}

func (c *Connector) handshake() error {
	startup := gaussproto.StartupMessage{
		ProtocolVersion: gaussproto.ProtocolVersionNumber,
		Parameters:      make(map[string]string),
	}
	for k, v := range c.cfg.RuntimeParams {
		startup.Parameters[k] = v
	}
	startup.Parameters["user"] = c.cfg.Username
	if c.cfg.Database != "" {
		startup.Parameters["database"] = c.cfg.Database
	}

	c.frame.Send(&startup)
	if err := c.frame.Flush(); err != nil {
		return gausserr.ConnectionFailed(err, "gaussconn: write startup message")
	}

	for {
		msg, err := c.frame.Receive()
		if err != nil {
			return gausserr.ConnectionFailed(err, "gaussconn: read handshake message")
		}

		switch m := msg.(type) {
		case *gaussproto.BackendKeyData:
			c.pid = m.ProcessID
			c.secretKey = m.SecretKey

		case *gaussproto.Authentication:
			done, err := c.handleAuthentication(m)
			if err != nil {
				return gausserr.AuthenticationFailed(err, "gaussconn: authentication")
			}
			if done {
				continue
			}

		case *gaussproto.ParameterStatus:
			c.setParam(m.Name, m.Value)

		case *gaussproto.NoticeResponse:
			if c.onNotice != nil {
				c.onNotice(m.ErrorFields)
			}

		case *gaussproto.ErrorResponse:
			return gausserr.ServerError(m.Code, m.Message, m.Detail, m.Hint, m.ColumnName, m.TableName, m.ConstraintName, m.File, m.Line, m.Routine)

		case *gaussproto.ReadyForQuery:
			return nil

		default:
			return gausserr.ProtocolViolation("gaussconn: unexpected message %T during handshake", m)
		}
	}
}

// handleAuthentication dispatches one Authentication message per spec.md
// section 4.3's authentication sub-protocol contract. It returns done=true
// once AuthenticationOk has been observed (the loop continues reading
// toward BackendKeyData/ReadyForQuery either way).
func (c *Connector) handleAuthentication(m *gaussproto.Authentication) (bool, error) {
	switch m.Type {
	case gaussproto.AuthTypeOk:
		return true, nil

	case gaussproto.AuthTypeCleartextPassword:
		return false, c.sendPassword(c.cfg.Password)

	case gaussproto.AuthTypeMD5Password:
		return false, c.sendPassword(md5Password(c.cfg.Password, c.cfg.Username, m.MD5Salt))

	case gaussproto.AuthTypeSASL:
		// openGauss overloads the SASL type codes for its single-challenge
		// SHA-256 flow (spec.md section 4.3).
		resp, err := gaussSHA256Response(c.cfg.Password, m.GaussSHA256)
		if err != nil {
			return false, err
		}
		return false, c.sendPasswordBytes(resp)

	case gaussproto.AuthTypeSASLContinue, gaussproto.AuthTypeSASLFinal:
		// openGauss's flow is single-round; any continuation data is
		// acknowledged and ignored.
		return false, nil

	case gaussproto.AuthTypeGSS, gaussproto.AuthTypeGSSContinue:
		if c.gssProvider == nil {
			return false, errors.New("gaussconn: server requested GSS authentication but no GSSProvider was configured")
		}
		outToken, done, err := c.gssProvider.InitSecContext(m.GSSData)
		if err != nil {
			return false, err
		}
		if len(outToken) > 0 {
			if err := c.sendPasswordBytes(outToken); err != nil {
				return false, err
			}
		}
		return done, nil

	default:
		return false, fmt.Errorf("gaussconn: unsupported authentication type %d", m.Type)
	}
}

func (c *Connector) sendPassword(password string) error {
	return c.sendPasswordBytes(append([]byte(password), 0))
}

func (c *Connector) sendPasswordBytes(body []byte) error {
	c.frame.Send(&gaussproto.PasswordMessage{Body: body})
	return c.frame.Flush()
}

func (c *Connector) setParam(name, value string) {
	c.paramMu.Lock()
	c.params[name] = value
	if name == "server_version" {
		c.serverVersion = parseServerVersion(value)
	}
	c.paramMu.Unlock()
}

// parseServerVersion extracts a semver-compatible prefix from a
// ParameterStatus("server_version", ...) value. openGauss and Postgres both
// report strings like "9.2.4" or "13.3 (openGauss 5.0.0)"; only the leading
// dotted-number run is meaningful for feature gating, so anything after the
// first whitespace or non-numeric rune is dropped before parsing.
func parseServerVersion(raw string) *semver.Version {
	end := len(raw)
	for i, r := range raw {
		if r != '.' && (r < '0' || r > '9') {
			end = i
			break
		}
	}
	v, err := semver.NewVersion(raw[:end])
	if err != nil {
		return nil
	}
	return v
}

// ServerVersion returns the parsed server_version ParameterStatus, or nil if
// the server never sent one or it couldn't be parsed as a semantic version.
func (c *Connector) ServerVersion() *semver.Version {
	c.paramMu.RLock()
	defer c.paramMu.RUnlock()
	return c.serverVersion
}

// ServerVersionAtLeast reports whether the connected server's version is at
// or above constraint (e.g. "9.1.0"). Returns false if the server version is
// unknown, which keeps callers on the conservative, older-server code path.
func (c *Connector) ServerVersionAtLeast(constraint string) bool {
	v := c.ServerVersion()
	if v == nil {
		return false
	}
	want, err := semver.NewVersion(constraint)
	if err != nil {
		return false
	}
	return !v.LessThan(want)
}

// Param returns the last ParameterStatus value received for name.
func (c *Connector) Param(name string) (string, bool) {
	c.paramMu.RLock()
	defer c.paramMu.RUnlock()
	v, ok := c.params[name]
	return v, ok
}

// State returns the connector's current protocol state.
func (c *Connector) State() State { return State(c.state.Load()) }

// PID and SecretKey are the BackendKeyData pair used for cancellation.
func (c *Connector) PID() uint32       { return c.pid }
func (c *Connector) SecretKey() uint32 { return c.secretKey }

func (c *Connector) casState(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// Terminate sends the Terminate message and closes the socket (spec.md
// section 4.3).
func (c *Connector) Terminate() error {
	if c.state.Load() == int32(Closed) {
		return nil
	}
	c.frame.Send(&gaussproto.Terminate{})
	_ = c.frame.Flush()
	c.state.Store(int32(Closed))
	return c.conn.Close()
}

// Cancel implements spec.md section 4.3's out-of-band cancellation: open a
// transient socket to the same host, send CancelRequest(PID, secret),
// close it, then wait up to CancellationTimeout for the current command to
// terminate server-side. CancellationTimeout == -1 closes the main socket
// immediately without waiting and marks the connector Broken, per spec.md
// section 9's Open Question decision.
func (c *Connector) Cancel(ctx context.Context) error {
	network, address := networkAddress(c.host)
	cancelConn, err := c.cfg.DialFunc(ctx, network, address)
	if err != nil {
		return gausserr.ConnectionFailed(err, "gaussconn: cancel dial")
	}
	defer cancelConn.Close()

	req := gaussproto.CancelRequest{ProcessID: c.pid, SecretKey: c.secretKey}
	buf := req.Encode(nil)
	if _, err := cancelConn.Write(buf); err != nil {
		return gausserr.ConnectionFailed(err, "gaussconn: send CancelRequest")
	}

	if c.cfg.CancellationTimeout < 0 {
		c.state.Store(int32(Broken))
		return c.conn.Close()
	}

	if c.cfg.CancellationTimeout > 0 {
		deadline := time.Now().Add(c.cfg.CancellationTimeout)
		for {
			if c.State() == Ready {
				return nil
			}
			if time.Now().After(deadline) {
				c.state.Store(int32(Broken))
				return gausserr.Timeout("gaussconn: cancellation not acknowledged within CancellationTimeout")
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	return nil
}

// Keepalive sends an empty query when KeepAlive seconds of idleness have
// passed; on I/O failure the connector is marked Broken (spec.md section
// 4.3/5).
func (c *Connector) Keepalive(ctx context.Context) error {
	if !c.casState(Ready, Executing) {
		return gausserr.OperationInProgress()
	}
	defer c.state.Store(int32(Ready))

	c.frame.Send(&gaussproto.Query{SQL: ";"})
	if err := c.frame.Flush(); err != nil {
		c.state.Store(int32(Broken))
		return gausserr.Broken(err, "gaussconn: keepalive write")
	}

	for {
		msg, err := c.frame.Receive()
		if err != nil {
			c.state.Store(int32(Broken))
			return gausserr.Broken(err, "gaussconn: keepalive read")
		}
		if _, ok := msg.(*gaussproto.ReadyForQuery); ok {
			return nil
		}
	}
}

// Reset issues the session-reset equivalent of DISCARD ALL before the
// connector returns to the pool, unless NoResetOnClose is set (spec.md
// section 4.3).
func (c *Connector) Reset(ctx context.Context) error {
	if c.cfg.NoResetOnClose {
		return nil
	}
	if !c.casState(Ready, Executing) {
		return gausserr.OperationInProgress()
	}
	defer c.state.Store(int32(Ready))

	c.stmts.InvalidateAll()
	c.onNotice = nil
	c.onNotification = nil
	c.paramMu.Lock()
	c.params = make(map[string]string)
	c.paramMu.Unlock()

	c.frame.Send(&gaussproto.Query{SQL: "DISCARD ALL"})
	if err := c.frame.Flush(); err != nil {
		c.state.Store(int32(Broken))
		return gausserr.Broken(err, "gaussconn: reset write")
	}

	for {
		msg, err := c.frame.Receive()
		if err != nil {
			c.state.Store(int32(Broken))
			return gausserr.Broken(err, "gaussconn: reset read")
		}
		switch msg.(type) {
		case *gaussproto.ReadyForQuery:
			return nil
		case *gaussproto.ErrorResponse:
			c.state.Store(int32(Broken))
			return gausserr.Broken(nil, "gaussconn: DISCARD ALL failed during reset")
		}
	}
}
