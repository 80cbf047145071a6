package connstring

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// reservedKeys are canonical keys populate consumes directly; anything else
// survives into Config.RuntimeParams and is sent verbatim in the startup
// message (application_name, client_encoding, search_path, TimeZone,
// options, and any deployment-specific GUC).
var reservedKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, v := range canonicalKeys {
		if v != "" {
			m[v] = true
		}
	}
	m["service"] = true
	m["servicefile"] = true
	return m
}()

// populate is the explicit switch spec.md Design Notes section 9 calls for
// in place of a reflective setter: one case per canonical key, each
// producing a typed field with its own parse/validate logic.
func populate(settings map[string]string) (*Config, error) {
	cfg := &Config{RuntimeParams: make(map[string]string)}

	folded := make(map[string]string, len(settings))
	for k, v := range settings {
		canon, ok := canonicalize(k)
		if !ok {
			folded[strings.ToLower(k)] = v
			continue
		}
		folded[canon] = v
	}

	hosts := strings.Split(folded["host"], ",")
	ports := strings.Split(folded["port"], ",")
	for i, h := range hosts {
		portStr := ports[0]
		if i < len(ports) {
			portStr = ports[i]
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("connstring: invalid port %q", portStr)
		}
		cfg.Hosts = append(cfg.Hosts, HostPort{Host: strings.TrimSpace(h), Port: uint16(port)})
	}

	cfg.Database = folded["database"]
	if cfg.Database == "" {
		cfg.Database = folded["username"]
	}
	cfg.Username = folded["username"]
	cfg.Password = folded["password"]
	cfg.Passfile = folded["passfile"]

	cfg.SslMode = SslMode(orDefault(folded["sslmode"], string(SslPrefer)))
	cfg.TrustServerCertificate = parseBool(folded["trustservercertificate"], false)
	cfg.SslCertificate = folded["sslcertificate"]
	cfg.SslKey = folded["sslkey"]
	cfg.SslPassword = folded["sslpassword"]
	cfg.RootCertificate = folded["rootcertificate"]
	cfg.CheckCertificateRevocation = parseBool(folded["checkcertificaterevocation"], false)

	var err error
	if cfg.Timeout, err = parseSeconds(folded["timeout"], 15); err != nil {
		return nil, err
	}
	if cfg.CommandTimeout, err = parseSeconds(folded["commandtimeout"], 30); err != nil {
		return nil, err
	}
	cfg.CancellationTimeout, err = parseCancellationTimeoutMillis(folded["cancellationtimeout"])
	if err != nil {
		return nil, err
	}
	if cfg.KeepAlive, err = parseSeconds(folded["keepalive"], 0); err != nil {
		return nil, err
	}
	cfg.TcpKeepAlive = parseBool(folded["tcpkeepalive"], false)
	if cfg.TcpKeepAliveTime, err = parseSeconds(folded["tcpkeepalivetime"], 0); err != nil {
		return nil, err
	}
	if cfg.TcpKeepAliveInterval, err = parseSeconds(folded["tcpkeepaliveinterval"], 0); err != nil {
		return nil, err
	}

	cfg.ReadBufferSize = parseIntDefault(folded["readbuffersize"], 8192)
	cfg.WriteBufferSize = parseIntDefault(folded["writebuffersize"], 8192)
	cfg.SocketReceiveBufferSize = parseIntDefault(folded["socketreceivebuffersize"], 0)
	cfg.SocketSendBufferSize = parseIntDefault(folded["socketsendbuffersize"], 0)

	cfg.Pooling = parseBool(folded["pooling"], true)
	cfg.MinPoolSize = parseIntDefault(folded["minpoolsize"], 0)
	cfg.MaxPoolSize = parseIntDefault(folded["maxpoolsize"], 100)
	if cfg.ConnectionIdleLifetime, err = parseSeconds(folded["connectionidlelifetime"], 300); err != nil {
		return nil, err
	}
	if cfg.ConnectionPruningInterval, err = parseSeconds(folded["connectionpruninginterval"], 10); err != nil {
		return nil, err
	}
	if cfg.ConnectionLifetime, err = parseSeconds(folded["connectionlifetime"], 0); err != nil {
		return nil, err
	}

	cfg.MaxAutoPrepare = parseIntDefault(folded["maxautoprepare"], 0)
	cfg.AutoPrepareMinUsages = parseIntDefault(folded["autoprepareminusages"], 5)

	cfg.NoResetOnClose = parseBool(folded["noresetonclose"], false)

	cfg.Multiplexing = parseBool(folded["multiplexing"], false)
	cfg.WriteCoalescingBufferThresholdBytes = parseIntDefault(folded["writecoalescingbufferthresholdbytes"], 1000)

	cfg.LoadBalanceHosts = parseBool(folded["loadbalancehosts"], false)
	cfg.HostRecheckSeconds = parseIntDefault(folded["hostrecheckseconds"], 10)

	cfg.TargetSessionAttributes = TargetSessionAttributes(orDefault(folded["targetsessionattributes"], string(TargetAny)))
	cfg.ServerCompatibilityMode = ServerCompatibilityMode(orDefault(folded["servercompatibilitymode"], string(CompatNone)))

	cfg.IncludeErrorDetail = parseBool(folded["includeerrordetail"], false)
	cfg.LogParameters = parseBool(folded["logparameters"], false)

	for k, v := range folded {
		if !reservedKeys[k] {
			cfg.RuntimeParams[k] = v
		}
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseSeconds(v string, defSeconds int) (time.Duration, error) {
	if v == "" {
		return time.Duration(defSeconds) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("connstring: invalid seconds value %q", v)
	}
	return time.Duration(n) * time.Second, nil
}

// parseCancellationTimeoutMillis preserves -1 and 0 sentinels verbatim per
// spec.md section 9's Open Question decision: -1 means "close the socket
// without awaiting the server's ack and mark the connector Broken
// immediately"; 0 means "wait indefinitely".
func parseCancellationTimeoutMillis(v string) (time.Duration, error) {
	if v == "" {
		return 2000 * time.Millisecond, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("connstring: invalid CancellationTimeout %q", v)
	}
	if n < 0 {
		return -1, nil
	}
	return time.Duration(n) * time.Millisecond, nil
}
