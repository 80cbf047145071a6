// Package connstring parses the connection string this module accepts:
// a case-insensitive, synonym-tolerant key/value mapping (DSN or URL form)
// with the canonical keys and defaults from spec.md section 6.
//
// Per spec.md Design Notes section 9 ("dynamic parameter dictionary of the
// connection string"), this is not a reflective setter path: parsing is a
// two-stage process. Stage one folds every recognized synonym to its
// canonical key in a plain map[string]string (addEnvSettings,
// addDSNSettings, addURLSettings all write into that map). Stage two,
// populate, is an explicit switch over canonical keys that produces a
// typed, validated Config. A new key means a new case, not a new
// reflection tag.
package connstring

import (
	"strings"
	"time"
)

// SslMode is the TLS negotiation policy (spec.md section 6).
type SslMode string

const (
	SslDisable    SslMode = "disable"
	SslAllow      SslMode = "allow"
	SslPrefer     SslMode = "prefer"
	SslRequire    SslMode = "require"
	SslVerifyCA   SslMode = "verify-ca"
	SslVerifyFull SslMode = "verify-full"
)

// TargetSessionAttributes selects among multiple hosts by role (spec.md
// section 6).
type TargetSessionAttributes string

const (
	TargetAny           TargetSessionAttributes = "any"
	TargetPrimary       TargetSessionAttributes = "primary"
	TargetStandby       TargetSessionAttributes = "standby"
	TargetPreferPrimary TargetSessionAttributes = "prefer-primary"
	TargetPreferStandby TargetSessionAttributes = "prefer-standby"
	TargetReadWrite     TargetSessionAttributes = "read-write"
	TargetReadOnly      TargetSessionAttributes = "read-only"
)

// ServerCompatibilityMode loosens protocol assumptions for non-vanilla
// backends (spec.md section 6).
type ServerCompatibilityMode string

const (
	CompatNone          ServerCompatibilityMode = "none"
	CompatRedshift      ServerCompatibilityMode = "redshift"
	CompatNoTypeLoading ServerCompatibilityMode = "no-type-loading"
)

// HostPort is one entry of a comma-separated Host/Port list.
type HostPort struct {
	Host string
	Port uint16
}

// Config is the fully typed, validated result of parsing a connection
// string. Every field here corresponds to a row of spec.md section 6's
// key table.
type Config struct {
	Hosts    []HostPort
	Database string
	Username string
	Password string
	Passfile string

	SslMode                    SslMode
	TrustServerCertificate     bool
	SslCertificate             string
	SslKey                     string
	SslPassword                string
	RootCertificate            string
	CheckCertificateRevocation bool

	Timeout              time.Duration
	CommandTimeout       time.Duration
	CancellationTimeout  time.Duration // -1 means "do not wait"
	KeepAlive            time.Duration
	TcpKeepAlive         bool
	TcpKeepAliveTime     time.Duration
	TcpKeepAliveInterval time.Duration

	ReadBufferSize  int
	WriteBufferSize int

	SocketReceiveBufferSize int // 0 means OS default
	SocketSendBufferSize    int

	Pooling                   bool
	MinPoolSize               int
	MaxPoolSize               int
	ConnectionIdleLifetime    time.Duration
	ConnectionPruningInterval time.Duration
	ConnectionLifetime        time.Duration // 0 means infinite

	MaxAutoPrepare       int
	AutoPrepareMinUsages int

	NoResetOnClose bool

	Multiplexing                        bool
	WriteCoalescingBufferThresholdBytes int

	LoadBalanceHosts   bool
	HostRecheckSeconds int

	TargetSessionAttributes TargetSessionAttributes
	ServerCompatibilityMode ServerCompatibilityMode

	IncludeErrorDetail bool
	LogParameters      bool

	// RuntimeParams carries every key this parser did not recognize as one
	// of the above through to the startup message unchanged
	// (application_name, client_encoding, search_path, TimeZone, options,
	// and any openGauss- or deployment-specific GUC).
	RuntimeParams map[string]string
}

// canonicalKeys maps every accepted synonym, lower-cased, to its canonical
// key. This is the "case-folded canonicalizer" spec.md Design Notes section
// 9 calls for.
var canonicalKeys = map[string]string{
	"host": "host", "server": "host",
	"port":     "port",
	"database": "database", "db": "database",
	"username": "username", "user": "username", "userid": "username", "uid": "username",
	"password": "password", "pwd": "password",
	"passfile": "passfile",
	"sslmode":  "sslmode",
	"trustservercertificate":    "trustservercertificate",
	"sslcertificate":            "sslcertificate",
	"sslcert":                   "sslcertificate",
	"sslkey":                    "sslkey",
	"sslpassword":               "sslpassword",
	"rootcertificate":           "rootcertificate",
	"sslrootcert":               "rootcertificate",
	"checkcertificaterevocation": "checkcertificaterevocation",
	"timeout":               "timeout",
	"connecttimeout":        "timeout",
	"commandtimeout":        "commandtimeout",
	"cancellationtimeout":   "cancellationtimeout",
	"keepalive":             "keepalive",
	"tcpkeepalive":          "tcpkeepalive",
	"tcpkeepalivetime":      "tcpkeepalivetime",
	"tcpkeepaliveinterval":  "tcpkeepaliveinterval",
	"readbuffersize":        "readbuffersize",
	"writebuffersize":       "writebuffersize",
	"socketreceivebuffersize": "socketreceivebuffersize",
	"socketsendbuffersize":    "socketsendbuffersize",
	"pooling":                    "pooling",
	"minpoolsize":                "minpoolsize",
	"maxpoolsize":                "maxpoolsize",
	"connectionidlelifetime":     "connectionidlelifetime",
	"connectionpruninginterval":  "connectionpruninginterval",
	"connectionlifetime":         "connectionlifetime",
	"loadbalancetimeout":         "connectionlifetime",
	"maxautoprepare":             "maxautoprepare",
	"autoprepareminusages":       "autoprepareminusages",
	"noresetonclose":             "noresetonclose",
	"multiplexing":               "multiplexing",
	"writecoalescingbufferthresholdbytes": "writecoalescingbufferthresholdbytes",
	"loadbalancehosts":            "loadbalancehosts",
	"hostrecheckseconds":          "hostrecheckseconds",
	"targetsessionattributes":     "targetsessionattributes",
	"servercompatibilitymode":     "servercompatibilitymode",
	"includeerrordetail":          "includeerrordetail",
	"logparameters":               "logparameters",
}

func canonicalize(key string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	canon, ok := canonicalKeys[k]
	if !ok || canon == "" {
		return "", false
	}
	return canon, true
}
