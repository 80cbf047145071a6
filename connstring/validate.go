package connstring

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validatorStruct is a shadow of Config's scalar fields, tagged for
// github.com/go-playground/validator/v10. It exists separately from Config
// because the cross-field rules below (SslMode vs TrustServerCertificate,
// Multiplexing vs Pooling) are easier to read as plain Go than as struct
// tags, so the tagged struct only carries what validator expresses well:
// required-ness and simple ranges.
type validatorStruct struct {
	Hosts       int    `validate:"required"`
	MinPoolSize int    `validate:"gte=0"`
	MaxPoolSize int    `validate:"gt=0"`
	SslMode     string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

var configValidator = validator.New()

// Validate runs field-level validation with validator/v10 and then the
// cross-field rules spec.md section 6 specifies explicitly.
func Validate(cfg *Config) error {
	shadow := validatorStruct{
		Hosts:       len(cfg.Hosts),
		MinPoolSize: cfg.MinPoolSize,
		MaxPoolSize: cfg.MaxPoolSize,
		SslMode:     string(cfg.SslMode),
	}
	if err := configValidator.Struct(shadow); err != nil {
		return fmt.Errorf("connstring: %w", err)
	}

	if cfg.MinPoolSize > cfg.MaxPoolSize {
		return fmt.Errorf("connstring: MinPoolSize (%d) exceeds MaxPoolSize (%d)", cfg.MinPoolSize, cfg.MaxPoolSize)
	}

	if cfg.Multiplexing && !cfg.Pooling {
		return fmt.Errorf("connstring: Multiplexing requires Pooling=true")
	}

	if cfg.SslMode == SslRequire && !cfg.TrustServerCertificate && cfg.RootCertificate == "" {
		return fmt.Errorf("connstring: SslMode=Require needs TrustServerCertificate=true or a RootCertificate (use VerifyCA/VerifyFull otherwise)")
	}

	if cfg.TrustServerCertificate {
		switch cfg.SslMode {
		case SslAllow, SslVerifyCA, SslVerifyFull:
			return fmt.Errorf("connstring: TrustServerCertificate=true is incompatible with SslMode=%s", cfg.SslMode)
		}
	}

	for _, hp := range cfg.Hosts {
		if hp.Host == "" {
			return fmt.Errorf("connstring: empty host in Host list")
		}
	}

	return nil
}

// IsUnixSocket reports whether hp should be dialed as a unix domain socket
// per spec.md section 6: path-rooted, or "@" for the abstract namespace.
func IsUnixSocket(hp HostPort) bool {
	return strings.HasPrefix(hp.Host, "/") || strings.HasPrefix(hp.Host, "@")
}

// UnixSocketPath returns the filesystem (or abstract-namespace) path libpq
// would dial for hp: "<host>/.s.PGSQL.<port>", with a leading '@' replaced
// by NUL per spec.md section 6.
func UnixSocketPath(hp HostPort) string {
	host := hp.Host
	if strings.HasPrefix(host, "@") {
		host = "\x00" + host[1:]
	}
	return fmt.Sprintf("%s/.s.PGSQL.%d", host, hp.Port)
}
