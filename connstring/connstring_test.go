package connstring

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDSNBasics(t *testing.T) {
	cfg, err := Parse("host=db.example.com port=6432 dbname=app user=svc password=s3cret sslmode=disable")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0].Host != "db.example.com" || cfg.Hosts[0].Port != 6432 {
		t.Fatalf("unexpected hosts: %+v", cfg.Hosts)
	}
	if cfg.Database != "app" || cfg.Username != "svc" || cfg.Password != "s3cret" {
		t.Fatalf("unexpected identity fields: %+v", cfg)
	}
	if cfg.SslMode != SslDisable {
		t.Fatalf("expected SslMode disable, got %s", cfg.SslMode)
	}
	if cfg.MaxPoolSize != 100 || cfg.MinPoolSize != 0 {
		t.Fatalf("unexpected pool defaults: min=%d max=%d", cfg.MinPoolSize, cfg.MaxPoolSize)
	}
}

func TestParseURLMultiHost(t *testing.T) {
	cfg, err := Parse("postgres://u:p@a.example.com:5432,b.example.com:5433/db?sslmode=disable")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(cfg.Hosts))
	}
	if cfg.Hosts[0].Port != 5432 || cfg.Hosts[1].Port != 5433 {
		t.Fatalf("unexpected ports: %+v", cfg.Hosts)
	}
}

func TestValidateRejectsMultiplexingWithoutPooling(t *testing.T) {
	cfg, err := Parse("host=localhost dbname=d user=u sslmode=disable multiplexing=true pooling=false")
	if err == nil {
		t.Fatalf("expected validation error, got config %+v", cfg)
	}
}

func TestValidateRejectsRequireWithoutTrustOrCA(t *testing.T) {
	_, err := Parse("host=localhost dbname=d user=u sslmode=require")
	if err == nil {
		t.Fatalf("expected validation error for sslmode=require with no trust/CA")
	}
}

func TestDefaultsFileIsOverriddenByConnString(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	if err := os.WriteFile(path, []byte("host: base.example.com\nport: \"5432\"\nsslmode: disable\n"), 0o600); err != nil {
		t.Fatalf("write defaults file: %v", err)
	}
	t.Setenv("GAUSSCONN_DEFAULTS_FILE", path)

	cfg, err := Parse("dbname=app user=svc sslmode=disable")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0].Host != "base.example.com" {
		t.Fatalf("expected host from defaults file, got %+v", cfg.Hosts)
	}

	cfg, err = Parse("host=override.example.com dbname=app user=svc sslmode=disable")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Hosts[0].Host != "override.example.com" {
		t.Fatalf("expected connString host to win over defaults file, got %+v", cfg.Hosts)
	}
}

func TestUnixSocketPath(t *testing.T) {
	hp := HostPort{Host: "/var/run/postgresql", Port: 5432}
	if !IsUnixSocket(hp) {
		t.Fatalf("expected unix socket detection")
	}
	if got := UnixSocketPath(hp); got != "/var/run/postgresql/.s.PGSQL.5432" {
		t.Fatalf("unexpected path: %s", got)
	}
}
