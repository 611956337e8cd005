package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const baseYAML = `
server:
  port: "8080"
  shutdown_timeout: 5s
storage:
  driver: postgres
db:
  host: localhost
  port: 5432
  user: ops
  password: ${DB_PASSWORD}
  name: ventureops
jwt:
  secret: ${JWT_SECRET}
outbox:
  enabled: true
  breaker:
    failure_threshold: 3
    timeout: 20s
`

func TestLoadConfigMergesLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", baseYAML)
	writeFile(t, dir, "local.yaml", "storage:\n  driver: sqlite\n  sqlite_path: /tmp/ops.db\n")
	writeFile(t, dir, "secrets.env", "DB_PASSWORD=s3cret\nJWT_SECRET=0123456789abcdef-local\n")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig("local", dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("server.port = %q, want env override 9090", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "/tmp/ops.db" {
		t.Fatalf("storage = %+v, want local overlay", cfg.Storage)
	}
	if cfg.DB.Password != "s3cret" {
		t.Fatalf("db.password = %q, want secret substitution", cfg.DB.Password)
	}
	if cfg.DB.Host != "localhost" {
		t.Fatalf("db.host = %q, want base value", cfg.DB.Host)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Fatalf("shutdown_timeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Outbox.Breaker.FailureThreshold != 3 || cfg.Outbox.Breaker.Timeout != 20*time.Second {
		t.Fatalf("breaker = %+v", cfg.Outbox.Breaker)
	}
	if cfg.JWT.TTL != 24*time.Hour {
		t.Fatalf("jwt.ttl = %v, want default 24h", cfg.JWT.TTL)
	}
}

func TestLoadConfigMissingEnvFileUsesBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", baseYAML)
	t.Setenv("JWT_SECRET", "0123456789abcdef-env")

	cfg, err := LoadConfig("staging", dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Fatalf("storage.driver = %q, want postgres", cfg.Storage.Driver)
	}
	if cfg.JWT.Secret != "0123456789abcdef-env" {
		t.Fatalf("jwt.secret = %q, want env value", cfg.JWT.Secret)
	}
}

func TestLoadConfigRejectsInvalidDriver(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", baseYAML)
	t.Setenv("JWT_SECRET", "0123456789abcdef-env")
	t.Setenv("STORAGE_DRIVER", "mysql")

	if _, err := LoadConfig("local", dir); err == nil {
		t.Fatal("expected validation error for unknown driver")
	}
}

func TestMergeMapsRecurses(t *testing.T) {
	t.Parallel()

	got := mergeMaps(
		map[string]any{"db": map[string]any{"host": "a", "port": 1}},
		map[string]any{"db": map[string]any{"host": "b"}},
	)
	db := got["db"].(map[string]any)
	if db["host"] != "b" || db["port"] != 1 {
		t.Fatalf("merged = %v", got)
	}
}
