package config

import "testing"

func TestNewAppliesDefaults(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Sandbox.PortRangeStart != 9000 || cfg.Sandbox.PortRangeEnd != 9999 {
		t.Fatalf("expected default sandbox port range 9000-9999, got %d-%d",
			cfg.Sandbox.PortRangeStart, cfg.Sandbox.PortRangeEnd)
	}
	if cfg.Secrets.KeyFile != ".env_key" {
		t.Fatalf("expected default secrets key file .env_key, got %q", cfg.Secrets.KeyFile)
	}
	if cfg.Database.MigrateAttempts != 5 {
		t.Fatalf("expected default migrate attempts 5, got %d", cfg.Database.MigrateAttempts)
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", Password: "secret",
		Name: "execforge", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=postgres password=secret dbname=execforge sslmode=disable"
	if got := db.ConnectionString(); got != want {
		t.Fatalf("unexpected connection string: %s", got)
	}
}

func TestNormalizeFillsSandboxRangeWhenZero(t *testing.T) {
	cfg := &Config{}
	cfg.normalize()
	if cfg.Sandbox.PortRangeStart != 9000 || cfg.Sandbox.PortRangeEnd != 9999 {
		t.Fatalf("expected normalize to fill default port range, got %d-%d",
			cfg.Sandbox.PortRangeStart, cfg.Sandbox.PortRangeEnd)
	}
	if len(cfg.Docker.HostAliases) == 0 {
		t.Fatalf("expected normalize to fill default docker host aliases")
	}
}
