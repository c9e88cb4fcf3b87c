package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `json:"host" env:"SERVER_HOST"`
	Port int    `json:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls persistence.
type DatabaseConfig struct {
	Driver           string `json:"driver" env:"DATABASE_DRIVER"`
	DSN              string `json:"dsn" env:"DATABASE_DSN"`
	Host             string `json:"host" env:"DATABASE_HOST"`
	Port             int    `json:"port" env:"DATABASE_PORT"`
	User             string `json:"user" env:"DATABASE_USER"`
	Password         string `json:"password" env:"DATABASE_PASSWORD"`
	Name             string `json:"name" env:"DATABASE_NAME"`
	SSLMode          string `json:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns     int    `json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns     int    `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime  int    `json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart   bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
	MigrateAttempts  int    `json:"migrate_attempts" yaml:"migrate_attempts" env:"DATABASE_MIGRATE_ATTEMPTS"`
	MigrateBackoffMS int    `json:"migrate_backoff_ms" yaml:"migrate_backoff_ms" env:"DATABASE_MIGRATE_BACKOFF_MS"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// DockerConfig points at the container runtime engine.
type DockerConfig struct {
	Host          string   `json:"host" env:"DOCKER_HOST"`
	HostAliases   []string `json:"host_aliases" yaml:"host_aliases"`
	APIVersion    string   `json:"api_version" yaml:"api_version" env:"DOCKER_API_VERSION"`
	BaseImageRepo string   `json:"base_image_repo" yaml:"base_image_repo" env:"SANDBOX_BASE_IMAGE"`
}

// SandboxConfig controls the hardening profile applied to every sandbox.
type SandboxConfig struct {
	MemoryLimitMB  int64  `json:"memory_limit_mb" yaml:"memory_limit_mb" env:"SANDBOX_MEMORY_LIMIT_MB"`
	NanoCPUs       int64  `json:"nano_cpus" yaml:"nano_cpus" env:"SANDBOX_NANO_CPUS"`
	PIDsLimit      int64  `json:"pids_limit" yaml:"pids_limit" env:"SANDBOX_PIDS_LIMIT"`
	TmpfsSizeMB    int64  `json:"tmpfs_size_mb" yaml:"tmpfs_size_mb" env:"SANDBOX_TMPFS_SIZE_MB"`
	SeccompProfile string `json:"seccomp_profile" yaml:"seccomp_profile" env:"SANDBOX_SECCOMP_PROFILE"`
	PortRangeStart int    `json:"port_range_start" yaml:"port_range_start" env:"SANDBOX_PORT_RANGE_START"`
	PortRangeEnd   int    `json:"port_range_end" yaml:"port_range_end" env:"SANDBOX_PORT_RANGE_END"`
}

// SecretsConfig controls the SecretsVault's key material.
type SecretsConfig struct {
	KeyFile string `json:"key_file" yaml:"key_file" env:"SECRETS_KEY_FILE"`
}

// ProxyConfig controls the reverse proxy and CORS policy.
type ProxyConfig struct {
	BackendURL      string   `json:"backend_url" yaml:"backend_url" env:"BACKEND_URL"`
	PublicAPIURL    string   `json:"public_api_url" yaml:"public_api_url" env:"VITE_API_URL"`
	AllowedOrigins  []string `json:"allowed_origins" yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	DialTimeoutMS   int      `json:"dial_timeout_ms" yaml:"dial_timeout_ms" env:"PROXY_DIAL_TIMEOUT_MS"`
	HandshakeTimeMS int      `json:"ws_handshake_timeout_ms" yaml:"ws_handshake_timeout_ms" env:"PROXY_WS_HANDSHAKE_TIMEOUT_MS"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
	Docker   DockerConfig   `json:"docker"`
	Sandbox  SandboxConfig  `json:"sandbox"`
	Secrets  SecretsConfig  `json:"secrets"`
	Proxy    ProxyConfig    `json:"proxy"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:           "postgres",
			MaxOpenConns:     10,
			MaxIdleConns:     5,
			ConnMaxLifetime:  300,
			MigrateOnStart:   true,
			MigrateAttempts:  5,
			MigrateBackoffMS: 500,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "execforge",
		},
		Docker: DockerConfig{
			HostAliases:   []string{"host.docker.internal", "172.17.0.1", "localhost"},
			APIVersion:    "1.44",
			BaseImageRepo: "execforge-sandbox-base",
		},
		Sandbox: SandboxConfig{
			MemoryLimitMB:  512,
			NanoCPUs:       500_000_000,
			PIDsLimit:      50,
			TmpfsSizeMB:    64,
			PortRangeStart: 9000,
			PortRangeEnd:   9999,
		},
		Secrets: SecretsConfig{
			KeyFile: ".env_key",
		},
		Proxy: ProxyConfig{
			DialTimeoutMS:   10_000,
			HandshakeTimeMS: 10_000,
		},
	}
}

// ConnectionString builds a PostgreSQL connection string using host parameters.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	cfg.normalize()

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

// applyDatabaseURLOverride aligns config loading with cmd/engined: DATABASE_URL
// overrides any file-based DSN to reduce setup friction.
func applyDatabaseURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	if c.Sandbox.PortRangeStart == 0 {
		c.Sandbox.PortRangeStart = 9000
	}
	if c.Sandbox.PortRangeEnd == 0 {
		c.Sandbox.PortRangeEnd = 9999
	}
	if len(c.Docker.HostAliases) == 0 {
		c.Docker.HostAliases = []string{"host.docker.internal", "172.17.0.1", "localhost"}
	}
}
