package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	SessionBackendFile   = "file"
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config is the client configuration. It is loaded once at startup and
// treated as immutable afterwards.
type Config struct {
	API       APIConfig      `yaml:"api"`
	Session   SessionConfig  `yaml:"session"`
	Documents DocumentConfig `yaml:"documents"`
	Google    GoogleConfig   `yaml:"google"`
	Redis     RedisConfig    `yaml:"redis"`
	LogLevel  string         `yaml:"log_level"`
	PageSize  int            `yaml:"page_size"`
}

// APIConfig describes the backend the client talks to.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	UserAgent         string        `yaml:"user_agent"`
}

// SessionConfig selects and configures the persistent session store.
type SessionConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	// EncryptionKey is a hex-encoded 32-byte key. Empty disables encryption.
	EncryptionKey string `yaml:"encryption_key"`
}

// DocumentConfig controls PDF download caching.
type DocumentConfig struct {
	CacheDir string `yaml:"cache_dir"`
	MaxBytes int64  `yaml:"max_bytes"`
	// AllowPrivateHosts disables the SSRF guard for non-backend hosts.
	AllowPrivateHosts bool `yaml:"allow_private_hosts"`
}

// GoogleConfig configures the federated identity provider.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	TokenURL     string `yaml:"token_url"`
	RevokeURL    string `yaml:"revoke_url"`
}

// RedisConfig configures the optional Redis session backend.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Namespace    string        `yaml:"namespace"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns the configuration used when nothing is overridden. The
// backend timeout is generous because the hosted backend cold-starts slowly.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8081/api/",
			Timeout:   30 * time.Second,
			Burst:     5,
			UserAgent: "ereader-cli/1.0",
		},
		Session: SessionConfig{
			Backend: SessionBackendFile,
			Path:    filepath.Join(userDir(os.UserConfigDir), "session.json"),
		},
		Documents: DocumentConfig{
			CacheDir: filepath.Join(userDir(os.UserCacheDir), "documents"),
			MaxBytes: 200 << 20,
		},
		Redis: RedisConfig{
			Namespace:    "ereader",
			PoolSize:     4,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		LogLevel: "info",
		PageSize: 20,
	}
}

func userDir(base func() (string, error)) string {
	dir, err := base()
	if err != nil || dir == "" {
		return ".ereader"
	}
	return filepath.Join(dir, "ereader")
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then EREADER_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("EREADER_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnvString("EREADER_API_BASE_URL", cfg.API.BaseURL)
	cfg.API.APIKey = getEnvString("EREADER_API_KEY", cfg.API.APIKey)
	cfg.API.Timeout = getEnvDuration("EREADER_API_TIMEOUT", cfg.API.Timeout)
	cfg.API.RequestsPerSecond = getEnvFloat("EREADER_API_RPS", cfg.API.RequestsPerSecond)
	cfg.API.UserAgent = getEnvString("EREADER_USER_AGENT", cfg.API.UserAgent)

	cfg.Session.Backend = getEnvString("EREADER_SESSION_BACKEND", cfg.Session.Backend)
	cfg.Session.Path = getEnvString("EREADER_SESSION_PATH", cfg.Session.Path)
	cfg.Session.EncryptionKey = getEnvString("EREADER_SESSION_KEY", cfg.Session.EncryptionKey)

	cfg.Documents.CacheDir = getEnvString("EREADER_CACHE_DIR", cfg.Documents.CacheDir)
	cfg.Documents.MaxBytes = getEnvInt64("EREADER_DOC_MAX_BYTES", cfg.Documents.MaxBytes)
	cfg.Documents.AllowPrivateHosts = getEnvBool("EREADER_DOC_ALLOW_PRIVATE", cfg.Documents.AllowPrivateHosts)

	cfg.Google.ClientID = getEnvString("EREADER_GOOGLE_CLIENT_ID", cfg.Google.ClientID)
	cfg.Google.ClientSecret = getEnvString("EREADER_GOOGLE_CLIENT_SECRET", cfg.Google.ClientSecret)
	cfg.Google.RedirectURL = getEnvString("EREADER_GOOGLE_REDIRECT_URL", cfg.Google.RedirectURL)

	cfg.Redis.URL = getEnvString("EREADER_REDIS_URL", cfg.Redis.URL)

	cfg.LogLevel = getEnvString("EREADER_LOG_LEVEL", cfg.LogLevel)
	cfg.PageSize = getEnvInt("EREADER_PAGE_SIZE", cfg.PageSize)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api base url %q must be an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}
	switch c.Session.Backend {
	case SessionBackendFile:
		if c.Session.Path == "" {
			return fmt.Errorf("session path is required for the file backend")
		}
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis url is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.EncryptionKey != "" {
		if _, err := c.SessionKey(); err != nil {
			return err
		}
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	return nil
}

// SessionKey decodes the session encryption key. It returns nil when
// encryption is disabled.
func (c Config) SessionKey() ([]byte, error) {
	if c.Session.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(strings.TrimSpace(c.Session.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("session encryption key must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("session encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
