package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EREADER_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081/api/", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, SessionBackendFile, cfg.Session.Backend)
	assert.True(t, strings.HasSuffix(cfg.Session.Path, "session.json"))
	assert.Equal(t, 20, cfg.PageSize)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ereader.yaml")
	content := `
api:
  base_url: https://books.example.com/api/
  api_key: anon-key
  timeout: 45s
session:
  backend: memory
page_size: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("EREADER_PAGE_SIZE", "50")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://books.example.com/api/", cfg.API.BaseURL)
	assert.Equal(t, "anon-key", cfg.API.APIKey)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, 50, cfg.PageSize, "env overrides file")
}

func TestLoadInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("EREADER_CONFIG", "")
	t.Setenv("EREADER_API_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.API.BaseURL = "/api" },
			wantErr: "absolute URL",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Session.Backend = SessionBackendRedis },
			wantErr: "redis url is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Session.Backend = "keychain" },
			wantErr: "unknown session backend",
		},
		{
			name:    "short key",
			mutate:  func(c *Config) { c.Session.EncryptionKey = "abcd" },
			wantErr: "32 bytes",
		},
		{
			name: "valid key",
			mutate: func(c *Config) {
				c.Session.EncryptionKey = strings.Repeat("ab", 32)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
