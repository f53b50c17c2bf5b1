package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TABLEBOOK_TEST_TOKEN", "s3cret")
	path := writeFile(t, dir, "config.yaml", `
api:
  base_url: http://localhost:8000
  token: ${TABLEBOOK_TEST_TOKEN}
journal:
  path: `+filepath.Join(dir, "data", "journal.db")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.API.Token)
	assert.DirExists(t, filepath.Join(dir, "data"))

	assert.Equal(t, ":8080", cfg.ServerAddress())
	assert.Equal(t, 10*time.Second, cfg.APITimeout())
	assert.Zero(t, cfg.APICacheTTL())
	assert.Equal(t, "consensus", cfg.AvailabilitySource())
	assert.Equal(t, 30, cfg.SlotGranularity())
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL())
	assert.Equal(t, "backups", cfg.BackupPath())
	assert.Equal(t, 14*24*time.Hour, cfg.BackupRetention())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"bad source", func(c *Config) { c.Booking.AvailabilitySource = "oracle" }, "availability_source"},
		{"users without secret", func(c *Config) {
			c.Auth.JWTSecret = ""
		}, "jwt_secret"},
		{"duplicate user", func(c *Config) {
			c.Auth.Users = append(c.Auth.Users, c.Auth.Users[0])
		}, "duplicate username"},
		{"user without hash", func(c *Config) {
			c.Auth.Users[0].PasswordHash = ""
		}, "password_hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.API.BaseURL = "http://api"
			cfg.Auth.JWTSecret = "k"
			cfg.Auth.Users = []StaffUser{{Username: "host", PasswordHash: "$2a$10$x"}}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindUser(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.Users = []StaffUser{{Username: "host"}, {Username: "manager", Role: "manager"}}
	require.NotNil(t, cfg.FindUser("manager"))
	assert.Equal(t, "manager", cfg.FindUser("manager").Role)
	assert.Nil(t, cfg.FindUser("ghost"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := writeFile(t, dir, "test.env", "TABLEBOOK_DOTENV_PROBE=hello\n")
	t.Setenv("TABLEBOOK_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("TABLEBOOK_DOTENV_PROBE"))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "hello", os.Getenv("TABLEBOOK_DOTENV_PROBE"))
}
