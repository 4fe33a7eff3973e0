package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, filepath.Join("data", "plaza_store.json"), cfg.StorePath())
	assert.Equal(t, "admin", cfg.Admin.User)
	assert.Equal(t, "plaza2025", cfg.Admin.Password)
	assert.Equal(t, time.Second, cfg.Delays.Login)
	assert.Equal(t, 800*time.Millisecond, cfg.Delays.Save)
	assert.Equal(t, "en-IE", cfg.Site.Locale)
	assert.Equal(t, 3, cfg.Site.PreviewLimit)
	assert.Equal(t, "0877538317", cfg.Site.BookingPhone)
	assert.True(t, cfg.MetricsEnabled)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PLAZA_ADDR", ":9090")
	t.Setenv("PLAZA_STORE_BACKEND", "Redis")
	t.Setenv("PLAZA_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("PLAZA_DELAYS_SAVE", "0s")
	t.Setenv("PLAZA_SITE_LOCALE", "en-US")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, time.Duration(0), cfg.Delays.Save)
	assert.Equal(t, "en-US", cfg.Site.Locale)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := "addr: \":7000\"\nstore:\n  backend: memory\nsite:\n  preview_limit: 5\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plaza.yaml"), []byte(yaml), 0644))
	t.Setenv("PLAZA_ADDR", ":7001")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Addr, "environment wins over the file")
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Site.PreviewLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NotEmpty(t, cfg.ConfigFile)
}

func TestLoadExplicitConfigFileMissing(t *testing.T) {
	v := New()
	v.Set(KeyConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("PLAZA_ADMIN_USER=warden\n"), 0644))
	t.Setenv("PLAZA_ADMIN_USER", "")
	os.Unsetenv("PLAZA_ADMIN_USER")

	LoadEnvFiles()
	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "warden", cfg.Admin.User)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"file without dir", func(c *Config) { c.Store.Dir = "" }},
		{"redis without url", func(c *Config) { c.Store.Backend = BackendRedis; c.Redis.URL = "" }},
		{"negative delay", func(c *Config) { c.Delays.Save = -time.Second }},
		{"no credentials", func(c *Config) { c.Admin.Password = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cfg, err := Load(New())
			require.NoError(t, err)
			tt.edit(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
