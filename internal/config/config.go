// Package config loads the server settings from flags, PLAZA_* environment
// variables, .env files and an optional plaza.yaml, in that order of
// precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/klabast/wb-services/plaza/internal/admin"
	"github.com/klabast/wb-services/plaza/internal/errors"
	"github.com/klabast/wb-services/plaza/internal/kv"
	"github.com/klabast/wb-services/plaza/internal/logging"
	"github.com/klabast/wb-services/plaza/internal/render"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "PLAZA"

// Store backends
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Keys
const (
	KeyAddr             = "addr"
	KeyStoreBackend     = "store.backend"
	KeyStoreDir         = "store.dir"
	KeyStoreQuota       = "store.quota"
	KeyRedisURL         = "redis.url"
	KeyRedisPrefix      = "redis.prefix"
	KeyRedisSessionTTL  = "redis.session_ttl"
	KeyAdminUser        = "admin.user"
	KeyAdminPassword    = "admin.password"
	KeyAdminAuthFile    = "admin.auth_file"
	KeyDelayLogin       = "delays.login"
	KeyDelaySave        = "delays.save"
	KeySiteLocale       = "site.locale"
	KeySiteBookingPhone = "site.booking_phone"
	KeySitePreviewLimit = "site.preview_limit"
	KeyMetricsEnabled   = "metrics.enabled"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyLogOutput        = "log.output"
	KeyConfigFile       = "config"
)

// Config holds the resolved settings
type Config struct {
	Addr string

	Store struct {
		Backend string
		Dir     string
		Quota   int
	}

	Redis struct {
		URL        string
		Prefix     string
		SessionTTL time.Duration
	}

	Admin struct {
		User     string
		Password string
		AuthFile string
	}

	Delays struct {
		Login time.Duration
		Save  time.Duration
	}

	Site struct {
		Locale       string
		BookingPhone string
		PreviewLimit int
	}

	MetricsEnabled bool
	Log            logging.Config
	ConfigFile     string
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyStoreBackend, BackendFile)
	v.SetDefault(KeyStoreDir, "data")
	v.SetDefault(KeyStoreQuota, kv.DefaultQuota)
	v.SetDefault(KeyRedisURL, "redis://localhost:6379/0")
	v.SetDefault(KeyRedisPrefix, kv.DefaultRedisPrefix)
	v.SetDefault(KeyRedisSessionTTL, 12*time.Hour)
	v.SetDefault(KeyAdminUser, admin.DefaultUser)
	v.SetDefault(KeyAdminPassword, admin.DefaultPassword)
	v.SetDefault(KeyAdminAuthFile, "")
	v.SetDefault(KeyDelayLogin, admin.DefaultLoginDelay)
	v.SetDefault(KeyDelaySave, admin.DefaultSaveDelay)
	v.SetDefault(KeySiteLocale, "en-IE")
	v.SetDefault(KeySiteBookingPhone, render.DefaultBookingPhone)
	v.SetDefault(KeySitePreviewLimit, render.DefaultPreviewLimit)
	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeyLogOutput, "stderr")
	return v
}

// LoadEnvFiles loads .env and then .env.local from the working directory.
// Variables already set in the environment win.
func LoadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// Load reads the optional config file and resolves every setting
func Load(v *viper.Viper) (*Config, error) {
	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("plaza")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/plaza")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Addr:           v.GetString(KeyAddr),
		MetricsEnabled: v.GetBool(KeyMetricsEnabled),
		ConfigFile:     v.ConfigFileUsed(),
	}
	cfg.Store.Backend = strings.ToLower(v.GetString(KeyStoreBackend))
	cfg.Store.Dir = v.GetString(KeyStoreDir)
	cfg.Store.Quota = v.GetInt(KeyStoreQuota)
	cfg.Redis.URL = v.GetString(KeyRedisURL)
	cfg.Redis.Prefix = v.GetString(KeyRedisPrefix)
	cfg.Redis.SessionTTL = v.GetDuration(KeyRedisSessionTTL)
	cfg.Admin.User = v.GetString(KeyAdminUser)
	cfg.Admin.Password = v.GetString(KeyAdminPassword)
	cfg.Admin.AuthFile = v.GetString(KeyAdminAuthFile)
	cfg.Delays.Login = v.GetDuration(KeyDelayLogin)
	cfg.Delays.Save = v.GetDuration(KeyDelaySave)
	cfg.Site.Locale = v.GetString(KeySiteLocale)
	cfg.Site.BookingPhone = v.GetString(KeySiteBookingPhone)
	cfg.Site.PreviewLimit = v.GetInt(KeySitePreviewLimit)
	cfg.Log = logging.Config{
		Level:   v.GetString(KeyLogLevel),
		Format:  v.GetString(KeyLogFormat),
		Output:  v.GetString(KeyLogOutput),
		NoColor: logging.DefaultConfig().NoColor,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings for consistency
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q (want file, redis or memory)", c.Store.Backend)
	}
	if c.Store.Backend == BackendFile && c.Store.Dir == "" {
		return errors.New("store.dir must be set for the file backend")
	}
	if c.Store.Backend == BackendRedis && c.Redis.URL == "" {
		return errors.New("redis.url must be set for the redis backend")
	}
	if c.Delays.Login < 0 || c.Delays.Save < 0 {
		return errors.New("delays must not be negative")
	}
	if c.Admin.AuthFile == "" && (c.Admin.User == "" || c.Admin.Password == "") {
		return errors.New("admin.user and admin.password must be set when no auth file is used")
	}
	return nil
}

// StorePath is the location of the file backend's data file
func (c *Config) StorePath() string {
	return filepath.Join(c.Store.Dir, kv.DefaultFileName)
}
