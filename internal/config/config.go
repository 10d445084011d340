// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Spaces struct {
	Endpoint    string
	Region      string
	Bucket      string
	Prefix      string
	AccessKey   string
	SecretKey   string
	SyncOnStart bool
}

// Enabled reports whether a bucket is configured.
func (s Spaces) Enabled() bool { return s.Bucket != "" }

// Config holds environment-based settings
type Config struct {
	ServerAddress string
	LogLevel      zerolog.Level
	LogFormat     string // auto, console or json

	SettingsBackend string
	SettingsPath    string
	DatabaseURL     string

	RedisAddress  string
	RedisUsername string
	RedisPassword string
	RedisHistory  bool

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	AudioDir     string
	TemplatesDir string

	Timezone       string // empty resolves from coordinates
	RoundingBias   time.Duration
	MisfireGrace   time.Duration
	RolloverMargin time.Duration

	AdminPasswordHash string
	JWTSecret         string

	Spaces Spaces
}

// AuthEnabled reports whether write endpoints require a token.
func (c Config) AuthEnabled() bool { return c.AdminPasswordHash != "" }

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading .env: %w", err)
	}
	return Parse(os.Getenv)
}

// Parse builds a Config from getenv, applying defaults and reporting every
// missing or invalid variable at once.
func Parse(getenv func(string) string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configDir := filepath.Join(home, ".config", "vakit")
	hostname, _ := os.Hostname()

	cfg := Config{
		ServerAddress:   ":8080",
		LogLevel:        zerolog.InfoLevel,
		LogFormat:       "auto",
		SettingsBackend: BackendFile,
		SettingsPath:    filepath.Join(configDir, "settings.json"),
		MQTTTopic:       "vakit",
		MQTTClientID:    "vakit-" + hostname,
		AudioDir:        "./assets/audio",
		TemplatesDir:    "./web/templates",
		RoundingBias:    30 * time.Second,
		MisfireGrace:    60 * time.Second,
		RolloverMargin:  60 * time.Second,
	}

	var missing, invalid []string
	get := func(name string) string { return strings.TrimSpace(getenv(name)) }

	str := func(name string, dst *string) {
		if v := get(name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				invalid = append(invalid, name)
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := get(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				invalid = append(invalid, name)
				return
			}
			*dst = d
		}
	}

	str("VAKIT_SERVER_ADDRESS", &cfg.ServerAddress)
	if v := get("VAKIT_LOG_LEVEL"); v != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil || level == zerolog.NoLevel {
			invalid = append(invalid, "VAKIT_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}
	if v := get("VAKIT_LOG_FORMAT"); v != "" {
		switch v {
		case "auto", "console", "json":
			cfg.LogFormat = v
		default:
			invalid = append(invalid, "VAKIT_LOG_FORMAT")
		}
	}

	if v := get("VAKIT_SETTINGS_BACKEND"); v != "" {
		switch v {
		case BackendFile, BackendSQLite, BackendPostgres, BackendRedis:
			cfg.SettingsBackend = v
		default:
			invalid = append(invalid, "VAKIT_SETTINGS_BACKEND")
		}
	}
	str("VAKIT_SETTINGS_PATH", &cfg.SettingsPath)
	str("VAKIT_DATABASE_URL", &cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		switch cfg.SettingsBackend {
		case BackendSQLite:
			cfg.DatabaseURL = filepath.Join(configDir, "vakit.db")
		case BackendPostgres:
			missing = append(missing, "VAKIT_DATABASE_URL")
		}
	}

	str("VAKIT_REDIS_ADDRESS", &cfg.RedisAddress)
	str("VAKIT_REDIS_USERNAME", &cfg.RedisUsername)
	str("VAKIT_REDIS_PASSWORD", &cfg.RedisPassword)
	boolean("VAKIT_REDIS_HISTORY", &cfg.RedisHistory)
	if cfg.RedisAddress == "" && (cfg.SettingsBackend == BackendRedis || cfg.RedisHistory) {
		missing = append(missing, "VAKIT_REDIS_ADDRESS")
	}

	str("VAKIT_MQTT_BROKER", &cfg.MQTTBroker)
	str("VAKIT_MQTT_TOPIC", &cfg.MQTTTopic)
	str("VAKIT_MQTT_CLIENT_ID", &cfg.MQTTClientID)

	str("VAKIT_AUDIO_DIR", &cfg.AudioDir)
	str("VAKIT_TEMPLATES_DIR", &cfg.TemplatesDir)

	str("VAKIT_TIMEZONE", &cfg.Timezone)
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			invalid = append(invalid, "VAKIT_TIMEZONE")
		}
	}
	if v := get("VAKIT_ROUNDING_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 || secs >= 60 {
			invalid = append(invalid, "VAKIT_ROUNDING_SECONDS")
		} else {
			cfg.RoundingBias = time.Duration(secs) * time.Second
		}
	}
	duration("VAKIT_MISFIRE_GRACE", &cfg.MisfireGrace)
	duration("VAKIT_ROLLOVER_MARGIN", &cfg.RolloverMargin)

	str("VAKIT_ADMIN_PASSWORD_HASH", &cfg.AdminPasswordHash)
	str("VAKIT_JWT_SECRET", &cfg.JWTSecret)
	if cfg.AuthEnabled() && cfg.JWTSecret == "" {
		missing = append(missing, "VAKIT_JWT_SECRET")
	}

	str("VAKIT_SPACES_ENDPOINT", &cfg.Spaces.Endpoint)
	str("VAKIT_SPACES_REGION", &cfg.Spaces.Region)
	str("VAKIT_SPACES_BUCKET", &cfg.Spaces.Bucket)
	str("VAKIT_SPACES_PREFIX", &cfg.Spaces.Prefix)
	str("VAKIT_SPACES_ACCESS_KEY", &cfg.Spaces.AccessKey)
	str("VAKIT_SPACES_SECRET_KEY", &cfg.Spaces.SecretKey)
	boolean("VAKIT_SPACES_SYNC_ON_START", &cfg.Spaces.SyncOnStart)
	if cfg.Spaces.Enabled() && cfg.Spaces.Region == "" {
		missing = append(missing, "VAKIT_SPACES_REGION")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}
