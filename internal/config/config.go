package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"statusboard/internal/producers"
	radiator "statusboard/internal/radiator/domain"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// ConfigEnv names the variable holding the YAML config path.
const ConfigEnv = "STATUSBOARD_CONFIG"

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Store     StoreConfig             `yaml:"store"`
	Auth      AuthConfig              `yaml:"auth"`
	Slack     SlackConfig             `yaml:"slack"`
	Log       LogConfig               `yaml:"log"`
	Producers ProducersConfig         `yaml:"producers"`
	Radiator  *radiator.Configuration `yaml:"radiator"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	KeepAlive       time.Duration `yaml:"keep_alive"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver        string `yaml:"driver"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	BoltPath      string `yaml:"bolt_path"`
}

type AuthConfig struct {
	// SigningSecret switches registration keys to signed JWTs when set.
	SigningSecret string `yaml:"signing_secret"`
	Issuer        string `yaml:"issuer"`
}

type SlackConfig struct {
	Token     string  `yaml:"token"`
	Channel   string  `yaml:"channel"`
	URL       string  `yaml:"url"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type ProducersConfig struct {
	HTTP       producers.HTTPClientConfig `yaml:"http"`
	Timeout    time.Duration              `yaml:"timeout"`
	Jenkins    producers.JenkinsConfig    `yaml:"jenkins"`
	Health     producers.HealthConfig     `yaml:"health"`
	NWS        producers.NWSConfig        `yaml:"nws"`
	Upwise     producers.UpwiseConfig     `yaml:"upwise"`
	AppCenter  producers.AppCenterConfig  `yaml:"appcenter"`
	RetroQuest producers.RetroQuestConfig `yaml:"retroquest"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			KeepAlive:       30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:    DriverMemory,
			RedisAddr: "localhost:6379",
			BoltPath:  "statusboard.db",
		},
		Slack: SlackConfig{RateLimit: 1, Burst: 3},
		Log:   LogConfig{Level: "info", Format: "text"},
		Producers: ProducersConfig{
			Timeout:    2 * time.Minute,
			Jenkins:    producers.JenkinsConfig{Interval: 30 * time.Second},
			Health:     producers.HealthConfig{Interval: 30 * time.Second},
			NWS:        producers.NWSConfig{Interval: 600 * time.Second},
			Upwise:     producers.UpwiseConfig{Interval: 30 * time.Second},
			AppCenter:  producers.AppCenterConfig{Interval: 30 * time.Second},
			RetroQuest: producers.RetroQuestConfig{Interval: 60 * time.Second},
		},
	}
}

// Load reads .env (when present), then the YAML file at path (or $STATUSBOARD_CONFIG),
// then applies environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getenvDefault("HTTP_ADDR", cfg.Server.Addr)
	cfg.Store.Driver = strings.ToLower(getenvDefault("STORE_DRIVER", cfg.Store.Driver))
	cfg.Store.RedisAddr = getenvDefault("REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = getenvDefault("REDIS_PASSWORD", cfg.Store.RedisPassword)
	cfg.Store.RedisDB = getenvIntDefault("REDIS_DB", cfg.Store.RedisDB)
	cfg.Store.PostgresDSN = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.Store.PostgresDSN))
	cfg.Store.BoltPath = getenvDefault("BOLT_PATH", cfg.Store.BoltPath)
	cfg.Auth.SigningSecret = getenvDefault("AUTH_SIGNING_SECRET", cfg.Auth.SigningSecret)
	cfg.Slack.Token = getenvDefault("SLACK_TOKEN", cfg.Slack.Token)
	cfg.Slack.Channel = getenvDefault("SLACK_CHANNEL", cfg.Slack.Channel)
	cfg.Slack.URL = getenvDefault("SLACK_URL", cfg.Slack.URL)
	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getenvDefault("LOG_FILE", cfg.Log.File)
	cfg.Producers.HTTP.Proxy = getenvDefault("HTTP_PROXY_URL", cfg.Producers.HTTP.Proxy)
	cfg.Producers.Jenkins.Username = getenvDefault("JENKINS_USERNAME", cfg.Producers.Jenkins.Username)
	cfg.Producers.Jenkins.Token = getenvDefault("JENKINS_TOKEN", cfg.Producers.Jenkins.Token)
	cfg.Producers.AppCenter.Token = getenvDefault("APPCENTER_TOKEN", cfg.Producers.AppCenter.Token)
	cfg.Producers.Upwise.Enabled = getenvBoolDefault("UPWISE_ENABLED", cfg.Producers.Upwise.Enabled)
}

// Validate checks the settings the process cannot start without.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("config: store.redis_addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("config: store.postgres_dsn (or DATABASE_URL) is required for the postgres driver")
		}
	case DriverBolt:
		if c.Store.BoltPath == "" {
			return errors.New("config: store.bolt_path is required for the bolt driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Slack.Token != "" && c.Slack.Channel == "" {
		return errors.New("config: slack.channel is required when slack.token is set")
	}
	if c.Radiator != nil {
		if err := c.Radiator.Normalize().Validate(); err != nil {
			return fmt.Errorf("config: radiator: %w", err)
		}
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
