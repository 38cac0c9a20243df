package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
	"github.com/Cheertaboi/scratch-coupon-service/pkg/db"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Shopify  ShopifyConfig
	App      AppConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr string
}

type DatabaseConfig struct {
	Driver   string
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type ShopifyConfig struct {
	StoreDomain   string
	AccessToken   string
	APIVersion    string
	WebhookSecret string
	Timeout       time.Duration
	SyncInterval  time.Duration
}

type AppConfig struct {
	// BaseURL is the public address Shopify delivers webhooks to.
	BaseURL string
}

type RedisConfig struct {
	URL string
}

type CacheConfig struct {
	TTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "coupons")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("shopify.store_domain", "")
	v.SetDefault("shopify.access_token", "")
	v.SetDefault("shopify.api_version", "2024-10")
	v.SetDefault("shopify.webhook_secret", "")
	v.SetDefault("shopify.timeout", 10*time.Second)
	v.SetDefault("shopify.sync_interval", time.Second)

	v.SetDefault("app.base_url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
}

// Load reads config.yaml (or the file at path) and lets environment variables
// override any key, e.g. SHOPIFY_STORE_DOMAIN for shopify.store_domain.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
		log.Info("no config file found, using defaults and environment")
	}

	cfg := &Config{
		Server: ServerConfig{Addr: v.GetString("server.addr")},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
			URL:      v.GetString("database.url"),
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			Name:     v.GetString("database.name"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Shopify: ShopifyConfig{
			StoreDomain:   strings.TrimSpace(v.GetString("shopify.store_domain")),
			AccessToken:   strings.TrimSpace(v.GetString("shopify.access_token")),
			APIVersion:    v.GetString("shopify.api_version"),
			WebhookSecret: v.GetString("shopify.webhook_secret"),
			Timeout:       v.GetDuration("shopify.timeout"),
			SyncInterval:  v.GetDuration("shopify.sync_interval"),
		},
		App:   AppConfig{BaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("app.base_url")), "/")},
		Redis: RedisConfig{URL: strings.TrimSpace(v.GetString("redis.url"))},
		Cache: CacheConfig{TTL: v.GetDuration("cache.ttl")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: strings.ToLower(v.GetString("log.format")),
			File:   v.GetString("log.file"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	if c.Shopify.SyncInterval < 0 {
		return errors.New("config: shopify.sync_interval must not be negative")
	}
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	return nil
}

func (d DatabaseConfig) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		URL:      d.URL,
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		DBName:   d.Name,
		SSLMode:  d.SSLMode,
	}
}

func (s ShopifyConfig) Client() shopify.Config {
	return shopify.Config{
		StoreDomain: s.StoreDomain,
		AccessToken: s.AccessToken,
		APIVersion:  s.APIVersion,
		Timeout:     s.Timeout,
	}
}
