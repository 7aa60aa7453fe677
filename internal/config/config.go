package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config del servicio completo: YAML + overrides por variable de entorno.
// Los secretos solo entran por env; el YAML nunca los contiene.
type Config struct {
	Env      string `yaml:"env"`       // "dev" | "prod"
	LogLevel string `yaml:"log_level"` // "debug" | "info" | "warn" | "error"

	HTTP struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxConns        int           `yaml:"max_conns"`
		MinConns        int           `yaml:"min_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"postgres"`

	Redis struct {
		Addr     string `yaml:"addr"` // vacío -> limiter en memoria
		Password string `yaml:"-"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret string `yaml:"-"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`

	Session struct {
		Secret     string        `yaml:"-"`
		CookieName string        `yaml:"cookie_name"`
		TTL        time.Duration `yaml:"ttl"`
	} `yaml:"session"`

	APIKeys struct {
		Pepper string `yaml:"-"`
	} `yaml:"api_keys"`

	MagicLinks struct {
		BaseURL    string `yaml:"base_url"` // prefijo del link entregado por email
		SealKey    string `yaml:"-"`        // base64, 32 bytes; vacío -> metadata en claro
		SealAtRest bool   `yaml:"seal_at_rest"`
	} `yaml:"magic_links"`

	Rate struct {
		Prefix string `yaml:"prefix"`
	} `yaml:"rate"`

	Audit struct {
		QueueSize int `yaml:"queue_size"`
	} `yaml:"audit"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		From     string `yaml:"from"`
		Username string `yaml:"-"`
		Password string `yaml:"-"`
		TLSMode  string `yaml:"tls_mode"`
	} `yaml:"smtp"`
}

func defaults() *Config {
	var c Config
	c.Env = "dev"
	c.LogLevel = "info"
	c.HTTP.Addr = ":8080"
	c.HTTP.ReadTimeout = 10 * time.Second
	c.HTTP.WriteTimeout = 15 * time.Second
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.Postgres.MaxConns = 8
	c.Postgres.ConnMaxLifetime = 30 * time.Minute
	c.Session.CookieName = "gk_portal_session"
	c.Session.TTL = 24 * time.Hour
	c.Rate.Prefix = "gk:rl:"
	c.Audit.QueueSize = 1024
	c.SMTP.TLSMode = "auto"
	return &c
}

// Load lee el YAML (opcional) y aplica overrides de entorno.
func Load(path string) (*Config, error) {
	c := defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(c)

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func applyEnv(c *Config) {
	setStr(&c.Env, "GK_ENV")
	setStr(&c.LogLevel, "GK_LOG_LEVEL")
	setStr(&c.HTTP.Addr, "GK_HTTP_ADDR")
	setStr(&c.Postgres.DSN, "GK_POSTGRES_DSN")
	setStr(&c.Redis.Addr, "GK_REDIS_ADDR")
	setStr(&c.Redis.Password, "GK_REDIS_PASSWORD")
	setInt(&c.Redis.DB, "GK_REDIS_DB")
	setStr(&c.Auth.JWTSecret, "GK_AUTH_JWT_SECRET")
	setStr(&c.Auth.Issuer, "GK_AUTH_ISSUER")
	setStr(&c.Session.Secret, "GK_SESSION_SECRET")
	setStr(&c.APIKeys.Pepper, "GK_APIKEY_PEPPER")
	setStr(&c.MagicLinks.BaseURL, "GK_MAGICLINK_BASE_URL")
	setStr(&c.MagicLinks.SealKey, "GK_MAGICLINK_SEAL_KEY")
	setStr(&c.SMTP.Host, "GK_SMTP_HOST")
	setInt(&c.SMTP.Port, "GK_SMTP_PORT")
	setStr(&c.SMTP.From, "GK_SMTP_FROM")
	setStr(&c.SMTP.Username, "GK_SMTP_USERNAME")
	setStr(&c.SMTP.Password, "GK_SMTP_PASSWORD")
}

func (c *Config) validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres dsn is required (GK_POSTGRES_DSN)")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required (GK_AUTH_JWT_SECRET)")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required (GK_SESSION_SECRET)")
	}
	if c.APIKeys.Pepper == "" {
		return fmt.Errorf("api key pepper is required (GK_APIKEY_PEPPER)")
	}
	if c.MagicLinks.SealAtRest && c.MagicLinks.SealKey == "" {
		return fmt.Errorf("seal_at_rest requires GK_MAGICLINK_SEAL_KEY")
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
