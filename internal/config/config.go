package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultPubMedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// MinPubMedTimeout is the smallest upstream timeout Validate accepts.
const MinPubMedTimeout = 100 * time.Millisecond

type Config struct {
	Server struct {
		Port        string
		CORSOrigins []string
	}
	PubMed struct {
		BaseURL      string
		Timeout      time.Duration
		DefaultLimit int
		MaxLimit     int
		APIKey       string
		Email        string
		Tool         string
	}
	Database struct {
		URL            string
		MigrationsPath string
	}
	Redis struct {
		URL string
	}
	Cache struct {
		TTL time.Duration
	}
	Log struct {
		Level string
	}
}

// env names for each key; viper's AutomaticEnv alone would expect
// SERVER.PORT style names.
var envBindings = map[string]string{
	"server.port":          "PORT",
	"server.cors_origins":  "CORS_ORIGINS",
	"pubmed.base_url":      "PUBMED_BASE_URL",
	"pubmed.timeout":       "PUBMED_TIMEOUT",
	"pubmed.default_limit": "PUBMED_DEFAULT_LIMIT",
	"pubmed.max_limit":     "PUBMED_MAX_LIMIT",
	"pubmed.api_key":       "NCBI_API_KEY",
	"pubmed.email":         "NCBI_EMAIL",
	"pubmed.tool":          "NCBI_TOOL",
	"database.url":         "DATABASE_URL",
	"database.migrations":  "MIGRATIONS_PATH",
	"redis.url":            "REDIS_URL",
	"cache.ttl":            "CACHE_TTL",
	"log.level":            "LOG_LEVEL",
}

// Load reads config.yaml from the working directory when present and
// applies environment overrides on top of the defaults.
func Load() (*Config, error) {
	return LoadFrom(".")
}

func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetDefault("server.port", "5000")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("pubmed.base_url", DefaultPubMedBaseURL)
	v.SetDefault("pubmed.timeout", "10s")
	v.SetDefault("pubmed.default_limit", 5)
	v.SetDefault("pubmed.max_limit", 100)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config

	config.Server.Port = v.GetString("server.port")
	config.Server.CORSOrigins = splitList(v.GetString("server.cors_origins"))
	config.PubMed.BaseURL = strings.TrimRight(v.GetString("pubmed.base_url"), "/")
	config.PubMed.Timeout = duration(v, "pubmed.timeout")
	config.PubMed.DefaultLimit = v.GetInt("pubmed.default_limit")
	config.PubMed.MaxLimit = v.GetInt("pubmed.max_limit")
	config.PubMed.APIKey = v.GetString("pubmed.api_key")
	config.PubMed.Email = v.GetString("pubmed.email")
	config.PubMed.Tool = v.GetString("pubmed.tool")
	config.Database.URL = v.GetString("database.url")
	config.Database.MigrationsPath = v.GetString("database.migrations")
	config.Redis.URL = v.GetString("redis.url")
	config.Cache.TTL = duration(v, "cache.ttl")
	config.Log.Level = v.GetString("log.level")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Server.Port)
	}
	if c.PubMed.BaseURL == "" {
		return fmt.Errorf("pubmed base URL is required")
	}
	if c.PubMed.Timeout < MinPubMedTimeout {
		return fmt.Errorf("pubmed timeout must be at least %s, got %s", MinPubMedTimeout, c.PubMed.Timeout)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative, got %s", c.Cache.TTL)
	}
	if c.PubMed.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive, got %d", c.PubMed.DefaultLimit)
	}
	if c.PubMed.MaxLimit < c.PubMed.DefaultLimit {
		return fmt.Errorf("max limit %d is below default limit %d", c.PubMed.MaxLimit, c.PubMed.DefaultLimit)
	}
	return nil
}

func (c *Config) HistoryEnabled() bool { return c.Database.URL != "" }

func (c *Config) CacheEnabled() bool { return c.Redis.URL != "" }

// duration reads a bare integer as seconds; anything else goes through
// viper's duration parsing ("10s", "5m").
func duration(v *viper.Viper, key string) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return v.GetDuration(key)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
