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
)

// Checkout consistency modes.
const (
	ModeTransaction = "transaction"
	ModeTwoStep     = "two-step"
)

type Config struct {
	Port           string        `yaml:"port"`
	MongoURI       string        `yaml:"mongo_uri"`
	MongoDB        string        `yaml:"mongo_db"`
	RedisAddr      string        `yaml:"redis_addr"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	CheckoutMode   string        `yaml:"checkout_mode"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	LogLevel       string        `yaml:"log_level"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

func Default() Config {
	return Config{
		Port:           ":8080",
		MongoURI:       "mongodb://localhost:27017",
		MongoDB:        "papeleria",
		RedisAddr:      "localhost:6379",
		TokenTTL:       time.Hour,
		CheckoutMode:   ModeTransaction,
		CORSOrigins:    []string{"*"},
		LogLevel:       "info",
		RateLimitRPS:   5,
		RateLimitBurst: 10,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and finally the environment (after loading .env if present).
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.Port = normalizePort(cfg.Port)
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Port)
	setString("MONGO_URI", &c.MongoURI)
	setString("MONGO_DB", &c.MongoDB)
	setString("REDIS_ADDR", &c.RedisAddr)
	setString("JWT_SECRET", &c.JWTSecret)
	setString("CHECKOUT_MODE", &c.CheckoutMode)
	setString("LOG_LEVEL", &c.LogLevel)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimitRPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimitBurst = n
	}
	return nil
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.CheckoutMode != ModeTransaction && c.CheckoutMode != ModeTwoStep {
		return fmt.Errorf("unknown checkout mode %q", c.CheckoutMode)
	}
	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	return nil
}

func normalizePort(p string) string {
	if p == "" {
		return ":8080"
	}
	if p[0] != ':' && !strings.Contains(p, ":") {
		return ":" + p
	}
	return p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
