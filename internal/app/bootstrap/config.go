package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID         string
	Environment       string
	HTTPPort          int
	GRPCPort          int
	DatabaseURL       string
	RedisURL          string
	MembershipGRPCURL string
	QuoteTokenSecret  string
	AuthTokenSecret   string
	DBMaxConns        int
	IdempotencyTTL    time.Duration
	QuoteFreshness    time.Duration
	AuditPageLimit    int
}

type configFile struct {
	Service struct {
		ID          string `yaml:"id"`
		Environment string `yaml:"environment"`
		HTTPPort    int    `yaml:"http_port"`
		GRPCPort    int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		DatabaseURL       string `yaml:"database_url"`
		RedisURL          string `yaml:"redis_url"`
		MembershipGRPCURL string `yaml:"membership_grpc_url"`
	} `yaml:"dependencies"`
	Settlement struct {
		QuoteFreshnessMinutes int `yaml:"quote_freshness_minutes"`
		AuditPageLimit        int `yaml:"audit_page_limit"`
	} `yaml:"settlement"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:      "M47-Order-Settlement",
		Environment:    "development",
		HTTPPort:       8080,
		GRPCPort:       9090,
		DBMaxConns:     20,
		IdempotencyTTL: 7 * 24 * time.Hour,
		QuoteFreshness: 20 * time.Minute,
		AuditPageLimit: 100,
	}
	if raw, err := os.ReadFile(path); err == nil {
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.Environment != "" {
			cfg.Environment = f.Service.Environment
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		cfg.DatabaseURL = f.Dependencies.DatabaseURL
		cfg.RedisURL = f.Dependencies.RedisURL
		cfg.MembershipGRPCURL = f.Dependencies.MembershipGRPCURL
		if f.Settlement.QuoteFreshnessMinutes > 0 {
			cfg.QuoteFreshness = time.Duration(f.Settlement.QuoteFreshnessMinutes) * time.Minute
		}
		if f.Settlement.AuditPageLimit > 0 {
			cfg.AuditPageLimit = f.Settlement.AuditPageLimit
		}
	}
	cfg.Environment = envOrDefault("ENVIRONMENT", cfg.Environment)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.MembershipGRPCURL = envOrDefault("MEMBERSHIP_GRPC_URL", cfg.MembershipGRPCURL)
	cfg.QuoteTokenSecret = envOrDefault("QUOTE_TOKEN_SECRET", cfg.QuoteTokenSecret)
	cfg.AuthTokenSecret = envOrDefault("AUTH_TOKEN_SECRET", cfg.AuthTokenSecret)
	cfg.DBMaxConns = envInt("DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.QuoteFreshness = time.Duration(envInt("QUOTE_FRESHNESS_MINUTES", int(cfg.QuoteFreshness.Minutes()))) * time.Minute
	cfg.AuditPageLimit = envInt("AUDIT_PAGE_LIMIT", cfg.AuditPageLimit)

	if cfg.Environment == "production" && cfg.QuoteTokenSecret == "" {
		return Config{}, fmt.Errorf("QUOTE_TOKEN_SECRET is required in production")
	}
	if cfg.Environment == "production" && cfg.AuthTokenSecret == "" {
		return Config{}, fmt.Errorf("AUTH_TOKEN_SECRET is required in production")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
