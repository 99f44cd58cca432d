// Package config loads the indexer's runtime configuration entirely from
// environment variables, in the style of the reference service's
// env-helper (no YAML/TOML file support).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/observability/otel"
)

// Config captures every runtime knob the indexer needs.
type Config struct {
	RPCURL               string
	DatabaseURL          string
	StartBlock           uint64
	PoolAddress          string
	PoolDataProvider     string
	PriceOracle          string
	LogPerRequest        uint64
	MaxBlockLag          uint64
	MaxCapOnHealthFactor float64
	AtRiskHealthFactor   float64

	LiquidatableUsersUpdateFrequency time.Duration
	AtRiskUsersUpdateFrequency       time.Duration
	HealthyUsersUpdateFrequency      time.Duration

	Port string

	OTelEndpoint string
	OTelInsecure bool
	OTelHeaders  map[string]string
	Environment  string
}

// FromEnv loads and validates configuration from the process environment.
// Every required variable missing or malformed is a fatal startup error,
// matching the reference loader's fail-fast behavior.
func FromEnv() (Config, error) {
	cfg := Config{
		RPCURL:           strings.TrimSpace(os.Getenv("RPC_URL")),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		PoolAddress:      strings.TrimSpace(os.Getenv("POOL_ADDRESS")),
		PoolDataProvider: strings.TrimSpace(os.Getenv("POOL_DATA_PROVIDER")),
		PriceOracle:      strings.TrimSpace(os.Getenv("PRICE_ORACLE")),
		Port:             getenvDefault("PORT", "8080"),
		Environment:      getenvDefault("ENVIRONMENT", "development"),
		OTelEndpoint:     strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTelInsecure:     strings.EqualFold(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), "true"),
	}
	cfg.OTelHeaders = otel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))

	var err error
	if cfg.RPCURL == "" {
		return Config{}, errors.New("RPC_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.PoolAddress == "" {
		return Config{}, errors.New("POOL_ADDRESS is required")
	}
	if cfg.PoolDataProvider == "" {
		return Config{}, errors.New("POOL_DATA_PROVIDER is required")
	}
	if cfg.PriceOracle == "" {
		return Config{}, errors.New("PRICE_ORACLE is required")
	}

	if cfg.StartBlock, err = requireUint64("START_BLOCK"); err != nil {
		return Config{}, err
	}
	if cfg.LogPerRequest, err = uint64OrDefault("LOG_PER_REQUEST", 2000); err != nil {
		return Config{}, err
	}
	if cfg.MaxBlockLag, err = uint64OrDefault("MAX_BLOCK_LAG", 20); err != nil {
		return Config{}, err
	}
	if cfg.MaxCapOnHealthFactor, err = floatOrDefault("MAX_CAP_ON_HEALTH_FACTOR", 100); err != nil {
		return Config{}, err
	}
	if cfg.AtRiskHealthFactor, err = floatOrDefault("AT_RISK_HEALTH_FACTOR", 1.1); err != nil {
		return Config{}, err
	}
	if cfg.AtRiskHealthFactor <= 1.0 {
		return Config{}, errors.New("AT_RISK_HEALTH_FACTOR must be greater than 1.0")
	}

	liqFreq, err := uint64OrDefault("LIQUIDATABLE_USERS_UPDATE_FREQUENCY", 30)
	if err != nil {
		return Config{}, err
	}
	atRiskFreq, err := uint64OrDefault("AT_RISK_USERS_UPDATE_FREQUENCY", 120)
	if err != nil {
		return Config{}, err
	}
	healthyFreq, err := uint64OrDefault("HEALTHY_USERS_UPDATE_FREQUENCY", 600)
	if err != nil {
		return Config{}, err
	}
	cfg.LiquidatableUsersUpdateFrequency = time.Duration(liqFreq) * time.Second
	cfg.AtRiskUsersUpdateFrequency = time.Duration(atRiskFreq) * time.Second
	cfg.HealthyUsersUpdateFrequency = time.Duration(healthyFreq) * time.Second

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func requireUint64(key string) (uint64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func uint64OrDefault(key string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func floatOrDefault(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

