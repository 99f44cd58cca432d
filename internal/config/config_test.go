package config

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "https://rpc.example.com")
	t.Setenv("DATABASE_URL", "postgres://localhost/indexer")
	t.Setenv("POOL_ADDRESS", "0x0000000000000000000000000000000000aaaa")
	t.Setenv("POOL_DATA_PROVIDER", "0x0000000000000000000000000000000000bbbb")
	t.Setenv("PRICE_ORACLE", "0x0000000000000000000000000000000000cccc")
	t.Setenv("START_BLOCK", "100")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogPerRequest != 2000 {
		t.Errorf("LogPerRequest = %d, want 2000", cfg.LogPerRequest)
	}
	if cfg.MaxBlockLag != 20 {
		t.Errorf("MaxBlockLag = %d, want 20", cfg.MaxBlockLag)
	}
	if cfg.AtRiskHealthFactor != 1.1 {
		t.Errorf("AtRiskHealthFactor = %v, want 1.1", cfg.AtRiskHealthFactor)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
}

func TestFromEnvMissingRequired(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POOL_ADDRESS", "")
	t.Setenv("POOL_DATA_PROVIDER", "")
	t.Setenv("PRICE_ORACLE", "")
	t.Setenv("START_BLOCK", "")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error when RPC_URL is missing")
	}
}

func TestFromEnvRejectsAtRiskThresholdAtOrBelowOne(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AT_RISK_HEALTH_FACTOR", "1.0")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for AT_RISK_HEALTH_FACTOR <= 1.0")
	}
}

func TestFromEnvRejectsMalformedNumber(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_PER_REQUEST", "not-a-number")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for malformed LOG_PER_REQUEST")
	}
}

func TestFromEnvUpdateFrequencies(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LIQUIDATABLE_USERS_UPDATE_FREQUENCY", "5")
	t.Setenv("AT_RISK_USERS_UPDATE_FREQUENCY", "15")
	t.Setenv("HEALTHY_USERS_UPDATE_FREQUENCY", "60")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LiquidatableUsersUpdateFrequency.Seconds() != 5 {
		t.Errorf("LiquidatableUsersUpdateFrequency = %v, want 5s", cfg.LiquidatableUsersUpdateFrequency)
	}
	if cfg.AtRiskUsersUpdateFrequency.Seconds() != 15 {
		t.Errorf("AtRiskUsersUpdateFrequency = %v, want 15s", cfg.AtRiskUsersUpdateFrequency)
	}
	if cfg.HealthyUsersUpdateFrequency.Seconds() != 60 {
		t.Errorf("HealthyUsersUpdateFrequency = %v, want 60s", cfg.HealthyUsersUpdateFrequency)
	}
}
