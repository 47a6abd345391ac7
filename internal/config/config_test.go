package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.SettlementAttempts != 3 || cfg.CommissionRate != 0.05 {
		t.Fatalf("unexpected settlement defaults %+v", cfg)
	}
	if cfg.StaleCutoff != 15*time.Minute || cfg.StaleOuterBound != 2*time.Hour {
		t.Fatalf("unexpected staleness defaults %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("COMMISSION_RATE", "0.1")
	t.Setenv("SWEEP_INTERVAL", "30s")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.CommissionRate != 0.1 || cfg.SweepInterval != 30*time.Second {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SETTLEMENT_ATTEMPTS", "0")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for zero attempts")
	}

	t.Setenv("SETTLEMENT_ATTEMPTS", "3")
	t.Setenv("COMMISSION_RATE", "1.5")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for commission rate out of range")
	}

	t.Setenv("COMMISSION_RATE", "0.05")
	t.Setenv("STALE_CUTOFF", "3h")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error when cutoff exceeds outer bound")
	}

	t.Setenv("STALE_CUTOFF", "15m")
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
