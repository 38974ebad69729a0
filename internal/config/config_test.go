package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "STORAGE_DRIVER", "TX_TIMEOUT", "DB_MAX_OPEN_CONNS", "KAFKA_TOPIC"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.StorageDriver != DriverMySQL {
		t.Errorf("expected mysql driver, got %s", cfg.StorageDriver)
	}
	if cfg.TxTimeout != 5*time.Second {
		t.Errorf("expected 5s tx timeout, got %v", cfg.TxTimeout)
	}
	if cfg.DBMaxOpenConns != 50 {
		t.Errorf("expected 50 open conns, got %d", cfg.DBMaxOpenConns)
	}
	if cfg.KafkaTopic != "order-events" {
		t.Errorf("expected order-events topic, got %s", cfg.KafkaTopic)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("TX_TIMEOUT", "750ms")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.HTTPAddr)
	}
	if cfg.StorageDriver != DriverMemory {
		t.Errorf("expected memory driver, got %s", cfg.StorageDriver)
	}
	if cfg.TxTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.TxTimeout)
	}
	if cfg.DBMaxOpenConns != 7 {
		t.Errorf("expected 7, got %d", cfg.DBMaxOpenConns)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad int", "DB_MAX_OPEN_CONNS", "lots"},
		{"bad duration", "TX_TIMEOUT", "soon"},
		{"zero timeout", "TX_TIMEOUT", "0s"},
		{"unknown driver", "STORAGE_DRIVER", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
