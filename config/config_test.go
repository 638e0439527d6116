package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAMPAY_ENV", "")
	t.Setenv("CAMPAY_BASE_URL", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PORT", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.CamPay.BaseURL != "https://demo.campay.net/api" {
		t.Errorf("CamPay.BaseURL = %q", cfg.CamPay.BaseURL)
	}
	if cfg.CamPay.Currency == "" {
		t.Error("expected a default currency")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CAMPAY_ENV", "prod")
	t.Setenv("CAMPAY_BASE_URL", "")
	t.Setenv("CAMPAY_TIMEOUT", "5s")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()
	if cfg.CamPay.BaseURL != "https://www.campay.net/api" {
		t.Errorf("CamPay.BaseURL = %q, want prod URL", cfg.CamPay.BaseURL)
	}
	if cfg.CamPay.Timeout != 5*time.Second {
		t.Errorf("CamPay.Timeout = %s, want 5s", cfg.CamPay.Timeout)
	}
	if cfg.DBMaxOpenConns != 10 {
		t.Errorf("DBMaxOpenConns = %d, want fallback 10", cfg.DBMaxOpenConns)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("smartbite.db")
	for _, want := range []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_txlock=immediate",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("SQLiteDSN() = %q, missing %s", dsn, want)
		}
	}
}
