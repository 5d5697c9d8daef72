package config

import (
	"testing"
)

func TestResolveDefaults_AutoDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "auto"
	cfg.PostgresDSN = ""
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("ResolveDefaults: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected sqlite without DSN, got %s", cfg.DBDriver)
	}

	cfg = NewForTesting()
	cfg.DBDriver = ""
	cfg.PostgresDSN = "postgres://localhost/periodix"
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("ResolveDefaults: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("expected postgres with DSN, got %s", cfg.DBDriver)
	}
}

func TestResolveDefaults_Rejections(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "oracle"
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}

	cfg = NewForTesting()
	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}

	cfg = NewForTesting()
	cfg.HistoryKeep = 0
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error for HISTORY_KEEP below 1")
	}
}

func TestGetHTTPAddr(t *testing.T) {
	cfg := NewForTesting()
	cfg.HTTPPort = 9090
	if got := cfg.GetHTTPAddr(); got != ":9090" {
		t.Fatalf("unexpected addr %s", got)
	}
}
