package config

import (
	"strings"
	"testing"
)

func setRequiredKeys(t *testing.T) {
	t.Helper()
	t.Setenv(envLLMAPIKey, "llm-key")
	t.Setenv(envMarketDataToken, "tiingo-key")
	t.Setenv(envFundamentalsAPIKey, "fund-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv(envPort, "")
	t.Setenv(envHost, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 8000 {
		t.Fatalf("host/port = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.LogDir != "logs" {
		t.Fatalf("log dir = %q", cfg.LogDir)
	}
	if cfg.LLMAPIKey != "llm-key" || cfg.MarketDataToken != "tiingo-key" || cfg.FundamentalsAPIKey != "fund-key" {
		t.Fatalf("keys not loaded")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv(envHost, "0.0.0.0")
	t.Setenv(envPort, "9090")
	t.Setenv(envLLMBaseURL, "http://localhost:1234/v1")
	t.Setenv(envFastModel, "gemini-2.0-flash")
	t.Setenv(envStructuredModel, "llama-3.1-405b")
	t.Setenv(envCleanupModel, "gemini-1.5-flash")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
		t.Fatalf("host/port = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.LLMBaseURL != "http://localhost:1234/v1" {
		t.Fatalf("llm base url = %q", cfg.LLMBaseURL)
	}
	if cfg.FastAnalysisModel != "gemini-2.0-flash" || cfg.StructuredModel != "llama-3.1-405b" || cfg.CleanupModel != "gemini-1.5-flash" {
		t.Fatalf("model overrides = %q %q %q", cfg.FastAnalysisModel, cfg.StructuredModel, cfg.CleanupModel)
	}
}

func TestLoadModelOverridesDefaultEmpty(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv(envFastModel, "")
	t.Setenv(envStructuredModel, "")
	t.Setenv(envCleanupModel, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FastAnalysisModel != "" || cfg.StructuredModel != "" || cfg.CleanupModel != "" {
		t.Fatalf("expected empty overrides, got %q %q %q", cfg.FastAnalysisModel, cfg.StructuredModel, cfg.CleanupModel)
	}
}

func TestLoadReportsAllMissingKeys(t *testing.T) {
	t.Setenv(envLLMAPIKey, "")
	t.Setenv(envMarketDataToken, "")
	t.Setenv(envFundamentalsAPIKey, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing keys")
	}
	for _, name := range []string{envLLMAPIKey, envMarketDataToken, envFundamentalsAPIKey} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q does not name %s", err.Error(), name)
		}
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	setRequiredKeys(t)

	for _, bad := range []string{"abc", "-1", "0", "70000"} {
		t.Setenv(envPort, bad)
		if _, err := Load(); err == nil {
			t.Fatalf("port %q: expected error", bad)
		}
	}
}
