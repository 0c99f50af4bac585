package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider credential variables. These match the names the deployment
// environment already uses.
const (
	envLLMAPIKey          = "GROQ_API_KEY"
	envFundamentalsAPIKey = "STOCK_API_KEY"
	envMarketDataToken    = "TIINGO_API_KEY"
)

// Optional override variables.
const (
	envHost                = "STOCKSAGE_HOST"
	envPort                = "STOCKSAGE_PORT"
	envLLMBaseURL          = "STOCKSAGE_LLM_BASE_URL"
	envFastModel           = "STOCKSAGE_FAST_MODEL"
	envStructuredModel     = "STOCKSAGE_STRUCTURED_MODEL"
	envCleanupModel        = "STOCKSAGE_CLEANUP_MODEL"
	envMarketDataBaseURL   = "STOCKSAGE_MARKET_DATA_BASE_URL"
	envFundamentalsBaseURL = "STOCKSAGE_FUNDAMENTALS_BASE_URL"
	envLogDir              = "STOCKSAGE_LOG_DIR"
	envWebDir              = "STOCKSAGE_WEB_DIR"
)

// Config holds the runtime settings for the server. Credential values are
// carried here but must never be logged.
type Config struct {
	Host string
	Port int

	LLMAPIKey  string
	LLMBaseURL string

	// Per-role model overrides; empty keeps the built-in defaults. A
	// gemini-* value switches that role to the native Gemini SDK.
	FastAnalysisModel string
	StructuredModel   string
	CleanupModel      string

	MarketDataToken   string
	MarketDataBaseURL string

	FundamentalsAPIKey  string
	FundamentalsBaseURL string

	LogDir string
	WebDir string
}

// Load reads configuration from the environment. Provider API keys are
// required; everything else has a default or stays empty.
func Load() (Config, error) {
	cfg := Config{
		Host:                getenvDefault(envHost, "127.0.0.1"),
		Port:                8000,
		LLMAPIKey:           strings.TrimSpace(os.Getenv(envLLMAPIKey)),
		LLMBaseURL:          strings.TrimSpace(os.Getenv(envLLMBaseURL)),
		FastAnalysisModel:   strings.TrimSpace(os.Getenv(envFastModel)),
		StructuredModel:     strings.TrimSpace(os.Getenv(envStructuredModel)),
		CleanupModel:        strings.TrimSpace(os.Getenv(envCleanupModel)),
		MarketDataToken:     strings.TrimSpace(os.Getenv(envMarketDataToken)),
		MarketDataBaseURL:   strings.TrimSpace(os.Getenv(envMarketDataBaseURL)),
		FundamentalsAPIKey:  strings.TrimSpace(os.Getenv(envFundamentalsAPIKey)),
		FundamentalsBaseURL: strings.TrimSpace(os.Getenv(envFundamentalsBaseURL)),
		LogDir:              getenvDefault(envLogDir, "logs"),
		WebDir:              strings.TrimSpace(os.Getenv(envWebDir)),
	}

	if value := strings.TrimSpace(os.Getenv(envPort)); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid %s: %q", envPort, value)
		}
		cfg.Port = port
	}

	var missing []string
	if cfg.LLMAPIKey == "" {
		missing = append(missing, envLLMAPIKey)
	}
	if cfg.MarketDataToken == "" {
		missing = append(missing, envMarketDataToken)
	}
	if cfg.FundamentalsAPIKey == "" {
		missing = append(missing, envFundamentalsAPIKey)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
