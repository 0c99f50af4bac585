package stocksage

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// HTTPDoer is an interface for making HTTP requests. It enables dependency
// injection for testing without network calls.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options controls Core initialization. Base URLs default to the real
// providers and exist so tests can point the gateways at local servers.
type Options struct {
	Logger *slog.Logger

	LLMAPIKey  string
	LLMBaseURL string

	// Model overrides. Empty values keep the default model for each role;
	// a gemini-* value routes that role through the native Gemini SDK.
	FastAnalysisModel string
	StructuredModel   string
	CleanupModel      string

	MarketDataToken   string
	MarketDataBaseURL string

	FundamentalsAPIKey  string
	FundamentalsBaseURL string

	HTTPTimeout time.Duration
	HTTPClient  HTTPDoer
}

// Core provides access to StockSage business logic: the market data and
// fundamentals gateways, the model invocation adapter, and the endpoint
// operations built on top of them. All state is per-request; Core itself
// holds only configuration and clients.
type Core struct {
	logger       *slog.Logger
	llm          *llmClient
	market       *marketDataClient
	fundamentals *fundamentalsClient
	models       modelSelection
}

// New initializes a Core using the provided options.
func New(opts Options) (*Core, error) {
	if opts.LLMAPIKey == "" {
		return nil, errors.New("llm api key is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultDuration(opts.HTTPTimeout, 90*time.Second)}
	}

	llm, err := newLLMClient(opts.LLMBaseURL, opts.LLMAPIKey, client, logger)
	if err != nil {
		return nil, err
	}

	return &Core{
		logger:       logger,
		llm:          llm,
		market:       newMarketDataClient(opts.MarketDataBaseURL, opts.MarketDataToken, client, logger),
		fundamentals: newFundamentalsClient(opts.FundamentalsBaseURL, opts.FundamentalsAPIKey, client, logger),
		models: modelSelection{
			fastAnalysis: opts.FastAnalysisModel,
			structured:   opts.StructuredModel,
			cleanup:      opts.CleanupModel,
		},
	}, nil
}

// Logger returns the core's logger.
func (c *Core) Logger() *slog.Logger {
	return c.logger
}

func defaultDuration(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
