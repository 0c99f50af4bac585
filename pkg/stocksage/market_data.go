package stocksage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultMarketDataBaseURL = "https://api.tiingo.com"
	// dailyPricesStartDate bounds the price history window requested from
	// the provider; the frontend chart renders the year to date.
	dailyPricesStartDate = "2025-01-02"
	maxMarketDataBytes   = 4 << 20
)

// marketDataClient is a thin pass-through wrapper for the market data
// provider's daily-prices and ticker-search endpoints. Payloads are
// returned to the caller exactly as the provider sent them.
type marketDataClient struct {
	baseURL string
	token   string
	client  HTTPDoer
	logger  *slog.Logger
}

func newMarketDataClient(baseURL, token string, client HTTPDoer, logger *slog.Logger) *marketDataClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = defaultMarketDataBaseURL
	}
	return &marketDataClient{
		baseURL: trimmed,
		token:   token,
		client:  client,
		logger:  logger,
	}
}

// DailyPrices returns the provider's daily price series for a symbol.
func (m *marketDataClient) DailyPrices(ctx context.Context, symbol string) (json.RawMessage, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, NewError(ErrCodeInvalidInput, "symbol is required")
	}
	query := url.Values{}
	query.Set("startDate", dailyPricesStartDate)
	query.Set("token", m.token)
	endpoint := fmt.Sprintf("%s/tiingo/daily/%s/prices?%s", m.baseURL, url.PathEscape(symbol), query.Encode())
	return m.passthrough(ctx, endpoint, "daily prices")
}

// Search returns the provider's ticker search matches for a query string.
func (m *marketDataClient) Search(ctx context.Context, text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewError(ErrCodeInvalidInput, "query is required")
	}
	query := url.Values{}
	query.Set("query", text)
	query.Set("token", m.token)
	endpoint := m.baseURL + "/tiingo/utilities/search?" + query.Encode()
	return m.passthrough(ctx, endpoint, "ticker search")
}

func (m *marketDataClient) passthrough(ctx context.Context, endpoint, label string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "build "+label+" request", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, WrapError(ErrCodeUpstream, label+" request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMarketDataBytes))
	if err != nil {
		return nil, WrapError(ErrCodeUpstream, "read "+label+" response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.Warn("market data upstream error", "endpoint_label", label, "status", resp.StatusCode)
		return nil, NewError(ErrCodeUpstream, fmt.Sprintf("%s upstream status %d", label, resp.StatusCode))
	}
	if !json.Valid(body) {
		return nil, NewError(ErrCodeUpstream, label+" response is not valid JSON")
	}
	return json.RawMessage(body), nil
}

// DailyPrices is the market data pass-through for the dailyPrices route.
func (c *Core) DailyPrices(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.market.DailyPrices(ctx, symbol)
}

// SearchTickers is the market data pass-through for the search route.
func (c *Core) SearchTickers(ctx context.Context, query string) (json.RawMessage, error) {
	return c.market.Search(ctx, query)
}
