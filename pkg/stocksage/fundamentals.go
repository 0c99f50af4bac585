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
	"time"
)

const (
	defaultFundamentalsBaseURL = "https://www.alphavantage.co"
	rateLimitRetryDelay        = 60 * time.Second
	// maxFundamentalsAttempts bounds the rate-limit retry loop: one initial
	// call plus exactly one retry.
	maxFundamentalsAttempts = 2
)

// StockFundamentals is a company-overview record from the fundamentals
// provider. Fields arrive as strings and are passed through to the client
// untouched; only Symbol/Name/Sector are interpreted server-side.
type StockFundamentals struct {
	Symbol                     string `json:"Symbol"`
	AssetType                  string `json:"AssetType"`
	Name                       string `json:"Name"`
	Description                string `json:"Description"`
	CIK                        string `json:"CIK"`
	Exchange                   string `json:"Exchange"`
	Currency                   string `json:"Currency"`
	Country                    string `json:"Country"`
	Sector                     string `json:"Sector"`
	Industry                   string `json:"Industry"`
	Address                    string `json:"Address"`
	FiscalYearEnd              string `json:"FiscalYearEnd"`
	LatestQuarter              string `json:"LatestQuarter"`
	MarketCapitalization       string `json:"MarketCapitalization"`
	EBITDA                     string `json:"EBITDA"`
	PERatio                    string `json:"PERatio"`
	PEGRatio                   string `json:"PEGRatio"`
	BookValue                  string `json:"BookValue"`
	DividendPerShare           string `json:"DividendPerShare"`
	DividendYield              string `json:"DividendYield"`
	EPS                        string `json:"EPS"`
	RevenuePerShareTTM         string `json:"RevenuePerShareTTM"`
	ProfitMargin               string `json:"ProfitMargin"`
	OperatingMarginTTM         string `json:"OperatingMarginTTM"`
	ReturnOnAssetsTTM          string `json:"ReturnOnAssetsTTM"`
	ReturnOnEquityTTM          string `json:"ReturnOnEquityTTM"`
	RevenueTTM                 string `json:"RevenueTTM"`
	GrossProfitTTM             string `json:"GrossProfitTTM"`
	DilutedEPSTTM              string `json:"DilutedEPSTTM"`
	QuarterlyEarningsGrowthYOY string `json:"QuarterlyEarningsGrowthYOY"`
	QuarterlyRevenueGrowthYOY  string `json:"QuarterlyRevenueGrowthYOY"`
	AnalystTargetPrice         string `json:"AnalystTargetPrice"`
	TrailingPE                 string `json:"TrailingPE"`
	ForwardPE                  string `json:"ForwardPE"`
	PriceToSalesRatioTTM       string `json:"PriceToSalesRatioTTM"`
	PriceToBookRatio           string `json:"PriceToBookRatio"`
	EVToRevenue                string `json:"EVToRevenue"`
	EVToEBITDA                 string `json:"EVToEBITDA"`
	Beta                       string `json:"Beta"`
	WeekHigh52                 string `json:"52WeekHigh"`
	WeekLow52                  string `json:"52WeekLow"`
	MovingAverage50Day         string `json:"50DayMovingAverage"`
	MovingAverage200Day        string `json:"200DayMovingAverage"`
	SharesOutstanding          string `json:"SharesOutstanding"`
	DividendDate               string `json:"DividendDate"`
	ExDividendDate             string `json:"ExDividendDate"`
}

type fundamentalsClient struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
	logger  *slog.Logger
	sleep   func(time.Duration)
}

func newFundamentalsClient(baseURL, apiKey string, client HTTPDoer, logger *slog.Logger) *fundamentalsClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = defaultFundamentalsBaseURL
	}
	return &fundamentalsClient{
		baseURL: trimmed,
		apiKey:  apiKey,
		client:  client,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// FetchFundamentals performs the company-overview GET. The provider signals
// a rate limit with a sentinel field in the response body rather than an
// HTTP status; on that sentinel the client sleeps for a fixed interval and
// retries the same request once. Any other failure is immediately fatal.
func (f *fundamentalsClient) FetchFundamentals(ctx context.Context, symbol string) (StockFundamentals, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return StockFundamentals{}, NewError(ErrCodeInvalidInput, "symbol is required")
	}

	for attempt := 1; attempt <= maxFundamentalsAttempts; attempt++ {
		body, err := f.requestOverview(ctx, symbol)
		if err != nil {
			return StockFundamentals{}, err
		}

		if sentinel := rateLimitSentinel(body); sentinel != "" {
			if attempt == maxFundamentalsAttempts {
				return StockFundamentals{}, NewError(ErrCodeRateLimited, "fundamentals provider rate limit: "+sentinel)
			}
			f.logger.Warn("fundamentals rate limited; sleeping before retry",
				"symbol", symbol,
				"delay", rateLimitRetryDelay.String(),
			)
			f.sleep(rateLimitRetryDelay)
			continue
		}

		var fundamentals StockFundamentals
		if err := json.Unmarshal(body, &fundamentals); err != nil {
			return StockFundamentals{}, WrapError(ErrCodeUpstream, "decode fundamentals response", err)
		}
		if fundamentals.Symbol == "" {
			return StockFundamentals{}, NewError(ErrCodeUpstream, fmt.Sprintf("no fundamentals data for symbol %s", symbol))
		}
		return fundamentals, nil
	}

	return StockFundamentals{}, NewError(ErrCodeInternal, "unreachable fundamentals retry state")
}

func (f *fundamentalsClient) requestOverview(ctx context.Context, symbol string) ([]byte, error) {
	query := url.Values{}
	query.Set("function", "OVERVIEW")
	query.Set("symbol", symbol)
	query.Set("apikey", f.apiKey)
	endpoint := f.baseURL + "/query?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "build fundamentals request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, WrapError(ErrCodeUpstream, "fundamentals request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(ErrCodeUpstream, "read fundamentals response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewError(ErrCodeUpstream, fmt.Sprintf("fundamentals upstream status %d", resp.StatusCode))
	}
	return body, nil
}

// rateLimitSentinel returns the provider's rate-limit message when the
// response body carries one. The provider reports limits inside a 200
// response under a "Note" or "Information" key.
func rateLimitSentinel(body []byte) string {
	var payload struct {
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if strings.TrimSpace(payload.Note) != "" {
		return strings.TrimSpace(payload.Note)
	}
	return strings.TrimSpace(payload.Information)
}
