package stocksage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const maxRecommendedHoldings = 5

const portfolioRecommendationPromptText = `You are an expert financial analyst specializing in stock portfolio creation. Based on my investment preferences, risk tolerance, and goals, recommend a well-diversified portfolio.

Investment Preferences:
- Investment Amount: {investmentAmount}
- Risk Tolerance: {riskTolerance}
- Time Horizon: {timeHorizon}
- Preferred Sectors: {preferredSectors}
- Investment Strategy: {investmentStrategy}
- Geographic Preference: {geographicPreference}
- Market Conditions: {marketConditions}

Output Requirements:
1. A **list of recommended stocks/ETFs** (with percentage allocation and max upto 5 stocks).
2. stock symbol and name
3. Sector of each stock/ETF.
4. A brief **justification for each stock/ETF**.
5. Portfolio **expected return & risk level**.
6. How this portfolio compares against **S&P 500 or another benchmark**.
7. Any **potential risks** and suggested risk management strategies.

Ensure the recommendations align with current market trends and economic outlook. ### **Strict JSON Schema:**
{JSONSchema}`

var portfolioRecommendationTemplate = NewPromptTemplate(portfolioRecommendationPromptText,
	"investmentAmount",
	"riskTolerance",
	"timeHorizon",
	"preferredSectors",
	"investmentStrategy",
	"geographicPreference",
	"marketConditions",
	"JSONSchema",
)

const recommendationSchemaJSON = `{
  "type": "object",
  "required": ["portfolio_recommendation"],
  "properties": {
    "portfolio_recommendation": {
      "type": "object",
      "required": [
        "investment_amount",
        "risk_tolerance",
        "time_horizon",
        "preferred_sectors",
        "investment_strategy",
        "geographic_preference",
        "market_conditions",
        "stocks_etfs",
        "expected_return",
        "risk_level",
        "comparison_to_benchmark",
        "potential_risks"
      ],
      "properties": {
        "investment_amount": {"type": "integer"},
        "risk_tolerance": {"type": "string"},
        "time_horizon": {"type": "string"},
        "preferred_sectors": {"type": "array", "items": {"type": "string"}},
        "investment_strategy": {"type": "string"},
        "geographic_preference": {"type": "string"},
        "market_conditions": {"type": "string"},
        "stocks_etfs": {
          "type": "array",
          "maxItems": 5,
          "items": {
            "type": "object",
            "required": ["stock_symbol", "stock_name", "sector", "percentage_allocation", "justification"],
            "properties": {
              "stock_symbol": {"type": "string"},
              "stock_name": {"type": "string"},
              "sector": {"type": "string"},
              "percentage_allocation": {"type": "integer"},
              "justification": {"type": "string"}
            }
          }
        },
        "expected_return": {"type": "string"},
        "risk_level": {"type": "string"},
        "comparison_to_benchmark": {
          "type": "object",
          "required": ["benchmark", "comparison"],
          "properties": {
            "benchmark": {"type": "string"},
            "comparison": {"type": "string"}
          }
        },
        "potential_risks": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["risk", "management_strategy"],
            "properties": {
              "risk": {"type": "string"},
              "management_strategy": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

// recommendationSchema is parsed once at package init; the source is a
// trusted constant.
var recommendationSchema = mustParseSchema(recommendationSchemaJSON)

func mustParseSchema(raw string) map[string]any {
	var schema map[string]any
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		panic(fmt.Sprintf("invalid embedded schema: %v", err))
	}
	return schema
}

// PortfolioRecommendationRequest carries the risk-profile form inputs.
// Every field is optional; absent fields take the documented defaults.
type PortfolioRecommendationRequest struct {
	InvestmentAmount     int      `json:"investmentAmount"`
	RiskTolerance        string   `json:"riskTolerance"`
	TimeHorizon          string   `json:"timeHorizon"`
	PreferredSectors     []string `json:"preferredSectors"`
	InvestmentStrategy   string   `json:"investmentStrategy"`
	GeographicPreference string   `json:"geographicPreference"`
	MarketConditions     string   `json:"marketConditions"`
}

// RecommendedHolding is one stocks_etfs entry of a portfolio recommendation.
type RecommendedHolding struct {
	StockSymbol          string `json:"stock_symbol"`
	StockName            string `json:"stock_name"`
	Sector               string `json:"sector"`
	PercentageAllocation int    `json:"percentage_allocation"`
	Justification        string `json:"justification"`
	// AllocationAmount is computed server-side from the investment amount
	// and the percentage allocation.
	AllocationAmount string `json:"allocation_amount,omitempty"`
}

// UnmarshalJSON tolerates model responses where percentage_allocation is
// returned as a float or a numeric string instead of an integer.
func (h *RecommendedHolding) UnmarshalJSON(data []byte) error {
	var raw struct {
		StockSymbol          string `json:"stock_symbol"`
		StockName            string `json:"stock_name"`
		Sector               string `json:"sector"`
		PercentageAllocation any    `json:"percentage_allocation"`
		Justification        string `json:"justification"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.StockSymbol = raw.StockSymbol
	h.StockName = raw.StockName
	h.Sector = raw.Sector
	h.Justification = raw.Justification
	h.PercentageAllocation = anyToInt(raw.PercentageAllocation)
	return nil
}

func anyToInt(value any) int {
	switch v := value.(type) {
	case float64:
		return int(math.Round(v))
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(v), "%")
		if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return int(math.Round(parsed))
		}
	}
	return 0
}

// BenchmarkComparison relates the portfolio to a market benchmark.
type BenchmarkComparison struct {
	Benchmark  string `json:"benchmark"`
	Comparison string `json:"comparison"`
}

// PotentialRisk pairs a risk with its suggested management strategy.
type PotentialRisk struct {
	Risk               string `json:"risk"`
	ManagementStrategy string `json:"management_strategy"`
}

// PortfolioRecommendation is the validated recommendation shape returned to
// the presentation layer.
type PortfolioRecommendation struct {
	InvestmentAmount      int                  `json:"investment_amount"`
	RiskTolerance         string               `json:"risk_tolerance"`
	TimeHorizon           string               `json:"time_horizon"`
	PreferredSectors      []string             `json:"preferred_sectors"`
	InvestmentStrategy    string               `json:"investment_strategy"`
	GeographicPreference  string               `json:"geographic_preference"`
	MarketConditions      string               `json:"market_conditions"`
	StocksETFs            []RecommendedHolding `json:"stocks_etfs"`
	ExpectedReturn        string               `json:"expected_return"`
	RiskLevel             string               `json:"risk_level"`
	ComparisonToBenchmark *BenchmarkComparison `json:"comparison_to_benchmark"`
	PotentialRisks        []PotentialRisk      `json:"potential_risks"`
}

// ValidatedPortfolio wraps the recommendation under the key the page layer
// reads.
type ValidatedPortfolio struct {
	PortfolioRecommendation *PortfolioRecommendation `json:"portfolio_recommendation"`
}

// PortfolioRecommendationResult is the route-level response envelope.
// InitialAnalysis is null when both the model call and the repair pass
// failed to produce well-formed JSON.
type PortfolioRecommendationResult struct {
	InitialAnalysis *ValidatedPortfolio `json:"initialAnalysis"`
}

func normalizeRecommendationRequest(req PortfolioRecommendationRequest) PortfolioRecommendationRequest {
	if req.InvestmentAmount <= 0 {
		req.InvestmentAmount = 100000
	}
	if strings.TrimSpace(req.RiskTolerance) == "" {
		req.RiskTolerance = "Low"
	}
	if strings.TrimSpace(req.TimeHorizon) == "" {
		req.TimeHorizon = "Medium-term (3-7 years)"
	}
	if len(req.PreferredSectors) == 0 {
		req.PreferredSectors = []string{"Finance"}
	}
	if strings.TrimSpace(req.InvestmentStrategy) == "" {
		req.InvestmentStrategy = "Any"
	}
	if strings.TrimSpace(req.GeographicPreference) == "" {
		req.GeographicPreference = "USA"
	}
	if strings.TrimSpace(req.MarketConditions) == "" {
		req.MarketConditions = "Neutral"
	}
	return req
}

// RecommendPortfolio runs the schema-constrained recommendation flow:
// prompt, structured-recommendation model call, then an unconditional
// repair pass. The repair pass always runs for this flow, even when the
// first output would have extracted cleanly, so the endpoint has one
// well-defined path rather than two.
func (c *Core) RecommendPortfolio(ctx context.Context, req PortfolioRecommendationRequest) (*PortfolioRecommendationResult, error) {
	normalized := normalizeRecommendationRequest(req)

	prompt, err := portfolioRecommendationTemplate.Format(map[string]any{
		"investmentAmount":     normalized.InvestmentAmount,
		"riskTolerance":        normalized.RiskTolerance,
		"timeHorizon":          normalized.TimeHorizon,
		"preferredSectors":     strings.Join(normalized.PreferredSectors, ", "),
		"investmentStrategy":   normalized.InvestmentStrategy,
		"geographicPreference": normalized.GeographicPreference,
		"marketConditions":     normalized.MarketConditions,
		"JSONSchema":           recommendationSchema,
	})
	if err != nil {
		return nil, err
	}

	cfg := c.structuredConfig()
	cfg.Schema = recommendationSchema
	rawContent, err := c.llm.Invoke(ctx, []Message{
		{Role: roleSystem, Content: "You are a financial analyst providing investment recommendations in JSON format."},
		{Role: roleUser, Content: prompt},
	}, cfg)
	if err != nil {
		return nil, err
	}

	extraction, err := c.RepairAndValidate(ctx, rawContent, recommendationSchema)
	if err != nil {
		return nil, err
	}
	if !extraction.OK() {
		c.logger.Warn("portfolio recommendation degraded to null", "reason", extraction.Failure)
		return &PortfolioRecommendationResult{InitialAnalysis: nil}, nil
	}

	validated, err := decodeValidatedPortfolio(extraction.Value)
	if err != nil {
		c.logger.Warn("repaired recommendation does not decode", "err", err)
		return &PortfolioRecommendationResult{InitialAnalysis: nil}, nil
	}

	c.finalizeRecommendation(validated, normalized.InvestmentAmount)
	return &PortfolioRecommendationResult{InitialAnalysis: validated}, nil
}

// decodeValidatedPortfolio maps the repaired JSON onto the response shape.
// Models occasionally nest the payload under an extra initialAnalysis key;
// that wrapper is unwrapped here.
func decodeValidatedPortfolio(value any) (*ValidatedPortfolio, error) {
	if m, ok := value.(map[string]any); ok {
		if inner, ok := m["initialAnalysis"]; ok {
			value = inner
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var validated ValidatedPortfolio
	if err := json.Unmarshal(data, &validated); err != nil {
		return nil, err
	}
	if validated.PortfolioRecommendation == nil {
		return nil, fmt.Errorf("missing portfolio_recommendation key")
	}
	return &validated, nil
}

// finalizeRecommendation enforces the holdings cap, fills computed dollar
// amounts, and logs the advisory allocation-sum check. Allocations that do
// not sum to 100 are reported, not rejected.
func (c *Core) finalizeRecommendation(validated *ValidatedPortfolio, investmentAmount int) {
	rec := validated.PortfolioRecommendation
	if rec.InvestmentAmount <= 0 {
		rec.InvestmentAmount = investmentAmount
	}
	if len(rec.StocksETFs) > maxRecommendedHoldings {
		c.logger.Warn("model recommended too many holdings; truncating",
			"got", len(rec.StocksETFs),
			"max", maxRecommendedHoldings,
		)
		rec.StocksETFs = rec.StocksETFs[:maxRecommendedHoldings]
	}

	amount := decimal.NewFromInt(int64(rec.InvestmentAmount))
	hundred := decimal.NewFromInt(100)
	totalPct := decimal.Zero
	for i := range rec.StocksETFs {
		pct := decimal.NewFromInt(int64(rec.StocksETFs[i].PercentageAllocation))
		totalPct = totalPct.Add(pct)
		rec.StocksETFs[i].AllocationAmount = amount.Mul(pct).Div(hundred).StringFixed(2)
	}
	if !totalPct.Equal(hundred) {
		c.logger.Warn("percentage allocations do not sum to 100", "total", totalPct.String())
	}
}
