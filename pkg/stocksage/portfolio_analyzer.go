package stocksage

import (
	"context"
	"encoding/json"
)

const portfolioAnalyzerPromptText = `You are an expert portfolio analyst. Given the following input JSON representing a client's portfolio, generate a detailed JSON analysis response. Your response should include the following sections:

1. **portfolioOverview**: Summarize key details like investment amount, risk tolerance, time horizon, investment strategy, and current market conditions based on the given input.

2. **portfolioBreakdown**: For each asset, provide the name, allocation percentage, sector, and a brief analysis describing its strengths, risks, and relevance to the portfolio.

3. **balanceCheck**: Evaluate whether the portfolio is balanced. Identify any issues such as excessive allocation to one asset or sector and note any lack of diversification.

4. **portfolioAnalysis**: Combine insights about diversification and strategy alignment into one paragraph.

5. **predictedReturns**: Provide a predicted return percentage for each stock and an overall predicted return for the portfolio.

6. **recommendations**: Offer specific recommendations with rationales.

Use the following portfolio data as input:

` + "```json" + `
{portfolio}
` + "```" + `

Ensure that your JSON output follows this structure:

` + "```json" + `
{{
    "portfolioOverview": {{
        "investmentAmount": <number>,
        "riskTolerance": "<string>",
        "timeHorizon": "<string>",
        "investmentStrategy": "<string>",
        "marketConditions": "<string>"
    }},
    "portfolioBreakdown": [
        {{
            "name": "<string>",
            "allocationPercentage": <number>,
            "sector": "<string>",
            "analysis": "<string>"
        }}
    ],
    "balanceCheck": {{
        "isBalanced": <boolean>,
        "issues": ["<string>"]
    }},
    "portfolioAnalysis": "<string>",
    "predictedReturns": {{
        "stocks": [
            {{
                "name": "<string>",
                "predictedReturn": <number>
            }}
        ],
        "overallPredictedReturn": <number>
    }},
    "recommendations": [
        {{
            "recommendation": "<string>",
            "rationale": "<string>"
        }}
    ]
}}
` + "```" + `

Ensure that your JSON response is **syntactically correct** and includes actionable insights. Make sure to give only insight that is based on the input. Dont give any new suggestions outside of that`

var portfolioAnalyzerTemplate = NewPromptTemplate(portfolioAnalyzerPromptText, "portfolio")

// PortfolioOverview restates the client profile the analysis was run for.
type PortfolioOverview struct {
	InvestmentAmount   float64 `json:"investmentAmount"`
	RiskTolerance      string  `json:"riskTolerance"`
	TimeHorizon        string  `json:"timeHorizon"`
	InvestmentStrategy string  `json:"investmentStrategy"`
	MarketConditions   string  `json:"marketConditions"`
}

// HoldingBreakdown is the per-asset slice of the analysis.
type HoldingBreakdown struct {
	Name                 string  `json:"name"`
	AllocationPercentage float64 `json:"allocationPercentage"`
	Sector               string  `json:"sector"`
	Analysis             string  `json:"analysis"`
}

// BalanceCheck reports whether the portfolio is diversified enough and
// lists any concentration issues found.
type BalanceCheck struct {
	IsBalanced bool     `json:"isBalanced"`
	Issues     []string `json:"issues"`
}

// StockReturn is one per-holding predicted return.
type StockReturn struct {
	Name            string  `json:"name"`
	PredictedReturn float64 `json:"predictedReturn"`
}

// PredictedReturns aggregates per-stock and overall return estimates.
type PredictedReturns struct {
	Stocks                 []StockReturn `json:"stocks"`
	OverallPredictedReturn float64       `json:"overallPredictedReturn"`
}

// AnalyzerRecommendation pairs an action with its rationale.
type AnalyzerRecommendation struct {
	Recommendation string `json:"recommendation"`
	Rationale      string `json:"rationale"`
}

// PortfolioAnalysis is the full analyzer output shape.
type PortfolioAnalysis struct {
	PortfolioOverview  PortfolioOverview        `json:"portfolioOverview"`
	PortfolioBreakdown []HoldingBreakdown       `json:"portfolioBreakdown"`
	BalanceCheck       BalanceCheck             `json:"balanceCheck"`
	PortfolioAnalysis  string                   `json:"portfolioAnalysis"`
	PredictedReturns   PredictedReturns         `json:"predictedReturns"`
	Recommendations    []AnalyzerRecommendation `json:"recommendations"`
}

// AnalyzePortfolio runs a free-shape portfolio through the analyzer prompt
// and the repair pass. The portfolio is accepted as arbitrary JSON so the
// caller can submit whatever holdings shape the client assembled.
func (c *Core) AnalyzePortfolio(ctx context.Context, portfolio any) (*PortfolioAnalysis, error) {
	if portfolio == nil {
		return nil, NewError(ErrCodeInvalidInput, "portfolio is required")
	}
	encoded, err := json.Marshal(portfolio)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "portfolio is not encodable as JSON", err)
	}

	prompt, err := portfolioAnalyzerTemplate.Format(map[string]any{
		"portfolio": string(encoded),
	})
	if err != nil {
		return nil, err
	}

	rawContent, err := c.llm.Invoke(ctx, []Message{
		{Role: roleSystem, Content: prompt},
	}, c.structuredConfig())
	if err != nil {
		return nil, err
	}

	// Repair runs without a schema here; the prompt already embeds the
	// expected structure.
	extraction, err := c.RepairAndValidate(ctx, rawContent, nil)
	if err != nil {
		return nil, err
	}
	if !extraction.OK() {
		c.logger.Warn("portfolio analysis degraded to null", "reason", extraction.Failure)
		return nil, nil
	}

	data, err := json.Marshal(extraction.Value)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "re-encoding repaired analysis", err)
	}
	var analysis PortfolioAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		c.logger.Warn("repaired analysis does not decode", "err", err)
		return nil, nil
	}
	return &analysis, nil
}
