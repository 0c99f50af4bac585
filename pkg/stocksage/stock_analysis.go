package stocksage

import (
	"context"
	"encoding/json"
	"strings"
)

const stockAnalysisPromptText = `You are a helpful stock market portfolio assistant.
Analyze the stock symbol {symbol} and provide basic insights.
Ensure the response is a short paragraph.`

const investmentAnalysisPromptText = `Using the following stock data, determine if this stock is a good or bad investment for 3 to 5 years period.
Provide a JSON response in this format: {{ "recommendation": "Good" | "Bad", "reason": string }}.
Stock Data: {stock_data}`

var (
	stockAnalysisTemplate      = NewPromptTemplate(stockAnalysisPromptText, "symbol")
	investmentAnalysisTemplate = NewPromptTemplate(investmentAnalysisPromptText, "stock_data")
)

// StockAnalysisRequest defines inputs for the per-ticker AI analysis.
type StockAnalysisRequest struct {
	StockSymbol string `json:"stockSymbol"`
}

// InvestmentAnalysis is the model's good/bad verdict for a ticker.
type InvestmentAnalysis struct {
	Recommendation string `json:"recommendation"`
	Reason         string `json:"reason"`
}

// StockAnalysisResult is the composed stock-analysis payload. Field names
// match what the page components consume. AIInvestmentAnalysis is nil when
// the verdict could not be parsed; the frontend renders that as
// "analysis unavailable".
type StockAnalysisResult struct {
	AIAnalysis           string              `json:"AIAnalysis"`
	AIInvestmentAnalysis *InvestmentAnalysis `json:"AIinvestmentAnalysis"`
	StockData            StockFundamentals   `json:"stockData"`
}

// AnalyzeStock sequences the stock-analysis flow: a short narrative from
// the fast-analysis model, a fundamentals fetch, and a structured verdict
// derived from the fundamentals. The narrative path never routes through
// the repair pipeline; it is free text by design.
func (c *Core) AnalyzeStock(ctx context.Context, req StockAnalysisRequest) (*StockAnalysisResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.StockSymbol))
	if symbol == "" {
		return nil, NewError(ErrCodeInvalidInput, "stockSymbol is required")
	}

	narrativePrompt, err := stockAnalysisTemplate.Format(map[string]any{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	narrative, err := c.llm.Invoke(ctx, []Message{
		{Role: roleSystem, Content: narrativePrompt},
	}, c.fastAnalysisConfig())
	if err != nil {
		return nil, err
	}

	fundamentals, err := c.fundamentals.FetchFundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}

	stockDataJSON, err := json.Marshal(fundamentals)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "marshal fundamentals for prompt", err)
	}
	verdictPrompt, err := investmentAnalysisTemplate.Format(map[string]any{"stock_data": string(stockDataJSON)})
	if err != nil {
		return nil, err
	}

	verdictConfig := c.fastAnalysisConfig()
	verdictConfig.JSONResponse = true
	verdictRaw, err := c.llm.Invoke(ctx, []Message{
		{Role: roleSystem, Content: verdictPrompt},
	}, verdictConfig)
	if err != nil {
		return nil, err
	}

	result := &StockAnalysisResult{
		AIAnalysis: narrative,
		StockData:  fundamentals,
	}
	result.AIInvestmentAnalysis = parseInvestmentAnalysis(c, verdictRaw)
	return result, nil
}

func parseInvestmentAnalysis(c *Core, raw string) *InvestmentAnalysis {
	var verdict InvestmentAnalysis
	if err := parseModelJSON(raw, &verdict); err != nil {
		c.logger.Warn("investment verdict is not parseable JSON", "err", err)
		return nil
	}
	switch {
	case strings.EqualFold(verdict.Recommendation, "good"):
		verdict.Recommendation = "Good"
	case strings.EqualFold(verdict.Recommendation, "bad"):
		verdict.Recommendation = "Bad"
	default:
		c.logger.Warn("investment verdict outside Good/Bad", "recommendation", verdict.Recommendation)
		return nil
	}
	verdict.Reason = strings.TrimSpace(verdict.Reason)
	return &verdict
}
