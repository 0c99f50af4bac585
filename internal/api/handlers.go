package api

import (
	"encoding/json"
	"io"
	"net/http"

	"stocksage/pkg/stocksage"
)

const maxRequestBodyBytes = 1 << 20

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) dailyPrices(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	result, err := h.core.DailyPrices(r.Context(), symbol)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeRawJSON(w, http.StatusOK, result)
}

func (h *handler) searchTickers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	result, err := h.core.SearchTickers(r.Context(), query)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeRawJSON(w, http.StatusOK, result)
}

func (h *handler) stockAnalysis(w http.ResponseWriter, r *http.Request) {
	var payload stocksage.StockAnalysisRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.core.AnalyzeStock(r.Context(), payload)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) portfolioRecommendation(w http.ResponseWriter, r *http.Request) {
	var payload stocksage.PortfolioRecommendationRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.core.RecommendPortfolio(r.Context(), payload)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) portfolioAnalyzer(w http.ResponseWriter, r *http.Request) {
	var portfolio any
	if err := decodeJSON(r, &portfolio); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.core.AnalyzePortfolio(r.Context(), portfolio)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeJSON reads a size-limited request body. An empty body decodes to
// the payload's zero value so optional-field endpoints work without one.
func decodeJSON(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		return stocksage.WrapError(stocksage.ErrCodeInvalidInput, "read request body", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return stocksage.WrapError(stocksage.ErrCodeInvalidInput, "invalid JSON body", err)
	}
	return nil
}
