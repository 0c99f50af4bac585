package api

import (
	"net/http"

	"stocksage/pkg/stocksage"
)

// ErrorResponse represents an error API response with structured information.
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

const rateLimitedMessage = "the data provider is rate limited; wait a minute and retry, and verify the ticker symbol is correct"

// writeErrorResponse writes an error response with proper HTTP status and
// error details. Structured errors override the fallback status with the
// status their code maps to.
func writeErrorResponse(w http.ResponseWriter, httpStatus int, err error) {
	response := ErrorResponse{
		Code:    httpStatus,
		Message: err.Error(),
	}

	if ssErr, ok := err.(*stocksage.Error); ok {
		response.ErrorCode = string(ssErr.Code)
		httpStatus = mapErrorCodeToHTTPStatus(ssErr.Code)
		response.Code = httpStatus
		if ssErr.Code == stocksage.ErrCodeRateLimited {
			response.Message = rateLimitedMessage
		}
	}

	if recorder, ok := w.(interface{ SetErrorMessage(string) }); ok {
		recorder.SetErrorMessage(response.Message)
	}

	writeJSON(w, httpStatus, response)
}

// mapErrorCodeToHTTPStatus maps business error codes to HTTP status codes.
func mapErrorCodeToHTTPStatus(code stocksage.ErrorCode) int {
	switch code {
	case stocksage.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case stocksage.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case stocksage.ErrCodeModelUnavailable, stocksage.ErrCodeUpstream:
		return http.StatusBadGateway
	case stocksage.ErrCodeTemplateBinding, stocksage.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
