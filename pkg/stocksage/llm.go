package stocksage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultLLMBaseURL   = "https://api.groq.com/openai/v1"
	maxLLMResponseBytes = 2 << 20
	roleSystem          = "system"
	roleUser            = "user"
)

// Message is one role-tagged entry of a model invocation request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelConfig is an immutable model invocation configuration. Configs are
// constructed once and passed explicitly to Invoke; there are no
// module-level model singletons.
type ModelConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64

	// JSONResponse asks the provider for a JSON-object-shaped response.
	// Schema optionally binds the response to a JSON-Schema-like object;
	// setting Schema without JSONResponse is an invocation error.
	JSONResponse bool
	Schema       map[string]any
}

// FastAnalysisConfig is the deterministic short-form narrative configuration.
func FastAnalysisConfig() ModelConfig {
	return ModelConfig{
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0,
	}
}

// StructuredRecommendationConfig is the structured-JSON recommendation
// configuration with a larger token budget.
func StructuredRecommendationConfig() ModelConfig {
	return ModelConfig{
		Model:        "deepseek-r1-distill-llama-70b",
		Temperature:  0.1,
		MaxTokens:    4096,
		TopP:         0.95,
		JSONResponse: true,
	}
}

// CleanupConfig is the high-temperature reformatting configuration. It is
// used purely to re-emit clean JSON from existing content, never to
// generate new facts.
func CleanupConfig() ModelConfig {
	return ModelConfig{
		Model:        "gemma2-9b-it",
		Temperature:  1,
		MaxTokens:    1024,
		TopP:         1,
		JSONResponse: true,
	}
}

// modelSelection carries per-role model overrides. Empty values keep the
// preset model for that role.
type modelSelection struct {
	fastAnalysis string
	structured   string
	cleanup      string
}

func (c *Core) fastAnalysisConfig() ModelConfig {
	cfg := FastAnalysisConfig()
	if c.models.fastAnalysis != "" {
		cfg.Model = c.models.fastAnalysis
	}
	return cfg
}

func (c *Core) structuredConfig() ModelConfig {
	cfg := StructuredRecommendationConfig()
	if c.models.structured != "" {
		cfg.Model = c.models.structured
	}
	return cfg
}

func (c *Core) cleanupConfig() ModelConfig {
	cfg := CleanupConfig()
	if c.models.cleanup != "" {
		cfg.Model = c.models.cleanup
	}
	return cfg
}

type llmClient struct {
	endpoint string
	apiKey   string
	client   HTTPDoer
	logger   *slog.Logger
}

// Seams for tests to stub out the network without a live provider.
var (
	chatCompletion   = requestChatCompletion
	geminiCompletion = requestGeminiCompletion
)

func newLLMClient(baseURL, apiKey string, client HTTPDoer, logger *slog.Logger) (*llmClient, error) {
	endpoint, err := buildCompletionsEndpoint(baseURL)
	if err != nil {
		return nil, err
	}
	return &llmClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
		logger:   logger,
	}, nil
}

// Invoke performs exactly one model call and returns the raw text content.
// It does not retry; retries, where present, belong to the caller.
func (c *llmClient) Invoke(ctx context.Context, messages []Message, cfg ModelConfig) (string, error) {
	if len(messages) == 0 {
		return "", NewError(ErrCodeInvalidInput, "at least one message is required")
	}
	if cfg.Model == "" {
		return "", NewError(ErrCodeInvalidInput, "model is required")
	}
	if cfg.Schema != nil && !cfg.JSONResponse {
		return "", NewError(ErrCodeInvalidInput, "a response schema requires the structured-JSON constraint")
	}

	if isGeminiModel(cfg.Model) {
		return geminiCompletion(ctx, c, messages, cfg)
	}
	return chatCompletion(ctx, c, messages, cfg)
}

func buildCompletionsEndpoint(baseURL string) (string, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		trimmed = defaultLLMBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")

	endpoint := trimmed
	if !strings.HasSuffix(strings.ToLower(trimmed), "/chat/completions") {
		endpoint = trimmed + "/chat/completions"
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid llm base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid llm base url scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid llm base url host")
	}
	return endpoint, nil
}

func isGeminiModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gemini")
}

func requestChatCompletion(ctx context.Context, c *llmClient, messages []Message, cfg ModelConfig) (string, error) {
	payload := map[string]any{
		"model":       cfg.Model,
		"messages":    messages,
		"temperature": cfg.Temperature,
		"stream":      false,
	}
	if cfg.MaxTokens > 0 {
		payload["max_completion_tokens"] = cfg.MaxTokens
	}
	if cfg.TopP > 0 {
		payload["top_p"] = cfg.TopP
	}
	if cfg.JSONResponse {
		responseFormat := map[string]any{"type": "json_object"}
		if cfg.Schema != nil {
			responseFormat["schema"] = cfg.Schema
		}
		payload["response_format"] = responseFormat
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", WrapError(ErrCodeInternal, "marshal model request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", WrapError(ErrCodeInternal, "build model request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("model request", "endpoint", c.endpoint, "model", cfg.Model, "messages", len(messages))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", WrapError(ErrCodeModelUnavailable, "model request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxLLMResponseBytes))
	if err != nil {
		return "", WrapError(ErrCodeModelUnavailable, "read model response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := parseUpstreamErrorMessage(respBody)
		if message == "" {
			message = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", NewError(ErrCodeModelUnavailable, "model upstream error: "+message)
	}

	content, err := decodeChatContent(respBody)
	if err != nil {
		return "", err
	}
	c.logger.Debug("model response", "endpoint", c.endpoint, "model", cfg.Model, "content_bytes", len(content))
	return content, nil
}

// requestGeminiCompletion routes gemini-* models through the native SDK
// instead of the OpenAI-compatible wire format.
func requestGeminiCompletion(ctx context.Context, c *llmClient, messages []Message, cfg ModelConfig) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", WrapError(ErrCodeModelUnavailable, "create gemini client", err)
	}

	requestConfig, userText := buildGeminiRequest(messages, cfg)

	response, err := client.Models.GenerateContent(ctx, cfg.Model, genai.Text(userText), requestConfig)
	if err != nil {
		return "", WrapError(ErrCodeModelUnavailable, "gemini generate content failed", err)
	}
	content := strings.TrimSpace(response.Text())
	if content == "" {
		return "", NewError(ErrCodeModelUnavailable, "model response content is empty")
	}
	return content, nil
}

// buildGeminiRequest maps a chat-style message list and model config onto
// the native request shape: system messages become the system instruction,
// the remaining messages are joined into one user turn.
func buildGeminiRequest(messages []Message, cfg ModelConfig) (*genai.GenerateContentConfig, string) {
	requestConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.Temperature)),
	}
	if cfg.MaxTokens > 0 {
		requestConfig.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	if cfg.TopP > 0 {
		requestConfig.TopP = genai.Ptr(float32(cfg.TopP))
	}
	if cfg.JSONResponse {
		requestConfig.ResponseMIMEType = "application/json"
	}

	var userParts []string
	for _, m := range messages {
		if m.Role == roleSystem {
			requestConfig.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
			continue
		}
		userParts = append(userParts, m.Content)
	}
	return requestConfig, strings.Join(userParts, "\n\n")
}

func decodeChatContent(body []byte) (string, error) {
	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", WrapError(ErrCodeModelUnavailable, "decode model response", err)
	}
	if len(decoded.Choices) == 0 {
		return "", NewError(ErrCodeModelUnavailable, "model response has no choices")
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", NewError(ErrCodeModelUnavailable, "model response content is empty")
	}
	return content, nil
}

func parseUpstreamErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if strings.TrimSpace(payload.Error.Message) != "" {
		return strings.TrimSpace(payload.Error.Message)
	}
	return strings.TrimSpace(payload.Message)
}
