package stocksage

import (
	"bytes"
	"context"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

type recordedCall struct {
	messages []Message
	cfg      ModelConfig
}

// stubChatCompletion replaces the completions seam for the duration of the
// test and records every call, answering from contents in order.
func stubChatCompletion(t *testing.T, calls *[]recordedCall, contents ...string) {
	t.Helper()
	original := chatCompletion
	t.Cleanup(func() { chatCompletion = original })
	chatCompletion = func(ctx context.Context, c *llmClient, messages []Message, cfg ModelConfig) (string, error) {
		idx := len(*calls)
		*calls = append(*calls, recordedCall{messages: messages, cfg: cfg})
		if idx >= len(contents) {
			idx = len(contents) - 1
		}
		return contents[idx], nil
	}
}

func TestRepairAndValidateInvokesCleanupModel(t *testing.T) {
	var calls []recordedCall
	stubChatCompletion(t, &calls, "```json\n{\"a\": 1}\n```")

	core := newTestCore(t, Options{})
	extraction, err := core.RepairAndValidate(context.Background(), `{"a": 1,}`, nil)
	if err != nil {
		t.Fatalf("RepairAndValidate: %v", err)
	}
	if !extraction.OK() {
		t.Fatalf("unexpected failure: %q", extraction.Failure)
	}
	if !reflect.DeepEqual(extraction.Value, map[string]any{"a": float64(1)}) {
		t.Fatalf("value = %v", extraction.Value)
	}

	if len(calls) != 1 {
		t.Fatalf("expected exactly one cleanup call, got %d", len(calls))
	}
	call := calls[0]
	if call.cfg.Model != "gemma2-9b-it" {
		t.Fatalf("cleanup model = %q", call.cfg.Model)
	}
	if len(call.messages) != 2 || call.messages[0].Role != roleSystem {
		t.Fatalf("messages = %+v", call.messages)
	}
	if !strings.Contains(call.messages[1].Content, `{"a": 1,}`) {
		t.Fatalf("raw text missing from cleanup prompt:\n%s", call.messages[1].Content)
	}
	if strings.Contains(call.messages[1].Content, "Strict JSON Schema") {
		t.Fatalf("schema section present without a schema:\n%s", call.messages[1].Content)
	}
}

func TestRepairAndValidateEmbedsSchema(t *testing.T) {
	var calls []recordedCall
	stubChatCompletion(t, &calls, "```json\n{\"portfolio_recommendation\": {}}\n```")

	schema := map[string]any{
		"type":     "object",
		"required": []any{"portfolio_recommendation"},
	}

	core := newTestCore(t, Options{})
	extraction, err := core.RepairAndValidate(context.Background(), "messy", schema)
	if err != nil {
		t.Fatalf("RepairAndValidate: %v", err)
	}
	if !extraction.OK() {
		t.Fatalf("unexpected failure: %q", extraction.Failure)
	}

	prompt := calls[0].messages[1].Content
	if !strings.Contains(prompt, "### **Strict JSON Schema:**") {
		t.Fatalf("schema heading missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, `"portfolio_recommendation"`) {
		t.Fatalf("schema body missing:\n%s", prompt)
	}
	if calls[0].cfg.Schema == nil {
		t.Fatal("schema not bound to response format")
	}
}

func TestRepairAndValidateSecondMissIsNonOK(t *testing.T) {
	var calls []recordedCall
	stubChatCompletion(t, &calls, "still not json, sorry")

	core := newTestCore(t, Options{})
	extraction, err := core.RepairAndValidate(context.Background(), "garbage", nil)
	if err != nil {
		t.Fatalf("RepairAndValidate: %v", err)
	}
	if extraction.OK() {
		t.Fatalf("expected non-OK extraction, got %v", extraction.Value)
	}
	if extraction.Failure != NoJSONBlockFound {
		t.Fatalf("failure = %q", extraction.Failure)
	}
	if len(calls) != 1 {
		t.Fatalf("expected a single repair attempt, got %d", len(calls))
	}
}

func TestRepairAndValidateLogsSchemaViolations(t *testing.T) {
	var calls []recordedCall
	stubChatCompletion(t, &calls, "```json\n{\"wrong_key\": true}\n```")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	core := newTestCore(t, Options{Logger: logger})

	schema := map[string]any{
		"type":     "object",
		"required": []any{"portfolio_recommendation"},
	}
	extraction, err := core.RepairAndValidate(context.Background(), "messy", schema)
	if err != nil {
		t.Fatalf("RepairAndValidate: %v", err)
	}
	if !extraction.OK() {
		t.Fatalf("nonconforming output must still be returned, got failure %q", extraction.Failure)
	}
	if !strings.Contains(buf.String(), "does not conform") {
		t.Fatalf("expected schema warning in log output:\n%s", buf.String())
	}
}
