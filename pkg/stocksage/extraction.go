package stocksage

import (
	"encoding/json"
	"strings"
)

// ExtractionFailure classifies a soft extraction failure. These are expected
// outcomes, not errors: model output frequently arrives without a usable
// fenced JSON block and callers must branch on it explicitly.
type ExtractionFailure string

const (
	// NoJSONBlockFound means the text contains no ```json fenced block.
	NoJSONBlockFound ExtractionFailure = "no_json_block"
	// MalformedJSON means a fenced block was found but its content does not parse.
	MalformedJSON ExtractionFailure = "malformed_json"
)

// Extraction is the outcome of locating and parsing a fenced JSON block in
// model output. Exactly one of Value/Failure is meaningful; check OK first.
type Extraction struct {
	Value   any
	Failure ExtractionFailure
}

// OK reports whether extraction produced a parsed value.
func (e Extraction) OK() bool {
	return e.Failure == ""
}

func extractionSuccess(value any) Extraction {
	return Extraction{Value: value}
}

func extractionFailure(reason ExtractionFailure) Extraction {
	return Extraction{Failure: reason}
}

const (
	jsonFenceOpen = "```json"
	fenceClose    = "```"
)

// ExtractAndParse locates a ```json fenced block in text and parses its
// content. No schema validation happens here; the parsed value is returned
// as-is. Both failure modes come back as a non-OK Extraction rather than an
// error, so a miss never aborts the request.
func ExtractAndParse(text string) Extraction {
	start := strings.Index(text, jsonFenceOpen)
	if start < 0 {
		return extractionFailure(NoJSONBlockFound)
	}
	body := text[start+len(jsonFenceOpen):]
	end := strings.Index(body, fenceClose)
	if end < 0 {
		return extractionFailure(NoJSONBlockFound)
	}
	enclosed := strings.TrimSpace(body[:end])

	var value any
	if err := json.Unmarshal([]byte(enclosed), &value); err != nil {
		return extractionFailure(MalformedJSON)
	}
	return extractionSuccess(value)
}

// parseModelJSON parses model output that was instructed to be bare JSON.
// It tries a direct parse first and falls back to fenced-block extraction
// for models that wrap their answer in a code fence anyway.
func parseModelJSON(text string, target any) error {
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}
	extraction := ExtractAndParse(trimmed)
	if !extraction.OK() {
		return NewError(ErrCodeInternal, "model output is not valid JSON")
	}
	data, err := json.Marshal(extraction.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
