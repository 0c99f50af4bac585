package stocksage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const cleanupSystemPrompt = "You are an AI assistant that strictly returns structured JSON."

const cleanupPromptTemplate = `I have received stock portfolio data in JSON format, but it is messy. Can you clean it and return a valid structured JSON? Here is the data:

{data}

Ensure:
- The JSON is valid.
- The structure follows standard JSON formatting.
- Any unnecessary fields are removed.
- Only return the cleaned JSON.`

const cleanupSchemaSection = `

### **Strict JSON Schema:**
{schema}`

// RepairAndValidate is the two-stage cleanup used by recommendation-style
// flows: the raw model text is handed verbatim to the cleanup model, which
// is asked to re-emit it as clean JSON, and the cleanup output is then
// re-extracted. One repair attempt, no further retries: a second miss comes
// back as a non-OK Extraction for the caller to degrade on.
//
// When schema is non-nil it is serialized into the cleanup prompt and bound
// to the response format. The schema is advisory context for the model, not
// a machine-enforced contract: output that fails schema validation is
// logged and returned anyway.
func (c *Core) RepairAndValidate(ctx context.Context, rawModelText string, schema map[string]any) (Extraction, error) {
	prompt, err := buildCleanupPrompt(rawModelText, schema)
	if err != nil {
		return Extraction{}, err
	}

	cfg := c.cleanupConfig()
	cfg.Schema = schema

	content, err := c.llm.Invoke(ctx, []Message{
		{Role: roleSystem, Content: cleanupSystemPrompt},
		{Role: roleUser, Content: prompt},
	}, cfg)
	if err != nil {
		return Extraction{}, err
	}

	extraction := ExtractAndParse(content)
	if !extraction.OK() {
		c.logger.Warn("cleanup model output failed extraction", "reason", extraction.Failure)
		return extraction, nil
	}

	if schema != nil {
		c.validateAgainstSchema(extraction.Value, schema)
	}
	return extraction, nil
}

func buildCleanupPrompt(rawModelText string, schema map[string]any) (string, error) {
	template := cleanupPromptTemplate
	variables := []string{"data"}
	values := map[string]any{"data": rawModelText}

	if schema != nil {
		serialized, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return "", WrapError(ErrCodeInternal, "serialize cleanup schema", err)
		}
		template += cleanupSchemaSection
		variables = append(variables, "schema")
		values["schema"] = string(serialized)
	}

	return NewPromptTemplate(template, variables...).Format(values)
}

// validateAgainstSchema checks repaired output against the target schema and
// logs nonconformance. It never rejects: the contract is advisory.
func (c *Core) validateAgainstSchema(value any, schema map[string]any) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(value))
	if err != nil {
		c.logger.Warn("schema validation skipped", "err", err)
		return
	}
	if result.Valid() {
		return
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		issues = append(issues, issue.String())
	}
	c.logger.Warn("repaired JSON does not conform to target schema", "issues", strings.Join(issues, "; "))
}
