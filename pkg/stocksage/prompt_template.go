package stocksage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PromptTemplate is an immutable prompt string with named `{placeholder}`
// slots. Double braces (`{{` and `}}`) are escapes that render as literal
// single braces, so a template can instruct the model to reproduce JSON
// braces without them being mistaken for placeholders.
type PromptTemplate struct {
	Template  string
	Variables []string
}

// NewPromptTemplate declares a template with its expected variable names.
func NewPromptTemplate(template string, variables ...string) PromptTemplate {
	return PromptTemplate{Template: template, Variables: variables}
}

// Format substitutes every declared placeholder with its stringified value.
// Strings are inserted as-is; everything else is JSON-serialized. It fails
// with a TEMPLATE_BINDING error when a declared variable never appears in
// the template, when a placeholder references an undeclared variable, or
// when a referenced variable has no supplied value.
func (t PromptTemplate) Format(values map[string]any) (string, error) {
	declared := make(map[string]bool, len(t.Variables))
	for _, name := range t.Variables {
		declared[name] = false
	}

	var sb strings.Builder
	sb.Grow(len(t.Template))
	s := t.Template
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			sb.WriteByte('{')
			i += 2
		case strings.HasPrefix(s[i:], "}}"):
			sb.WriteByte('}')
			i += 2
		case s[i] == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return "", NewError(ErrCodeTemplateBinding, fmt.Sprintf("unterminated placeholder at offset %d", i))
			}
			name := s[i+1 : i+end]
			if _, ok := declared[name]; !ok {
				return "", NewError(ErrCodeTemplateBinding, fmt.Sprintf("placeholder %q is not a declared variable", name))
			}
			value, supplied := values[name]
			if !supplied {
				return "", NewError(ErrCodeTemplateBinding, fmt.Sprintf("no value supplied for variable %q", name))
			}
			text, err := stringifyPromptValue(value)
			if err != nil {
				return "", WrapError(ErrCodeTemplateBinding, fmt.Sprintf("serialize variable %q", name), err)
			}
			sb.WriteString(text)
			declared[name] = true
			i += end + 1
		default:
			sb.WriteByte(s[i])
			i++
		}
	}

	for _, name := range t.Variables {
		if !declared[name] {
			return "", NewError(ErrCodeTemplateBinding, fmt.Sprintf("declared variable %q does not appear in template", name))
		}
	}
	return sb.String(), nil
}

func stringifyPromptValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int32, int64, float32, float64, bool:
		return fmt.Sprintf("%v", v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
