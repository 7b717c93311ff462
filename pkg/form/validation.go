package form

import (
	"fmt"
	"strconv"
	"strings"
)

// Issues maps field names to their validation messages. A nil map means the
// snapshot is valid.
type Issues map[string][]string

// Validate checks a snapshot against the model: required fields present,
// numeric fields parse, enum values within the allowed set. It performs no
// network access and therefore runs before any submission fetch.
func Validate(model Model, snapshot map[string]any) Issues {
	issues := make(Issues)

	for _, field := range model.Fields {
		value, present := snapshot[field.Name]
		text := valueText(value)

		if !present || text == "" {
			if field.Required {
				issues.add(field.Name, fmt.Sprintf("%s is required", labelOf(field)))
			}
			continue
		}

		switch field.Type {
		case FieldTypeNumber, FieldTypeInteger:
			parsed, err := toNumber(value)
			if err != nil {
				issues.add(field.Name, fmt.Sprintf("%s must be a number", labelOf(field)))
				continue
			}
			if field.Type == FieldTypeInteger && parsed != float64(int64(parsed)) {
				issues.add(field.Name, fmt.Sprintf("%s must be a whole number", labelOf(field)))
				continue
			}
			checkBounds(field, parsed, issues)
		case FieldTypeEnum:
			if len(field.Options) > 0 && !contains(field.Options, text) {
				issues.add(field.Name, fmt.Sprintf("%s must be one of the listed options", labelOf(field)))
			}
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return issues
}

func (i Issues) add(field, message string) {
	i[field] = append(i[field], message)
}

func checkBounds(field Field, value float64, issues Issues) {
	for _, rule := range field.Validations {
		raw, ok := rule.Params["value"]
		if !ok {
			continue
		}
		bound, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		switch rule.Kind {
		case ValidationRuleMin:
			if value < bound {
				issues.add(field.Name, fmt.Sprintf("%s must be at least %s", labelOf(field), raw))
			}
		case ValidationRuleMax:
			if value > bound {
				issues.add(field.Name, fmt.Sprintf("%s must be at most %s", labelOf(field), raw))
			}
		}
	}
}

func labelOf(field Field) string {
	if field.Label != "" {
		return field.Label
	}
	return field.Name
}

func valueText(value any) string {
	if value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

// Number coerces a state value to a float64. Numeric strings are accepted the
// same way validation accepts them.
func Number(value any) (float64, error) {
	return toNumber(value)
}

func toNumber(value any) (float64, error) {
	switch typed := value.(type) {
	case float64:
		return typed, nil
	case int:
		return float64(typed), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(typed), 64)
	default:
		return 0, fmt.Errorf("form: unsupported numeric type %T", value)
	}
}

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}
