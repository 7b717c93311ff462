package submit

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-advisory/pkg/form"
)

// ErrorMapping splits a server rejection payload into field-level and
// form-level messages keyed by the form's field names.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// MapErrorPayload normalises server error payloads into the form's field
// names. Keys that do not resolve to a known field are kept as form-level
// errors so messages are not lost.
func MapErrorPayload(model form.Model, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	if len(payload) == 0 {
		return mapping
	}

	known := make(map[string]struct{}, len(model.Fields))
	for _, field := range model.Fields {
		known[field.Name] = struct{}{}
	}

	for rawKey, messages := range payload {
		cleaned := normalizeMessages(messages)
		if len(cleaned) == 0 {
			continue
		}
		name, fieldLevel := mapErrorKey(rawKey, known)
		if fieldLevel {
			mapping.Fields[name] = append(mapping.Fields[name], cleaned...)
			continue
		}
		mapping.Form = append(mapping.Form, cleaned...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

// Rejection builds a ServerRejected from a 4xx failure payload. Field-level
// messages under the payload's "errors" key are mapped onto the form's field
// names; keys that resolve to no field stay as form-level messages folded
// into Message when the server sent no headline of its own.
func Rejection(model form.Model, message string, payload []byte) *ServerRejected {
	rejected := &ServerRejected{Message: strings.TrimSpace(message)}

	fieldErrors := decodeFieldErrors(payload)
	if len(fieldErrors) == 0 {
		return rejected
	}
	mapping := MapErrorPayload(model, fieldErrors)
	rejected.Fields = mapping.Fields
	if rejected.Message == "" && len(mapping.Form) > 0 {
		rejected.Message = strings.Join(mapping.Form, "; ")
	}
	return rejected
}

// decodeFieldErrors pulls the "errors" object out of a failure payload,
// accepting both a single string and a list of strings per key.
func decodeFieldErrors(payload []byte) map[string][]string {
	if len(payload) == 0 {
		return nil
	}
	var envelope struct {
		Errors map[string]json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}

	out := make(map[string][]string, len(envelope.Errors))
	for key, raw := range envelope.Errors {
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			out[key] = []string{single}
			continue
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err == nil {
			out[key] = many
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapErrorKey(raw string, known map[string]struct{}) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return "", false
	}

	segments := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '.' || r == '/'
	})
	// drop payload wrappers so "body.district" resolves to "district"
	for len(segments) > 0 && isWrapperSegment(segments[0]) {
		segments = segments[1:]
	}
	for _, segment := range segments {
		if _, ok := known[segment]; ok {
			return segment, true
		}
	}
	return "", false
}

func isWrapperSegment(segment string) bool {
	switch strings.ToLower(segment) {
	case "body", "request", "payload", "data":
		return true
	default:
		return false
	}
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(key) {
	case "", ".", "/", "form", "base", "__all__", "non_field_errors":
		return true
	default:
		return false
	}
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
