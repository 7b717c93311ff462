package remote

import (
	"encoding/json"
	"fmt"
)

// Kind is the JSON value kind a schema key expects.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

// Key declares a single expected top-level key in a response payload.
type Key struct {
	Name     string
	Kind     Kind
	Required bool
}

// Shape is a minimal contract a response object must satisfy before it is
// handed to the caller. Backends are not trusted to return well-formed
// payloads; a mismatch rejects the whole response.
type Shape struct {
	Keys []Key
}

// Validate checks raw against the shape. A nil error means every required key
// is present with the declared kind. Extra keys are ignored.
func (s Shape) Validate(raw json.RawMessage) error {
	if len(s.Keys) == 0 {
		return nil
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return &SchemaError{Message: "response is not a JSON object"}
	}
	for _, key := range s.Keys {
		value, ok := payload[key.Name]
		if !ok {
			if key.Required {
				return &SchemaError{Path: key.Name, Message: "required key missing"}
			}
			continue
		}
		if err := checkKind(key.Name, key.Kind, value); err != nil {
			return err
		}
	}
	return nil
}

// DecodeInto validates raw against shape and unmarshals it into v.
func DecodeInto(raw json.RawMessage, shape Shape, v any) error {
	if err := shape.Validate(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

func checkKind(name string, kind Kind, raw json.RawMessage) error {
	if kind == "" || string(raw) == "null" {
		return nil
	}
	var ok bool
	switch kind {
	case KindString:
		var v string
		ok = json.Unmarshal(raw, &v) == nil
	case KindNumber:
		var v float64
		ok = json.Unmarshal(raw, &v) == nil
	case KindBool:
		var v bool
		ok = json.Unmarshal(raw, &v) == nil
	case KindArray:
		var v []json.RawMessage
		ok = json.Unmarshal(raw, &v) == nil
	case KindObject:
		var v map[string]json.RawMessage
		ok = json.Unmarshal(raw, &v) == nil
	default:
		return &SchemaError{Path: name, Message: fmt.Sprintf("unknown kind %q", kind)}
	}
	if !ok {
		return &SchemaError{Path: name, Message: fmt.Sprintf("expected %s", kind)}
	}
	return nil
}
