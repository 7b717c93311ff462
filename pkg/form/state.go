package form

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// State tracks the canonical value of every field in a single form instance.
// Resolutions merge into it from background goroutines while the owning form
// keeps writing manual edits, so every accessor holds the state's lock.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewState seeds the state with the model's field defaults.
func NewState(model Model) *State {
	s := &State{values: make(map[string]any, len(model.Fields))}
	for _, field := range model.Fields {
		if field.Default != nil {
			s.values[field.Name] = field.Default
		}
	}
	return s
}

// Set writes a field value, replacing any previous value.
func (s *State) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[name] = value
}

// Get returns the current value for a field.
func (s *State) Get(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[name]
	return value, ok
}

// GetString returns the field value rendered as a string. Unset fields
// return "".
func (s *State) GetString(name string) string {
	value, ok := s.Get(name)
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

// GetNumber parses the field value as a float64.
func (s *State) GetNumber(name string) (float64, error) {
	value, ok := s.Get(name)
	if !ok || value == nil {
		return 0, fmt.Errorf("form: field %q is unset", name)
	}
	switch typed := value.(type) {
	case float64:
		return typed, nil
	case int:
		return float64(typed), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, fmt.Errorf("form: field %q is not numeric: %w", name, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("form: field %q has unsupported type %T", name, value)
	}
}

// Merge applies every entry of values on top of the current state under a
// single lock acquisition. Merge runs exactly once per dependency resolution;
// a manual edit made after the merge is never overwritten because nothing
// replays it.
func (s *State) Merge(values map[string]any) {
	if len(values) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any, len(values))
	}
	for name, value := range values {
		s.values[name] = value
	}
}

// Snapshot returns a deep copy of the current values, suitable for handing to
// a submission without racing later edits.
func (s *State) Snapshot() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for name, value := range s.values {
		out[name] = deepCopy(value)
	}
	return out
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	default:
		return typed
	}
}
