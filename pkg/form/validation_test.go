package form_test

import (
	"testing"

	"github.com/goliatone/go-advisory/pkg/form"
)

func TestValidate(t *testing.T) {
	model := cropModel()

	cases := []struct {
		name       string
		snapshot   map[string]any
		wantFields []string
	}{
		{
			name:     "valid snapshot",
			snapshot: map[string]any{"Nitrogen": 85.0, "pH": 7.0, "Soil_color": "Black"},
		},
		{
			name:       "missing required",
			snapshot:   map[string]any{"Nitrogen": 85.0, "pH": 7.0},
			wantFields: []string{"Soil_color"},
		},
		{
			name:       "empty string counts as missing",
			snapshot:   map[string]any{"Nitrogen": 85.0, "pH": 7.0, "Soil_color": "  "},
			wantFields: []string{"Soil_color"},
		},
		{
			name:       "non numeric",
			snapshot:   map[string]any{"Nitrogen": "lots", "pH": 7.0, "Soil_color": "Black"},
			wantFields: []string{"Nitrogen"},
		},
		{
			name:       "numeric string accepted",
			snapshot:   map[string]any{"Nitrogen": "85", "pH": "6.5", "Soil_color": "Black"},
			wantFields: nil,
		},
		{
			name:       "out of bounds",
			snapshot:   map[string]any{"Nitrogen": 85.0, "pH": 19.0, "Soil_color": "Black"},
			wantFields: []string{"pH"},
		},
		{
			name:       "enum outside allowed set",
			snapshot:   map[string]any{"Nitrogen": 85.0, "pH": 7.0, "Soil_color": "Purple"},
			wantFields: []string{"Soil_color"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			issues := form.Validate(model, tc.snapshot)
			if len(tc.wantFields) == 0 {
				if issues != nil {
					t.Fatalf("want no issues, got %v", issues)
				}
				return
			}
			for _, field := range tc.wantFields {
				if len(issues[field]) == 0 {
					t.Errorf("expected issue on %q, got %v", field, issues)
				}
			}
		})
	}
}

func TestValidate_IntegerField(t *testing.T) {
	model := form.Model{Fields: []form.Field{
		{Name: "fieldSize", Type: form.FieldTypeInteger, Required: true},
	}}

	if issues := form.Validate(model, map[string]any{"fieldSize": 2.0}); issues != nil {
		t.Errorf("whole number rejected: %v", issues)
	}
	if issues := form.Validate(model, map[string]any{"fieldSize": 2.4}); issues == nil {
		t.Error("fractional value accepted for integer field")
	}
}
