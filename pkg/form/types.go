package form

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeNumber  FieldType = "number"
	FieldTypeEnum    FieldType = "enum"
)

const (
	ValidationRuleMin = "min"
	ValidationRuleMax = "max"
)

// ValidationRule represents a single constraint applied to a field. Numeric
// bounds encode their threshold in Params["value"].
type ValidationRule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Field models an individual input inside an advisory form. Fields populated
// by dependency resolution stay user-editable; nothing is ever locked.
type Field struct {
	Name        string           `json:"name"`
	Type        FieldType        `json:"type"`
	Required    bool             `json:"required"`
	Label       string           `json:"label,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
	Description string           `json:"description,omitempty"`
	Default     any              `json:"default,omitempty"`
	Options     []string         `json:"options,omitempty"`
	Validations []ValidationRule `json:"validations,omitempty"`

	// Driver marks a field whose change triggers dependency resolution.
	// DependencyGroup names the resolver group the field drives; fields
	// sharing a group are superseded together.
	Driver          bool   `json:"driver,omitempty"`
	DependencyGroup string `json:"dependencyGroup,omitempty"`
}

// Model is the top-level representation an advisory form instance is built
// from: the fields plus the operation metadata of the backing service call.
type Model struct {
	OperationID string            `json:"operationId"`
	Endpoint    string            `json:"endpoint"`
	Method      string            `json:"method"`
	Summary     string            `json:"summary,omitempty"`
	Description string            `json:"description,omitempty"`
	Fields      []Field           `json:"fields"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// FieldByName returns the named field, or false when the model does not
// define it.
func (m Model) FieldByName(name string) (Field, bool) {
	for _, field := range m.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Drivers returns the model's driver fields in declaration order.
func (m Model) Drivers() []Field {
	var out []Field
	for _, field := range m.Fields {
		if field.Driver {
			out = append(out, field)
		}
	}
	return out
}
