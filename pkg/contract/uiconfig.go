package contract

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-advisory/pkg/form"
)

// OperationUI carries the presentation metadata a contract cannot express:
// labels, placeholders, explicit field order, and which fields drive
// dependency resolution.
type OperationUI struct {
	Labels       map[string]string `yaml:"labels"`
	Placeholders map[string]string `yaml:"placeholders"`
	Order        []string          `yaml:"order"`
	Drivers      map[string]string `yaml:"drivers"` // field name -> dependency group
}

// UIConfig maps operation ids to their UI metadata.
type UIConfig struct {
	Operations map[string]OperationUI `yaml:"operations"`
}

// LoadUIConfig parses a YAML UI configuration document.
func LoadUIConfig(data []byte) (UIConfig, error) {
	var cfg UIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return UIConfig{}, fmt.Errorf("contract: parse ui config: %w", err)
	}
	for id := range cfg.Operations {
		if strings.TrimSpace(id) == "" {
			return UIConfig{}, fmt.Errorf("contract: ui config defines an empty operation id")
		}
	}
	return cfg, nil
}

// Decorate applies the operation's UI metadata to a built model: labels and
// placeholders are attached, driver fields are flagged, and fields are
// reordered to match Order. Fields missing from Order keep their relative
// position after the ordered ones.
func (c UIConfig) Decorate(model *form.Model) {
	if model == nil {
		return
	}
	ui, ok := c.Operations[model.OperationID]
	if !ok {
		return
	}

	for i := range model.Fields {
		field := &model.Fields[i]
		if label, ok := ui.Labels[field.Name]; ok {
			field.Label = label
		}
		if placeholder, ok := ui.Placeholders[field.Name]; ok {
			field.Placeholder = placeholder
		}
		if group, ok := ui.Drivers[field.Name]; ok {
			field.Driver = true
			field.DependencyGroup = group
		}
	}

	if len(ui.Order) > 0 {
		model.Fields = reorder(model.Fields, ui.Order)
	}
}

func reorder(fields []form.Field, order []string) []form.Field {
	index := make(map[string]int, len(fields))
	for i, field := range fields {
		index[field.Name] = i
	}

	out := make([]form.Field, 0, len(fields))
	taken := make(map[string]struct{}, len(order))
	for _, name := range order {
		if i, ok := index[name]; ok {
			out = append(out, fields[i])
			taken[name] = struct{}{}
		}
	}
	for _, field := range fields {
		if _, ok := taken[field.Name]; !ok {
			out = append(out, field)
		}
	}
	return out
}
