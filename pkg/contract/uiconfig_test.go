package contract_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-advisory/pkg/contract"
	"github.com/goliatone/go-advisory/pkg/form"
)

const fertilizerUI = `
operations:
  predictFertilizer:
    labels:
      district: District
      nitrogen: Nitrogen (kg/ha)
    placeholders:
      district: Select your district
    order: [district, ph, nitrogen]
    drivers:
      district: environmental
`

func TestLoadUIConfig_Decorate(t *testing.T) {
	cfg, err := contract.LoadUIConfig([]byte(fertilizerUI))
	if err != nil {
		t.Fatalf("LoadUIConfig() error = %v", err)
	}

	model := form.Model{
		OperationID: "predictFertilizer",
		Fields: []form.Field{
			{Name: "nitrogen", Type: form.FieldTypeInteger},
			{Name: "district", Type: form.FieldTypeEnum},
			{Name: "ph", Type: form.FieldTypeNumber},
			{Name: "extra", Type: form.FieldTypeString},
		},
	}
	cfg.Decorate(&model)

	var names []string
	for _, field := range model.Fields {
		names = append(names, field.Name)
	}
	if diff := cmp.Diff([]string{"district", "ph", "nitrogen", "extra"}, names); diff != "" {
		t.Errorf("field order mismatch (-want +got):\n%s", diff)
	}

	district, _ := model.FieldByName("district")
	if district.Label != "District" || district.Placeholder != "Select your district" {
		t.Errorf("district decoration = %q / %q", district.Label, district.Placeholder)
	}
	if !district.Driver || district.DependencyGroup != "environmental" {
		t.Errorf("district driver = %v group %q, want driver in group environmental", district.Driver, district.DependencyGroup)
	}

	nitrogen, _ := model.FieldByName("nitrogen")
	if nitrogen.Label != "Nitrogen (kg/ha)" {
		t.Errorf("nitrogen label = %q", nitrogen.Label)
	}
}

func TestDecorate_UnknownOperationLeavesModelAlone(t *testing.T) {
	cfg, err := contract.LoadUIConfig([]byte(fertilizerUI))
	if err != nil {
		t.Fatalf("LoadUIConfig() error = %v", err)
	}
	model := form.Model{
		OperationID: "other",
		Fields:      []form.Field{{Name: "a", Label: "keep"}},
	}
	cfg.Decorate(&model)
	if model.Fields[0].Label != "keep" {
		t.Errorf("label = %q, want keep", model.Fields[0].Label)
	}
}

func TestLoadUIConfig_Invalid(t *testing.T) {
	if _, err := contract.LoadUIConfig([]byte("operations: [not, a, map]")); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
