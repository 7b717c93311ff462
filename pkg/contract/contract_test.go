package contract_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-advisory/pkg/contract"
	"github.com/goliatone/go-advisory/pkg/form"
)

const fertilizerContract = `
openapi: 3.0.3
info:
  title: Fertilizer Advisory
  version: "1.0"
paths:
  /predict:
    post:
      operationId: predictFertilizer
      summary: Rank fertilizers for the given soil readings
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [district, nitrogen]
              properties:
                district:
                  type: string
                  enum: [Kolhapur, Sangli, Satara]
                nitrogen:
                  type: integer
                  minimum: 0
                  maximum: 200
                  default: 85
                ph:
                  type: number
                  minimum: 0
                  maximum: 14
      responses:
        "200":
          description: ranked recommendations
  /get_form_options:
    get:
      operationId: fetchFormOptions
      summary: List available districts and crops
      responses:
        "200":
          description: option lists
`

func TestBuildModel(t *testing.T) {
	model, err := contract.BuildModel(context.Background(), []byte(fertilizerContract), "predictFertilizer")
	if err != nil {
		t.Fatalf("BuildModel() error = %v", err)
	}

	if model.Endpoint != "/predict" || model.Method != "POST" {
		t.Errorf("operation = %s %s, want POST /predict", model.Method, model.Endpoint)
	}
	if model.Summary == "" {
		t.Error("expected summary to be carried over")
	}

	want := []form.Field{
		{
			Name:     "district",
			Type:     form.FieldTypeEnum,
			Required: true,
			Options:  []string{"Kolhapur", "Sangli", "Satara"},
		},
		{
			Name:     "nitrogen",
			Type:     form.FieldTypeInteger,
			Required: true,
			Default:  float64(85),
			Validations: []form.ValidationRule{
				{Kind: form.ValidationRuleMin, Params: map[string]string{"value": "0"}},
				{Kind: form.ValidationRuleMax, Params: map[string]string{"value": "200"}},
			},
		},
		{
			Name: "ph",
			Type: form.FieldTypeNumber,
			Validations: []form.ValidationRule{
				{Kind: form.ValidationRuleMin, Params: map[string]string{"value": "0"}},
				{Kind: form.ValidationRuleMax, Params: map[string]string{"value": "14"}},
			},
		},
	}
	if diff := cmp.Diff(want, model.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildModel_OperationWithoutBody(t *testing.T) {
	model, err := contract.BuildModel(context.Background(), []byte(fertilizerContract), "fetchFormOptions")
	if err != nil {
		t.Fatalf("BuildModel() error = %v", err)
	}
	if model.Method != "GET" || model.Endpoint != "/get_form_options" {
		t.Errorf("operation = %s %s, want GET /get_form_options", model.Method, model.Endpoint)
	}
	if len(model.Fields) != 0 {
		t.Errorf("expected no fields, got %d", len(model.Fields))
	}
}

func TestBuildModel_UnknownOperation(t *testing.T) {
	if _, err := contract.BuildModel(context.Background(), []byte(fertilizerContract), "nope"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestBuildModel_EmptyInputs(t *testing.T) {
	if _, err := contract.BuildModel(context.Background(), nil, "predictFertilizer"); err == nil {
		t.Fatal("expected error for empty document")
	}
	if _, err := contract.BuildModel(context.Background(), []byte(fertilizerContract), ""); err == nil {
		t.Fatal("expected error for empty operation id")
	}
}
