// Package contract turns an embedded OpenAPI description of an advisory
// backend into the form model the workflow runs against. Each backend ships
// its contract with the component that talks to it; fields, required flags,
// enums, and numeric bounds all come from the document.
package contract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-advisory/pkg/form"
)

// BuildModel parses an OpenAPI document and converts the named operation's
// JSON request schema into a form model.
func BuildModel(ctx context.Context, specData []byte, operationID string) (form.Model, error) {
	if ctx == nil {
		return form.Model{}, errors.New("contract: context is required")
	}
	if len(specData) == 0 {
		return form.Model{}, errors.New("contract: document payload is empty")
	}
	if operationID == "" {
		return form.Model{}, errors.New("contract: operation id is required")
	}

	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(specData)
	if err != nil {
		return form.Model{}, fmt.Errorf("contract: load document: %w", err)
	}
	if spec.Paths == nil || spec.Paths.Len() == 0 {
		return form.Model{}, errors.New("contract: document does not contain any paths")
	}

	method, path, operation := findOperation(spec, operationID)
	if operation == nil {
		return form.Model{}, fmt.Errorf("contract: operation %q not found", operationID)
	}

	model := form.Model{
		OperationID: operationID,
		Endpoint:    path,
		Method:      method,
		Summary:     operation.Summary,
		Description: operation.Description,
	}

	schema := requestSchema(operation)
	if schema == nil {
		return model, nil
	}

	required := make(map[string]struct{}, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = struct{}{}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		field, err := buildField(name, ref.Value)
		if err != nil {
			return form.Model{}, err
		}
		if _, ok := required[name]; ok {
			field.Required = true
		}
		model.Fields = append(model.Fields, field)
	}

	return model, nil
}

func findOperation(spec *openapi3.T, operationID string) (string, string, *openapi3.Operation) {
	for path, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for method, operation := range map[string]*openapi3.Operation{
			"GET":  item.Get,
			"POST": item.Post,
			"PUT":  item.Put,
		} {
			if operation != nil && operation.OperationID == operationID {
				return method, path, operation
			}
		}
	}
	return "", "", nil
}

func requestSchema(operation *openapi3.Operation) *openapi3.Schema {
	if operation.RequestBody == nil || operation.RequestBody.Value == nil {
		return nil
	}
	mt, ok := operation.RequestBody.Value.Content["application/json"]
	if !ok || mt.Schema == nil {
		return nil
	}
	return mt.Schema.Value
}

func buildField(name string, schema *openapi3.Schema) (form.Field, error) {
	field := form.Field{
		Name:        name,
		Description: schema.Description,
		Default:     schema.Default,
	}

	switch schemaType(schema) {
	case "string":
		field.Type = form.FieldTypeString
	case "integer":
		field.Type = form.FieldTypeInteger
	case "number":
		field.Type = form.FieldTypeNumber
	case "":
		field.Type = form.FieldTypeString
	default:
		return form.Field{}, fmt.Errorf("contract: field %q has unsupported type %q", name, schemaType(schema))
	}

	if len(schema.Enum) > 0 {
		field.Type = form.FieldTypeEnum
		for _, value := range schema.Enum {
			if s, ok := value.(string); ok {
				field.Options = append(field.Options, s)
			} else {
				field.Options = append(field.Options, fmt.Sprint(value))
			}
		}
	}

	if schema.Min != nil {
		field.Validations = append(field.Validations, form.ValidationRule{
			Kind:   form.ValidationRuleMin,
			Params: map[string]string{"value": formatBound(*schema.Min)},
		})
	}
	if schema.Max != nil {
		field.Validations = append(field.Validations, form.ValidationRule{
			Kind:   form.ValidationRuleMax,
			Params: map[string]string{"value": formatBound(*schema.Max)},
		})
	}

	return field, nil
}

func schemaType(schema *openapi3.Schema) string {
	if schema.Type == nil {
		return ""
	}
	values := schema.Type.Slice()
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, ",")
}

func formatBound(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
