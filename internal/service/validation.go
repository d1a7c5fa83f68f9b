package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"recanalysis/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OutputValidator turns raw backend output into a field-set that has exactly
// the schema's keys, all strings. Soft rule violations become warnings.
type OutputValidator struct {
	mu       sync.Mutex
	compiled map[models.FormType]*jsonschema.Schema
}

func NewOutputValidator() *OutputValidator {
	return &OutputValidator{compiled: make(map[models.FormType]*jsonschema.Schema)}
}

func (v *OutputValidator) Validate(raw string, schema *models.ExtractionSchema) (models.FieldSet, []string, error) {
	var decoded any
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, nil, &SchemaViolationError{Reason: "response is not valid JSON", Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, nil, &SchemaViolationError{Reason: "trailing data after JSON object", Err: err}
	}
	object, ok := decoded.(map[string]any)
	if !ok {
		return nil, nil, &SchemaViolationError{Reason: fmt.Sprintf("response is a JSON %s, not an object", jsonKind(decoded))}
	}

	var warnings []string
	fields := make(models.FieldSet, len(schema.Fields))

	for _, f := range schema.Fields {
		value, present := object[f.Name]
		if !present || value == nil {
			fields[f.Name] = SentinelNotStated
			warnings = append(warnings, fmt.Sprintf("field %q missing from response; set to %q", f.Name, SentinelNotStated))
			continue
		}

		s, coerced := coerceString(value, f)
		if coerced {
			warnings = append(warnings, fmt.Sprintf("field %q was a JSON %s; converted to string", f.Name, jsonKind(value)))
		}
		fields[f.Name] = s
	}

	var extra []string
	for key := range object {
		if !schema.Has(key) {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		warnings = append(warnings, fmt.Sprintf("dropped fields not in schema: %s", strings.Join(extra, ", ")))
	}

	compiled, err := v.schemaFor(schema)
	if err != nil {
		return nil, nil, err
	}
	instance := make(map[string]interface{}, len(fields))
	for k, s := range fields {
		instance[k] = s
	}
	if err := compiled.Validate(instance); err != nil {
		return nil, nil, &SchemaViolationError{Reason: "field-set does not match schema", Err: err}
	}

	warnings = append(warnings, formatWarnings(fields, schema)...)
	return fields, warnings, nil
}

func (v *OutputValidator) schemaFor(schema *models.ExtractionSchema) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[schema.FormType]; ok {
		return s, nil
	}

	doc, err := json.Marshal(JSONSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	url := fmt.Sprintf("mem://recanalysis/%s.json", schema.FormType)

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	v.compiled[schema.FormType] = s
	return s, nil
}

// coerceString renders a JSON value as a field value. Booleans on yes/no
// fields become Sim/Não. The second result reports a non-string input.
func coerceString(value any, f models.FieldSpec) (string, bool) {
	switch t := value.(type) {
	case string:
		return strings.TrimSpace(t), false
	case bool:
		if f.Description == yesNo {
			if t {
				return "Sim", true
			}
			return "Não", true
		}
		if t {
			return "true", true
		}
		return "false", true
	case json.Number:
		return t.String(), true
	default:
		b, _ := json.Marshal(t)
		return string(b), true
	}
}

func formatWarnings(fields models.FieldSet, schema *models.ExtractionSchema) []string {
	var warnings []string
	for _, f := range schema.Fields {
		value := fields[f.Name]
		if value == SentinelNotStated {
			continue
		}

		if f.Description == yesNo && value != "Sim" && value != "Não" {
			warnings = append(warnings, fmt.Sprintf("field %q should be 'Sim' or 'Não', got %q", f.Name, truncateRunes(value, 60)))
		}

		if f.Name == FieldFundamentoAutodispensa &&
			!strings.HasPrefix(value, sentinelWarningPrefix) &&
			!strings.HasPrefix(value, citationPrefix) {
			warnings = append(warnings, fmt.Sprintf("field %q should cite Anexo I ('Conforme ...') or carry an 'AVISO:' notice", f.Name))
		}
	}
	return warnings
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
