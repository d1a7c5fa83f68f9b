package models

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

type FormType string

const (
	FormTypeDispensa     FormType = "dispensa"
	FormTypeAutodispensa FormType = "autodispensa"
	FormTypeAutorizacao  FormType = "autorizacao"
)

// SupportedFormTypes lists the form types with an extraction schema and a template.
var SupportedFormTypes = []FormType{FormTypeDispensa, FormTypeAutodispensa, FormTypeAutorizacao}

func ParseFormType(s string) (FormType, error) {
	for _, ft := range SupportedFormTypes {
		if string(ft) == s {
			return ft, nil
		}
	}
	return "", fmt.Errorf("unknown form type %q", s)
}

// FieldSet maps a form field name to its extracted or edited value.
type FieldSet map[string]string

// Canonical encodes the field-set as RFC 8785 canonical JSON. A nil set
// encodes as {}.
func (f FieldSet) Canonical() ([]byte, error) {
	if f == nil {
		f = FieldSet{}
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

func (f FieldSet) Clone() FieldSet {
	if f == nil {
		return nil
	}
	c := make(FieldSet, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}

type FieldSpec struct {
	Name        string
	Type        string
	Description string
}

// ExtractionSchema is the ordered field list requested from the generation backend.
type ExtractionSchema struct {
	FormType FormType
	Fields   []FieldSpec
}

func (s *ExtractionSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

func (s *ExtractionSchema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
