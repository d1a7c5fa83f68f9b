package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSet_Canonical(t *testing.T) {
	tests := []struct {
		name   string
		fields FieldSet
		want   string
	}{
		{"sorted keys", FieldSet{"b": "2", "a": "ação"}, `{"a":"ação","b":"2"}`},
		{"nil", nil, `{}`},
		{"empty", FieldSet{}, `{}`},
		{"no html escaping", FieldSet{"x": "<R$ & cia>"}, `{"x":"<R$ & cia>"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.fields.Canonical()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestParseFormType(t *testing.T) {
	ft, err := ParseFormType("autorizacao")
	require.NoError(t, err)
	assert.Equal(t, FormTypeAutorizacao, ft)

	_, err = ParseFormType("recurso")
	assert.Error(t, err)
}
