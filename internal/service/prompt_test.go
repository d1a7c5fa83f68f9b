package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"recanalysis/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"decisão", 6, "decisã"},
		{"decisão", 7, "decisão"},
		{"decisão", 100, "decisão"},
		{"ação", 0, ""},
		{"", 5, ""},
	}
	for _, tt := range tests {
		got := truncateRunes(tt.in, tt.n)
		assert.Equal(t, tt.want, got)
		assert.True(t, utf8.ValidString(got))
	}
}

func TestPromptBuilder_Build(t *testing.T) {
	b := NewPromptBuilder(5, 10)
	decision := strings.Repeat("é", 20)
	chunks := []models.PolicyChunk{
		{Index: 0, Text: "13.1.3 Anexo I"},
		{Index: 4, Text: "Hipóteses de autodispensa"},
	}

	prompt := b.Build(models.FormTypeAutodispensa, decision, chunks)

	assert.True(t, strings.HasPrefix(prompt, "Você é um assistente jurídico sênior"))
	assert.Contains(t, prompt, "PASSO 1")
	assert.Contains(t, prompt, "R$5.000,00 (Juizados Especiais)")
	assert.Contains(t, prompt, SentinelDoesNotQualify)
	assert.Contains(t, prompt, SentinelNotStated)
	assert.Contains(t, prompt, "13.1.3 Anexo I\n\nHipóteses de autodispensa")
	assert.Contains(t, prompt, "**TIPO DE FORMULÁRIO:** autodispensa")
	assert.Contains(t, prompt, "---\n"+strings.Repeat("é", 10)+"\n---")
	assert.NotContains(t, prompt, strings.Repeat("é", 11))

	// rule block precedes context which precedes the decision
	rules := strings.Index(prompt, "PASSO 3")
	ctx := strings.Index(prompt, "13.1.3 Anexo I\n\n")
	dec := strings.Index(prompt, strings.Repeat("é", 10))
	assert.Less(t, rules, ctx)
	assert.Less(t, ctx, dec)

	assert.Equal(t, strings.Repeat("é", 5), b.RetrievalQuery(decision))
}

func TestNewPromptBuilder_Defaults(t *testing.T) {
	b := NewPromptBuilder(0, -1)
	assert.Equal(t, defaultQueryPrefix, b.queryPrefix)
	assert.Equal(t, defaultDecisionPrefix, b.decisionPrefix)
}
