package service

import (
	"strings"

	"recanalysis/internal/models"
)

// Sentinels the generation backend is instructed to emit verbatim.
const (
	SentinelNotStated      = "Não consta na decisão"
	SentinelDoesNotQualify = "AVISO: A situação fática não se enquadra em nenhuma hipótese de autodispensa prevista no Anexo I da Política Recursal."
	sentinelWarningPrefix  = "AVISO:"
	citationPrefix         = "Conforme"
)

const (
	defaultQueryPrefix    = 2000
	defaultDecisionPrefix = 14000
)

// rulePolicy encodes the ordered rule-priority policy. The backend must stop at
// the first step that applies.
const rulePolicy = `Você é um assistente jurídico sênior, especialista na Política Recursal da instituição. Sua tarefa é preencher um formulário com precisão absoluta, seguindo um conjunto de regras não negociáveis.

**ORDEM DE ANÁLISE OBRIGATÓRIA:**
Você deve seguir os seguintes passos na ordem exata. Pare no primeiro passo que se aplicar.

**PASSO 1: VERIFICAÇÃO DE EXCEÇÕES ABSOLUTAS (Prioridade Máxima)**
* **Regra:** Verifique se a matéria da decisão se enquadra em alguma das exceções (PASEP, FIES, MCMV, Cédula Rural, Superendividamento, matérias residuais).
* **Ação:** Se for uma exceção e o formulário for de 'autodispensa', preencha o campo 'fundamento_autodispensa' com: **"AVISO: VEDAÇÃO ABSOLUTA. A matéria ([nome da matéria]) não permite autodispensa."** e finalize a análise de fundamentação.

**PASSO 2: ANÁLISE DA HIPÓTESE DE VALOR (Cenário Principal para Autodispensa)**
* **Regra:** Se o formulário for de 'autodispensa' e o PASSO 1 não se aplicar, verifique se a **condenação patrimonial total** (excluindo juros e correção monetária) é inferior aos limites estabelecidos no "Anexo I – Hipóteses de Autodispensa Obrigatória".
* **Ação:** Se o valor for inferior a R$5.000,00 (Juizados Especiais) ou R$10.000,00 (Justiça Comum), sua fundamentação no campo 'fundamento_autodispensa' DEVE ser: **"Conforme 13.1.3 Anexo I, inciso [I ou II], a condenação total de R$ [valor extraído] é inferior ao limite para a presente ação, sendo a autodispensa obrigatória."**

**PASSO 3: ANÁLISE DAS DEMAIS HIPÓTESES (Apenas se os passos 1 e 2 não se aplicarem)**
* **Regra da Hipótese Única:** Selecione **apenas UMA** outra hipótese do "Anexo I" que se aplique perfeitamente ao caso. Todas as justificativas para autodispensa devem, obrigatoriamente, originar-se deste anexo.
* **Regra da Fundamentação Direta:** Se encontrar uma hipótese, inicie a fundamentação com a citação do item (ex: "Conforme 13.1.3 Anexo I, alínea 'x'...") e explique o enquadramento.
* **Regra da Não-Conformação:** Se nenhuma hipótese do Anexo I se aplicar, retorne a frase exata: **"` + SentinelDoesNotQualify + `"**

**REGRAS GERAIS ADICIONAIS:**
* **Dados Ausentes:** Se uma informação factual não estiver na decisão, preencha o campo com **"` + SentinelNotStated + `"**. NÃO INVENTE DADOS.`

// PromptBuilder assembles the generation prompt from the rule policy, the
// retrieved policy context and a bounded prefix of the decision.
type PromptBuilder struct {
	queryPrefix    int
	decisionPrefix int
}

func NewPromptBuilder(queryPrefix, decisionPrefix int) *PromptBuilder {
	if queryPrefix <= 0 {
		queryPrefix = defaultQueryPrefix
	}
	if decisionPrefix <= 0 {
		decisionPrefix = defaultDecisionPrefix
	}
	return &PromptBuilder{queryPrefix: queryPrefix, decisionPrefix: decisionPrefix}
}

// RetrievalQuery is the prefix of the decision used to search the policy index.
func (b *PromptBuilder) RetrievalQuery(decision string) string {
	return truncateRunes(decision, b.queryPrefix)
}

func (b *PromptBuilder) Build(formType models.FormType, decision string, chunks []models.PolicyChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var sb strings.Builder
	sb.WriteString(rulePolicy)
	sb.WriteString("\n\n**TIPO DE FORMULÁRIO:** ")
	sb.WriteString(string(formType))
	sb.WriteString("\n\n**DOCUMENTOS PARA ANÁLISE:**\n\n")
	sb.WriteString("**1. CONTEXTO DA POLÍTICA RECURSAL (Fonte da Verdade para Fundamentação):**\n---\n")
	sb.WriteString(strings.Join(texts, "\n\n"))
	sb.WriteString("\n---\n\n**2. DECISÃO JUDICIAL (Fonte dos Fatos):**\n---\n")
	sb.WriteString(truncateRunes(decision, b.decisionPrefix))
	sb.WriteString("\n---\n\n**TAREFA FINAL:**\n")
	sb.WriteString("Seguindo rigorosamente a ORDEM DE ANÁLISE OBRIGATÓRIA, analise os documentos e preencha o esquema JSON a seguir.")
	return sb.String()
}

// truncateRunes returns at most n runes of s without splitting a code point.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
