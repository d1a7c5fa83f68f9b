package service

import "recanalysis/internal/models"

const (
	yesNo = "Responder 'Sim' ou 'Não'."

	FieldFundamentacaoDispensa    = "fundamentacao_dispensa"
	FieldFundamentacaoAutorizacao = "fundamentacao_autorizacao"
	FieldFundamentoAutodispensa   = "fundamento_autodispensa"
)

func str(name, description string) models.FieldSpec {
	return models.FieldSpec{Name: name, Type: "STRING", Description: description}
}

var commonFields = []models.FieldSpec{
	str("data_publicacao", ""),
	str("prazo_fatal", ""),
	str("npj", ""),
	str("contrato_lide", ""),
	str("operacao_numero", ""),
	str("data_vencimento_operacao", ""),
	str("autor_es", ""),
	str("reu_s", ""),
	str("tipo_acao", ""),
	str("numero_processo", ""),
	str("orgao_tramitacao", ""),
	str("valor_causa", ""),
	str("valor_pretendido", ""),
	str("valor_condenacao", ""),
	str("descricao_sucinta", "Relatório detalhado dos fatos, pedido, decisões, cumprimento de obrigação de fazer, etc."),
	str("liminar_deferida", yesNo),
	str("liminar_cumprida", yesNo),
	str("cominacao_multa", yesNo),
	str("multa_valor_diario", ""),
	str("multa_limite", ""),
	str("litispendencia_coisa_julgada", yesNo),
	str("documentos_anexados_check", yesNo),
	str("escritorio_advogado_contato", "Nome do Escritório, UF, Advogado, OAB, e-mail e telefone."),
}

var autodispensaFields = []models.FieldSpec{
	str("recurso_objeto", "Tipo de recurso objeto da autodispensa."),
	str("decisao_objeto_autodispensa", "Especificar a decisão e o número de rastreamento."),
	str("materias_discutidas", "Teses jurídicas discutidas no processo."),
	str(FieldFundamentoAutodispensa, "Apontar o item exato do Manual/Política que justifica a autodispensa."),
	str("andamento_registrado", "Código do andamento (ex: 677 ou 703)."),
	str("fundamentacao_relatorio", "Breve relato com pleitos da inicial e teor das decisões."),
	str("parecer_fundamentado_autodispensa", "Parecer jurídico elaborado que ampara a autodispensa, enquadrando o caso no item do Manual."),
}

var recursoFields = []models.FieldSpec{
	str("tipo_recurso", "Tipo de recurso objeto da dispensa/autorização."),
	str("solicitado_subsidio", yesNo),
	str("subsidio_atendido", yesNo),
	str("subsidio_descricao", ""),
	str("subsidio_rastreamento", ""),
	str("subsidio_utilizado_defesa", yesNo),
	str("subsidio_nao_utilizado_justificativa", ""),
	str("teses_defesa", "Teses jurídicas abordadas na defesa."),
	str("precedente_materia_julgados", "Responder 'Não' ou 'Sim, julgado Nº XXXXX, de DD/MM/AA'."),
	str("obrigacao_fazer_cumprida_descricao", "Responder 'Sim' ou 'Não' e incluir a descrição detalhada da obrigação."),
	str("valor_custas_recursais", ""),
}

var (
	fundamentacaoDispensa = str(FieldFundamentacaoDispensa,
		"Citar as circunstâncias peculiares da demanda que não recomendam a interposição do recurso.")
	fundamentacaoAutorizacao = str(FieldFundamentacaoAutorizacao,
		"Expor os motivos para interpor o recurso, especialmente se for matéria de autodispensa, e demonstrar prequestionamento e repercussão geral se aplicável.")
)

// FormFieldsForSchema composes the extraction schema of a form type: the common
// fields, then the type specific ones, then exactly one of the two mutually
// exclusive fundamentação fields for dispensa/autorizacao. Unknown form types
// yield an empty schema.
func FormFieldsForSchema(formType models.FormType) *models.ExtractionSchema {
	schema := &models.ExtractionSchema{FormType: formType}

	switch formType {
	case models.FormTypeAutodispensa:
		schema.Fields = concatFields(commonFields, autodispensaFields)
	case models.FormTypeDispensa:
		schema.Fields = concatFields(commonFields, recursoFields, []models.FieldSpec{fundamentacaoDispensa})
	case models.FormTypeAutorizacao:
		schema.Fields = concatFields(commonFields, recursoFields, []models.FieldSpec{fundamentacaoAutorizacao})
	}

	return schema
}

func concatFields(groups ...[]models.FieldSpec) []models.FieldSpec {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]models.FieldSpec, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// ResponseSchema renders the schema in the generation backend's OBJECT/STRING
// dialect, with every field required.
func ResponseSchema(schema *models.ExtractionSchema) map[string]any {
	props := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		p := map[string]any{"type": f.Type}
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Name] = p
	}
	return map[string]any{
		"type":       "OBJECT",
		"properties": props,
		"required":   schema.FieldNames(),
	}
}

// JSONSchema renders the schema as a JSON-Schema document for local validation.
func JSONSchema(schema *models.ExtractionSchema) map[string]any {
	props := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		props[f.Name] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             schema.FieldNames(),
		"additionalProperties": false,
	}
}
