// Package docs registers the API description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/analysis": {
            "post": {
                "description": "Upload a decision PDF and the target form type. Extraction runs in the background.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Submit a judicial decision for analysis",
                "parameters": [
                    {"type": "file", "description": "Decision PDF", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Form type: dispensa, autodispensa or autorizacao", "name": "form_type", "in": "formData", "required": true}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.SubmitAnalysisResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/analysis/{id}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Cancel an analysis job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.AnalysisStatusResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/analysis/{id}/status": {
            "get": {
                "description": "Returns the job status and, once ready, the extracted field-set",
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Get analysis job status",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.AnalysisStatusResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/generate": {
            "post": {
                "description": "Records the human corrections as feedback and renders DOCX and PDF documents",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["generation"],
                "summary": "Generate the final documents",
                "parameters": [
                    {"description": "Edited field-set", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.GenerateDocumentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.GenerateDocumentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/training-data": {
            "get": {
                "description": "JSONL with one {\"input\", \"output\"} example per feedback record",
                "produces": ["application/jsonl"],
                "tags": ["training"],
                "summary": "Download the fine-tuning dataset",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.AnalysisStatusResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "object", "additionalProperties": true},
                "job_id": {"type": "string"},
                "status": {"type": "string"},
                "warnings": {"type": "array", "items": {"type": "string"}}
            }
        },
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "dto.GenerateDocumentRequest": {
            "type": "object",
            "properties": {
                "form_data": {"type": "object", "additionalProperties": {"type": "string"}},
                "job_id": {"type": "string"},
                "original_data": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "dto.GenerateDocumentResponse": {
            "type": "object",
            "properties": {
                "docx_url": {"type": "string"},
                "feedback": {"type": "string"},
                "message": {"type": "string"},
                "pdf_url": {"type": "string"}
            }
        },
        "dto.SubmitAnalysisResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.7",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "recANALYSIS API",
	Description:      "Extração assistida de decisões judiciais para formulários de dispensa e autorização recursal",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
