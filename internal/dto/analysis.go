package dto

type SubmitAnalysisResponse struct {
	JobID string `json:"job_id"`
}

// AnalysisStatusResponse carries the extracted field-set when the job is
// ready and {"error", "kind"} when it failed.
type AnalysisStatusResponse struct {
	JobID    string         `json:"job_id"`
	Status   string         `json:"status"`
	Data     map[string]any `json:"data"`
	Warnings []string       `json:"warnings,omitempty"`
}

type GenerateDocumentRequest struct {
	JobID        string            `json:"job_id"`
	FormData     map[string]string `json:"form_data"`
	OriginalData map[string]string `json:"original_data,omitempty"`
}

type GenerateDocumentResponse struct {
	Message  string `json:"message"`
	DocxURL  string `json:"docx_url"`
	PdfURL   string `json:"pdf_url"`
	Feedback string `json:"feedback"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
