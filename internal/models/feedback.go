package models

import "time"

// FeedbackRecord pairs what was extracted with what a human finalized.
type FeedbackRecord struct {
	ID                int64     `db:"id"`
	Timestamp         time.Time `db:"timestamp"`
	FormType          FormType  `db:"form_type"`
	RAGContext        string    `db:"rag_context"`
	OriginalResponse  FieldSet  `db:"original_response"`
	CorrectedResponse FieldSet  `db:"corrected_response"`
}
