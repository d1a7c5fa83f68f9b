package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusReady      JobStatus = "ready"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusReady || s == JobStatusFailed
}

type JobErrorKind string

const (
	JobErrorEmptyDocument   JobErrorKind = "empty_document"
	JobErrorBackend         JobErrorKind = "backend"
	JobErrorTimeout         JobErrorKind = "timeout"
	JobErrorSchemaViolation JobErrorKind = "schema_violation"
	JobErrorIndex           JobErrorKind = "index"
	JobErrorCancelled       JobErrorKind = "cancelled"
	JobErrorInternal        JobErrorKind = "internal"
)

type JobError struct {
	Kind    JobErrorKind `json:"kind"`
	Message string       `json:"error"`
}

// Job is an analysis job. Data is set only when Status is ready and Error only
// when Status is failed.
type Job struct {
	ID          uuid.UUID
	Status      JobStatus
	FormType    FormType
	Data        FieldSet
	Error       *JobError
	Warnings    []string
	RAGContext  string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Clone returns a deep copy safe to hand out to concurrent readers.
func (j *Job) Clone() Job {
	c := *j
	c.Data = j.Data.Clone()
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.Warnings != nil {
		c.Warnings = append([]string(nil), j.Warnings...)
	}
	return c
}
