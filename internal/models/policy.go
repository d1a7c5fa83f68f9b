package models

// PolicyChunk is a contiguous span of the policy reference document.
type PolicyChunk struct {
	Index int
	Text  string
	Score float32
}
