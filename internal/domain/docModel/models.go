package docModel

import (
	"encoding/json"
	"time"
)

type DocumentStatus string
type FieldKind string

const (
	DocumentStatusPending    DocumentStatus = "PENDING"
	DocumentStatusProcessing DocumentStatus = "PROCESSING"
	DocumentStatusCompleted  DocumentStatus = "COMPLETED"
	DocumentStatusFailed     DocumentStatus = "FAILED"

	FieldContent       FieldKind = "content"
	FieldHeaderContext FieldKind = "header_context"
	FieldNotes         FieldKind = "notes"
	FieldDetails       FieldKind = "details"
)

// FieldPriority is the tie-break order for ranking and the listing order
// for matched fields.
var FieldPriority = []FieldKind{FieldContent, FieldHeaderContext, FieldNotes, FieldDetails}

func IsValidField(kind FieldKind) bool {
	for _, f := range FieldPriority {
		if f == kind {
			return true
		}
	}
	return false
}

type Document struct {
	Id         string         `json:"document_id"`
	Name       string         `json:"document_name"`
	SourcePath string         `json:"source_path,omitempty"`
	RawText    string         `json:"raw_text,omitempty"`
	Status     DocumentStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type Chunk struct {
	Id            string                       `json:"chunk_id"`
	DocumentId    string                       `json:"document_id"`
	Index         int                          `json:"chunk_index"`
	Content       string                       `json:"content"`
	HeaderContext string                       `json:"header_context,omitempty"`
	Notes         string                       `json:"notes,omitempty"`
	Details       map[string]any               `json:"details,omitempty"`
	Embeddings    map[FieldKind]FieldEmbedding `json:"embeddings,omitempty"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// FieldText returns the embeddable text of a chunk field, "" when the field
// is unset. Details are embedded as their compact JSON encoding.
func (c Chunk) FieldText(kind FieldKind) string {
	switch kind {
	case FieldContent:
		return c.Content
	case FieldHeaderContext:
		return c.HeaderContext
	case FieldNotes:
		return c.Notes
	case FieldDetails:
		if len(c.Details) == 0 {
			return ""
		}
		encoded, err := json.Marshal(c.Details)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
	return ""
}

type FieldEmbedding struct {
	Vector    []float32 `json:"vector"`
	ModelId   string    `json:"model_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IngestTask is one unit of background work. Exactly one of FilePath or
// Inline raw text is the source; an inline empty text is legal and produces
// a completed document with zero chunks.
type IngestTask struct {
	DocumentId string `json:"document_id"`
	TraceId    string `json:"trace_id"`
	FilePath   string `json:"file_path,omitempty"`
	RawText    string `json:"raw_text,omitempty"`
	Inline     bool   `json:"inline"`
}

// ChunkRecord is one flattened row of the ranking snapshot.
type ChunkRecord struct {
	DocumentId   string
	DocumentName string
	DocumentPath string
	Chunk        Chunk
}

// SearchResult is ephemeral: assembled per query, returned, never stored
// outside the semantic cache.
type SearchResult struct {
	ChunkId       string         `json:"chunk_id"`
	DocumentId    string         `json:"document_id"`
	DocumentName  string         `json:"document_name"`
	DocumentPath  string         `json:"document_path,omitempty"`
	HeaderContext string         `json:"header_context,omitempty"`
	Content       string         `json:"content"`
	Notes         string         `json:"notes,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Score         float64        `json:"score"`
	MatchedFields []FieldKind    `json:"matched_fields"`
}
