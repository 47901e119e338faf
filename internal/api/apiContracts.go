package api

import "time"

type RequestExternalStatus string

const (
	RequestStatusError RequestExternalStatus = "Error"
)

type DocumentResponse struct {
	Id            string    `json:"id" example:"0b7ff394-87d3-4f23-a177-2a4b9d4e3f11"`
	Name          string    `json:"name" example:"manuale-officina.pdf"`
	Status        string    `json:"status" example:"COMPLETED"`
	ChunkCount    int       `json:"chunk_count" example:"12"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Count     int                `json:"count" example:"3"`
}

type InitDocumentResponse struct {
	DocumentId string `json:"document_id"`
	StatusURL  string `json:"status_url"`
}

type SearchResultResponse struct {
	ChunkId       string         `json:"chunk_id"`
	DocumentId    string         `json:"document_id"`
	DocumentName  string         `json:"document_name" example:"manuale-officina.pdf"`
	HeaderContext string         `json:"header_context,omitempty" example:"Installazione"`
	Content       string         `json:"content"`
	Notes         string         `json:"notes,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Score         float64        `json:"score" example:"0.8731"`
	MatchedFields []string       `json:"matched_fields"`
}

type SearchResponse struct {
	Query           string                 `json:"query"`
	Results         []SearchResultResponse `json:"results"`
	ServedFromCache bool                   `json:"served_from_cache" example:"false"`
}

type AnswerResponse struct {
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	Sources         []string `json:"sources"`
	ServedFromCache bool     `json:"served_from_cache" example:"false"`
}

type ChunkResponse struct {
	Id            string         `json:"id"`
	DocumentId    string         `json:"document_id"`
	Index         int            `json:"index" example:"3"`
	Content       string         `json:"content"`
	HeaderContext string         `json:"header_context,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type OutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Document not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type ErrorResponse struct {
	Id     string         `json:"id,omitempty"`
	Status string         `json:"status" example:"Error"`
	Error  *OutgoingError `json:"error"`
}

// requests---------------------

type SearchRequest struct {
	Query     string   `json:"query" validate:"required" example:"quali sono i requisiti minimi"`
	TopK      int      `json:"top_k,omitempty" example:"10"`
	Threshold *float64 `json:"similarity_threshold,omitempty" example:"0.5"`
	Fields    []string `json:"fields,omitempty"`
}

type AnswerRequest struct {
	Question  string   `json:"question" validate:"required" example:"come si installa il modulo"`
	TopK      int      `json:"top_k,omitempty" example:"5"`
	Threshold *float64 `json:"similarity_threshold,omitempty"`
	Fields    []string `json:"fields,omitempty"`
}

type IngestTextRequest struct {
	Name string `json:"name" validate:"required" example:"note-rilascio"`
	Path string `json:"path,omitempty" example:"docs/note-rilascio.md"`
	Text string `json:"text" validate:"required"`
}

type AnnotateChunkRequest struct {
	Notes   *string         `json:"notes,omitempty"`
	Details *map[string]any `json:"details,omitempty"`
}
