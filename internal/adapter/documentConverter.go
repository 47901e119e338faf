package adapter

import (
	"fmt"
	"net/http"

	"github.com/raggio-engine/raggio/internal/api"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/rag"
)

func ToInitDocumentResponse(id string) api.InitDocumentResponse {
	return api.InitDocumentResponse{
		DocumentId: id,
		StatusURL:  fmt.Sprintf("documents/%s", id), //pass "documents/doc.Id"
	}
}

func ToDocumentResponse(doc docModel.Document, chunkCount int) api.DocumentResponse {
	return api.DocumentResponse{
		Id:            doc.Id,
		Name:          doc.Name,
		Status:        string(doc.Status),
		ChunkCount:    chunkCount,
		FailureReason: doc.Error,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func ToDocumentListResponse(documents []api.DocumentResponse) api.DocumentListResponse {
	return api.DocumentListResponse{
		Documents: documents,
		Count:     len(documents),
	}
}

func ToSearchResultResponse(result docModel.SearchResult) api.SearchResultResponse {
	matched := make([]string, 0, len(result.MatchedFields))
	for _, field := range result.MatchedFields {
		matched = append(matched, string(field))
	}

	return api.SearchResultResponse{
		ChunkId:       result.ChunkId,
		DocumentId:    result.DocumentId,
		DocumentName:  result.DocumentName,
		HeaderContext: result.HeaderContext,
		Content:       result.Content,
		Notes:         result.Notes,
		Details:       result.Details,
		Score:         result.Score,
		MatchedFields: matched,
	}
}

func ToSearchResponse(query string, out rag.SearchOutput) api.SearchResponse {
	results := make([]api.SearchResultResponse, 0, len(out.Results))
	for _, result := range out.Results {
		results = append(results, ToSearchResultResponse(result))
	}

	return api.SearchResponse{
		Query:           query,
		Results:         results,
		ServedFromCache: out.ServedFromCache,
	}
}

func ToAnswerResponse(question string, out rag.AnswerOutput) api.AnswerResponse {
	// sources keep rank order, one entry per document
	seen := make(map[string]bool)
	sources := make([]string, 0, len(out.Results))
	for _, result := range out.Results {
		if seen[result.DocumentId] {
			continue
		}
		seen[result.DocumentId] = true
		sources = append(sources, result.DocumentName)
	}

	return api.AnswerResponse{
		Question:        question,
		Answer:          out.Answer,
		Sources:         sources,
		ServedFromCache: out.ServedFromCache,
	}
}

func ToChunkResponse(chunk docModel.Chunk) api.ChunkResponse {
	return api.ChunkResponse{
		Id:            chunk.Id,
		DocumentId:    chunk.DocumentId,
		Index:         chunk.Index,
		Content:       chunk.Content,
		HeaderContext: chunk.HeaderContext,
		Notes:         chunk.Notes,
		Details:       chunk.Details,
		UpdatedAt:     chunk.UpdatedAt,
	}
}

func BadRequest(id string, error string, code int) api.ErrorResponse {
	retry := code == http.StatusServiceUnavailable || code == http.StatusTooManyRequests

	return api.ErrorResponse{
		Id:     id,
		Status: string(api.RequestStatusError),
		Error: &api.OutgoingError{
			Code:    code,
			Message: error,
			Retry:   retry,
		},
	}
}
