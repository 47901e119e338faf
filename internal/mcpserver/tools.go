package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raggio-engine/raggio/internal/rag"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string   `json:"query" jsonschema:"the query to match against the indexed chunks"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of results to return (default 10, max 50)"`
	Threshold *float64 `json:"similarity_threshold,omitempty" jsonschema:"minimum cosine similarity a match has to clear (default 0.5)"`
	Fields    []string `json:"fields,omitempty" jsonschema:"chunk fields to match: content, header_context, notes, details"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results         []SearchResultOutput `json:"results"`
	Count           int                  `json:"count"`
	ServedFromCache bool                 `json:"served_from_cache"`
}

// SearchResultOutput represents a single ranked chunk.
type SearchResultOutput struct {
	ChunkId       string   `json:"chunk_id"`
	DocumentId    string   `json:"document_id"`
	DocumentName  string   `json:"document_name"`
	HeaderContext string   `json:"header_context,omitempty"`
	Content       string   `json:"content"`
	Notes         string   `json:"notes,omitempty"`
	Score         float64  `json:"score"`
	MatchedFields []string `json:"matched_fields"`
}

// AnswerInput is the input schema for the answer tool.
type AnswerInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"how many passages to ground the answer on (default 10)"`
}

// AnswerOutput is the output schema for the answer tool.
type AnswerOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the indexed documents by semantic similarity",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "answer",
		Description: "Answer a question using only passages retrieved from the indexed documents",
	}, s.handleAnswer)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	out, err := s.rag.Search(ctx, rag.SearchQuery{
		Query:     input.Query,
		TopK:      input.TopK,
		Threshold: input.Threshold,
		Fields:    input.Fields,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:         make([]SearchResultOutput, len(out.Results)),
		Count:           len(out.Results),
		ServedFromCache: out.ServedFromCache,
	}

	for i := range out.Results {
		matched := make([]string, 0, len(out.Results[i].MatchedFields))
		for _, field := range out.Results[i].MatchedFields {
			matched = append(matched, string(field))
		}
		output.Results[i] = SearchResultOutput{
			ChunkId:       out.Results[i].ChunkId,
			DocumentId:    out.Results[i].DocumentId,
			DocumentName:  out.Results[i].DocumentName,
			HeaderContext: out.Results[i].HeaderContext,
			Content:       out.Results[i].Content,
			Notes:         out.Results[i].Notes,
			Score:         out.Results[i].Score,
			MatchedFields: matched,
		}
	}

	return nil, output, nil
}

// handleAnswer handles the answer tool invocation.
func (s *Server) handleAnswer(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	out, err := s.rag.Answer(ctx, rag.SearchQuery{
		Query: input.Question,
		TopK:  input.TopK,
	})
	if err != nil {
		return nil, AnswerOutput{}, err
	}

	seen := make(map[string]bool)
	sources := make([]string, 0, len(out.Results))
	for _, result := range out.Results {
		if seen[result.DocumentId] {
			continue
		}
		seen[result.DocumentId] = true
		sources = append(sources, result.DocumentName)
	}

	return nil, AnswerOutput{Answer: out.Answer, Sources: sources}, nil
}
