package ranker

import (
	"math"
	"sort"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
)

// Params controls one ranking pass. TopK <= 0 means the deployment default,
// anything above the cap is clamped. Fields is the caller's opt-in list;
// content is always searched.
type Params struct {
	TopK      int
	Threshold float64
	Fields    []docModel.FieldKind
}

// Rank scores every snapshot row against the query vector and returns the
// surviving results ordered best-first, plus the number of embeddings that
// had to be excluded (dimension mismatch or non-finite values).
//
// A chunk's score is the maximum cosine similarity across its searched
// fields; MatchedFields lists every field that reached that score, in
// priority order. Rows below the threshold are dropped. Bad embeddings are
// skipped, never fatal: one corrupt vector must not take the query down.
func Rank(query []float32, records []docModel.ChunkRecord, params Params) ([]docModel.SearchResult, int) {
	topK := clampTopK(params.TopK)
	fields := searchFields(params.Fields)

	excluded := 0

	type scoredResult struct {
		result     docModel.SearchResult
		chunkIndex int
	}
	var scored []scoredResult

	for _, rec := range records {
		fieldScores := make(map[docModel.FieldKind]float64, len(fields))
		best := math.Inf(-1)

		for _, field := range fields {
			emb, ok := rec.Chunk.Embeddings[field]
			if !ok {
				continue
			}
			if len(emb.Vector) != len(query) || !isFinite(emb.Vector) {
				excluded++
				continue
			}
			score := Cosine(query, emb.Vector)
			fieldScores[field] = score
			if score > best {
				best = score
			}
		}

		if len(fieldScores) == 0 || best < params.Threshold {
			continue
		}

		var matched []docModel.FieldKind
		for _, field := range docModel.FieldPriority {
			if score, ok := fieldScores[field]; ok && score == best {
				matched = append(matched, field)
			}
		}

		scored = append(scored, scoredResult{
			result: docModel.SearchResult{
				ChunkId:       rec.Chunk.Id,
				DocumentId:    rec.DocumentId,
				DocumentName:  rec.DocumentName,
				DocumentPath:  rec.DocumentPath,
				HeaderContext: rec.Chunk.HeaderContext,
				Content:       rec.Chunk.Content,
				Notes:         rec.Chunk.Notes,
				Details:       rec.Chunk.Details,
				Score:         best,
				MatchedFields: matched,
			},
			chunkIndex: rec.Chunk.Index,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].result.Score != scored[j].result.Score {
			return scored[i].result.Score > scored[j].result.Score
		}
		if scored[i].result.DocumentId != scored[j].result.DocumentId {
			return scored[i].result.DocumentId < scored[j].result.DocumentId
		}
		return scored[i].chunkIndex < scored[j].chunkIndex
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]docModel.SearchResult, len(scored))
	for i, s := range scored {
		results[i] = s.result
	}
	return results, excluded
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Mismatched
// lengths and zero-magnitude vectors yield 0 rather than NaN.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return config.DefaultTopK
	}
	if topK > config.MaxTopK {
		return config.MaxTopK
	}
	return topK
}

// searchFields folds the caller's opt-ins onto the always-searched content
// field, deduplicated and ordered by priority.
func searchFields(requested []docModel.FieldKind) []docModel.FieldKind {
	want := map[docModel.FieldKind]bool{docModel.FieldContent: true}
	for _, field := range requested {
		if docModel.IsValidField(field) {
			want[field] = true
		}
	}

	fields := make([]docModel.FieldKind, 0, len(want))
	for _, field := range docModel.FieldPriority {
		if want[field] {
			fields = append(fields, field)
		}
	}
	return fields
}

func isFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
