package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/data/store"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/rag"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/internal/rag/semcache"
)

const italianGuide = `# Guida

## Requisiti di Sistema

Serve una CPU a 64 bit e 4GB di RAM.

## Installazione

Eseguire il programma e seguire le istruzioni.`

func newTestService(provider embedding.Provider) (rag.Service, *store.InMemoryDocumentStore) {
	docStore := store.InitInMemoryDocumentStore()
	gateway := embedding.NewTestGateway(provider, 0, time.Millisecond, time.Second, 100)
	return rag.NewService(docStore, gateway, semcache.NewMemoryCache()), docStore
}

func testContext() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func ingestInline(t *testing.T, svc rag.Service, docStore *store.InMemoryDocumentStore, documentId string, name string, text string) {
	t.Helper()
	ctx := testContext()
	err := docStore.SaveDocument(ctx, docModel.Document{
		Id:        documentId,
		Name:      name,
		Status:    docModel.DocumentStatusPending,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.IngestDocument(ctx, docModel.IngestTask{
		DocumentId: documentId,
		TraceId:    "test-trace",
		RawText:    text,
		Inline:     true,
	}); err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
}

func TestSearch_Validation(t *testing.T) {
	badThreshold := 1.5
	tests := []struct {
		name  string
		query rag.SearchQuery
	}{
		{"Empty_Query", rag.SearchQuery{Query: "   "}},
		{"Negative_TopK", rag.SearchQuery{Query: "domanda", TopK: -1}},
		{"Threshold_Out_Of_Range", rag.SearchQuery{Query: "domanda", Threshold: &badThreshold}},
		{"Unknown_Field", rag.SearchQuery{Query: "domanda", Fields: []string{"banana"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &MockProvider{}
			svc, _ := newTestService(provider)

			_, err := svc.Search(testContext(), tt.query)

			if !errors.Is(err, docModel.ErrValidation) {
				t.Errorf("got %v; want a validation error", err)
			}
			if provider.EmbedCalls != 0 {
				t.Error("invalid input must be rejected before any provider call")
			}
		})
	}
}

func TestSearch_EmptyCorpusIsNotAnError(t *testing.T) {
	provider := &MockProvider{}
	svc, _ := newTestService(provider)

	out, err := svc.Search(testContext(), rag.SearchQuery{Query: "qualsiasi cosa"})

	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out.Results) != 0 || out.ServedFromCache {
		t.Errorf("unexpected output %+v", out)
	}
	if provider.EmbedCalls != 0 {
		t.Error("no candidates means no reason to embed the query")
	}
}

func TestSearch_EmbeddingFailureSurfaces(t *testing.T) {
	provider := &MockProvider{
		OnEmbed: func(ctx context.Context, text string, task embedding.TaskKind) ([]float32, error) {
			return nil, &docModel.ProviderError{Provider: "mock", StatusCode: 429, Transient: true, Err: errors.New("rate limited")}
		},
	}
	svc, docStore := newTestService(provider)
	// ingest goes through the batch path, only the query embedding fails
	ingestInline(t, svc, docStore, "doc-1", "guida.md", italianGuide)

	_, err := svc.Search(testContext(), rag.SearchQuery{Query: "quali sono i requisiti"})

	if !docModel.IsTransient(err) {
		t.Errorf("expected the provider error to surface, got %v", err)
	}
}

func TestSearch_ItalianMarkdownEndToEnd(t *testing.T) {
	provider := &MockProvider{}
	svc, docStore := newTestService(provider)
	ingestInline(t, svc, docStore, "doc-guida", "guida.md", italianGuide)

	out, err := svc.Search(testContext(), rag.SearchQuery{
		Query:  "Quali sono i requisiti di sistema?",
		Fields: []string{"content", "header_context"},
	})

	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("got %d results; want exactly the requirements section", len(out.Results))
	}
	top := out.Results[0]
	if top.HeaderContext != "Requisiti di Sistema" {
		t.Errorf("header = %q; want %q", top.HeaderContext, "Requisiti di Sistema")
	}
	if !strings.Contains(top.Content, "CPU a 64 bit") {
		t.Errorf("content = %q; want the section body", top.Content)
	}
	if len(top.MatchedFields) != 1 || top.MatchedFields[0] != docModel.FieldHeaderContext {
		t.Errorf("matched fields = %v; want [header_context]", top.MatchedFields)
	}
	if top.Score < 0.999 {
		t.Errorf("score = %f; want ~1.0 for an aligned query", top.Score)
	}
}

func TestSearch_MatchesAcrossContentAndHeaderFields(t *testing.T) {
	provider := &MockProvider{}
	svc, docStore := newTestService(provider)
	corpus := "## Panoramica\n\nI requisiti completi sono elencati in fondo.\n\n## Requisiti di Sistema\n\nServe una CPU a 64 bit."
	ingestInline(t, svc, docStore, "doc-misto", "guida.md", corpus)

	out, err := svc.Search(testContext(), rag.SearchQuery{
		Query:  "requisiti di sistema",
		Fields: []string{"content", "header_context"},
	})

	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("got %d results; want both sections", len(out.Results))
	}
	matched := map[docModel.FieldKind]bool{}
	for _, result := range out.Results {
		for _, kind := range result.MatchedFields {
			matched[kind] = true
		}
	}
	if !matched[docModel.FieldContent] || !matched[docModel.FieldHeaderContext] {
		t.Errorf("want one match via content and one via header, got %+v", out.Results)
	}
}

func TestSearch_SecondIdenticalQueryIsServedFromCache(t *testing.T) {
	provider := &MockProvider{}
	svc, docStore := newTestService(provider)
	ingestInline(t, svc, docStore, "doc-guida", "guida.md", italianGuide)

	fields := []string{"content", "header_context"}
	first, err := svc.Search(testContext(), rag.SearchQuery{Query: "quali sono i requisiti di sistema", Fields: fields})
	if err != nil {
		t.Fatal(err)
	}
	if first.ServedFromCache || len(first.Results) == 0 {
		t.Fatalf("first search should rank fresh results, got %+v", first)
	}
	embedCallsAfterFirst := provider.EmbedCalls

	// same query up to case and whitespace
	second, err := svc.Search(testContext(), rag.SearchQuery{Query: "  QUALI sono i requisiti di SISTEMA ", Fields: fields})
	if err != nil {
		t.Fatal(err)
	}
	if !second.ServedFromCache {
		t.Fatal("second search must be served from the cache")
	}
	if len(second.Results) != 1 {
		t.Fatalf("cache serves the single best result, got %d", len(second.Results))
	}
	if second.Results[0].ChunkId != first.Results[0].ChunkId {
		t.Errorf("cached result %q differs from the original best %q", second.Results[0].ChunkId, first.Results[0].ChunkId)
	}
	if provider.EmbedCalls != embedCallsAfterFirst {
		t.Error("a cache hit must not embed the query again")
	}
}

func TestSearch_ThresholdDropsWeakMatchesWithoutError(t *testing.T) {
	provider := &MockProvider{
		OnEmbed: func(ctx context.Context, text string, task embedding.TaskKind) ([]float32, error) {
			// halfway between the requirements axis and an unrelated one
			v := make([]float32, config.EmbeddingOutputDimensionality)
			v[0] = 1
			v[5] = 1
			return v, nil
		},
	}
	svc, docStore := newTestService(provider)
	ingestInline(t, svc, docStore, "doc-guida", "guida.md", italianGuide)

	strict := 0.9
	fields := []string{"header_context"}
	out, err := svc.Search(testContext(), rag.SearchQuery{Query: "requisiti", Threshold: &strict, Fields: fields})

	if err != nil {
		t.Fatalf("a too-strict threshold is not an error: %v", err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("got %d results; want none above 0.9", len(out.Results))
	}

	// nothing was cached for the empty outcome
	repeat, err := svc.Search(testContext(), rag.SearchQuery{Query: "requisiti", Threshold: &strict, Fields: fields})
	if err != nil {
		t.Fatal(err)
	}
	if repeat.ServedFromCache {
		t.Error("an empty result set must not be cached")
	}
}

func TestAnswer_GroundedGeneration(t *testing.T) {
	var seenMessages []embedding.Message
	var seenOpts embedding.CompletionOptions
	provider := &MockProvider{
		OnComplete: func(ctx context.Context, messages []embedding.Message, opts embedding.CompletionOptions) (string, error) {
			seenMessages = messages
			seenOpts = opts
			return "Serve una CPU a 64 bit e 4GB di RAM.", nil
		},
	}
	svc, docStore := newTestService(provider)
	ingestInline(t, svc, docStore, "doc-guida", "guida.md", italianGuide)

	out, err := svc.Answer(testContext(), rag.SearchQuery{
		Query:  "quali sono i requisiti di sistema",
		Fields: []string{"content", "header_context"},
	})

	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if out.Answer != "Serve una CPU a 64 bit e 4GB di RAM." {
		t.Errorf("answer = %q", out.Answer)
	}
	if len(out.Results) == 0 {
		t.Error("the grounding passages must come back with the answer")
	}
	if len(seenMessages) != 2 || seenMessages[0].Role != embedding.RoleSystem {
		t.Fatalf("unexpected prompt shape: %+v", seenMessages)
	}
	if seenMessages[0].Content != config.AnswerSystemPrompt {
		t.Error("system prompt mismatch")
	}
	userPrompt := seenMessages[1].Content
	if !strings.Contains(userPrompt, "CPU a 64 bit") || !strings.Contains(userPrompt, "quali sono i requisiti di sistema") {
		t.Errorf("user prompt is missing the passages or the question:\n%s", userPrompt)
	}
	if seenOpts.MaxTokens != config.AnswerMaxTokens {
		t.Errorf("max tokens = %d; want %d", seenOpts.MaxTokens, int64(config.AnswerMaxTokens))
	}
}

func TestAnswer_NoResultsSkipsTheModel(t *testing.T) {
	provider := &MockProvider{}
	svc, _ := newTestService(provider)

	out, err := svc.Answer(testContext(), rag.SearchQuery{Query: "di cosa parla il documento"})

	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if out.Answer != config.AnswerNoContextReply {
		t.Errorf("answer = %q; want the fixed no-context reply", out.Answer)
	}
	if provider.CompleteCalls != 0 {
		t.Error("the model must not be called without grounding passages")
	}
}

func TestAnswer_CompletionFailureSurfaces(t *testing.T) {
	provider := &MockProvider{
		OnComplete: func(ctx context.Context, messages []embedding.Message, opts embedding.CompletionOptions) (string, error) {
			return "", &docModel.ProviderError{Provider: "mock", StatusCode: 500, Err: errors.New("provider down")}
		},
	}
	svc, docStore := newTestService(provider)
	ingestInline(t, svc, docStore, "doc-guida", "guida.md", italianGuide)

	_, err := svc.Answer(testContext(), rag.SearchQuery{
		Query:  "quali sono i requisiti",
		Fields: []string{"header_context"},
	})

	var pe *docModel.ProviderError
	if !errors.As(err, &pe) {
		t.Errorf("expected the provider error to surface, got %v", err)
	}
}

func TestAnnotateChunk_Lifecycle(t *testing.T) {
	provider := &MockProvider{}
	svc, docStore := newTestService(provider)
	ingestInline(t, svc, docStore, "doc-guida", "guida.md", italianGuide)

	ctx := testContext()
	chunks, err := docStore.GetChunks(ctx, "doc-guida")
	if err != nil || len(chunks) == 0 {
		t.Fatalf("no chunks to annotate: %v", err)
	}
	target := chunks[0]

	notes := "nota sulla compatibilità hardware"
	updated, err := svc.AnnotateChunk(ctx, "doc-guida", target.Id, rag.AnnotationPatch{Notes: &notes})
	if err != nil {
		t.Fatalf("AnnotateChunk failed: %v", err)
	}
	if updated.Notes != notes {
		t.Errorf("notes = %q", updated.Notes)
	}
	if _, ok := updated.Embeddings[docModel.FieldNotes]; !ok {
		t.Error("annotating notes must embed them")
	}

	// the new field is searchable once opted in
	out, err := svc.Search(ctx, rag.SearchQuery{Query: "nota hardware", Fields: []string{"notes"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) == 0 || out.Results[0].ChunkId != target.Id {
		t.Fatalf("notes search missed the annotated chunk: %+v", out.Results)
	}
	if out.Results[0].MatchedFields[0] != docModel.FieldNotes {
		t.Errorf("matched fields = %v; want notes first", out.Results[0].MatchedFields)
	}

	details := map[string]any{"versione": "2.0", "revisore": "qa"}
	updated, err = svc.AnnotateChunk(ctx, "doc-guida", target.Id, rag.AnnotationPatch{Details: &details})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := updated.Embeddings[docModel.FieldDetails]; !ok {
		t.Error("annotating details must embed their JSON encoding")
	}

	// clearing notes also drops the stale vector
	empty := ""
	updated, err = svc.AnnotateChunk(ctx, "doc-guida", target.Id, rag.AnnotationPatch{Notes: &empty})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Notes != "" {
		t.Errorf("notes = %q after clearing", updated.Notes)
	}
	if _, ok := updated.Embeddings[docModel.FieldNotes]; ok {
		t.Error("cleared notes must not keep an embedding")
	}

	if _, err := svc.AnnotateChunk(ctx, "doc-guida", target.Id, rag.AnnotationPatch{}); !errors.Is(err, docModel.ErrValidation) {
		t.Errorf("an empty patch must be rejected, got %v", err)
	}
	if _, err := svc.AnnotateChunk(ctx, "doc-guida", "ghost-chunk", rag.AnnotationPatch{Notes: &notes}); !errors.Is(err, docModel.ErrNotFound) {
		t.Errorf("annotating a missing chunk must 404, got %v", err)
	}
}

func TestDeleteDocument_RemovesItFromSearch(t *testing.T) {
	provider := &MockProvider{}
	svc, docStore := newTestService(provider)
	ingestInline(t, svc, docStore, "doc-guida", "guida.md", italianGuide)

	ctx := testContext()
	if err := svc.DeleteDocument(ctx, "doc-guida"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	out, err := svc.Search(ctx, rag.SearchQuery{Query: "argomento mai indicizzato"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 0 {
		t.Errorf("deleted chunks still rank: %+v", out.Results)
	}
	if _, err := docStore.GetDocument(ctx, "doc-guida"); !errors.Is(err, docModel.ErrNotFound) {
		t.Errorf("document survived the delete: %v", err)
	}
	if err := svc.DeleteDocument(ctx, "doc-guida"); !errors.Is(err, docModel.ErrNotFound) {
		t.Errorf("double delete must 404, got %v", err)
	}
}

func TestIngestDocument_ReprocessingReplacesEverything(t *testing.T) {
	provider := &MockProvider{}
	svc, docStore := newTestService(provider)
	ingestInline(t, svc, docStore, "doc-guida", "guida.md", italianGuide)

	ctx := testContext()
	before, err := docStore.GetChunks(ctx, "doc-guida")
	if err != nil || len(before) != 2 {
		t.Fatalf("expected 2 chunks from the full guide, got %d (err %v)", len(before), err)
	}

	// second version drops the installation section entirely
	shorter := "## Requisiti di Sistema\n\nServe una CPU a 64 bit."
	if err := svc.IngestDocument(ctx, docModel.IngestTask{
		DocumentId: "doc-guida",
		RawText:    shorter,
		Inline:     true,
	}); err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}

	after, err := docStore.GetChunks(ctx, "doc-guida")
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 {
		t.Fatalf("re-processing kept stale chunks: %d", len(after))
	}
	for _, old := range before {
		if old.Id == after[0].Id {
			t.Error("re-processing must mint fresh chunk ids")
		}
	}

	out, err := svc.Search(ctx, rag.SearchQuery{Query: "dove trovo le istruzioni di installazione"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 0 {
		t.Errorf("the removed section still ranks: %+v", out.Results)
	}

	doc, err := docStore.GetDocument(ctx, "doc-guida")
	if err != nil || doc.Status != docModel.DocumentStatusCompleted {
		t.Errorf("document after re-ingest: %+v (err %v)", doc, err)
	}
}
