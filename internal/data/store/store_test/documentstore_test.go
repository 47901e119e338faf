package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/data/redisStore"
	"github.com/raggio-engine/raggio/internal/data/store"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/redis/go-redis/v9"
)

func vec(seed float32) []float32 {
	v := make([]float32, config.EmbeddingOutputDimensionality)
	v[0] = seed
	return v
}

func embeddedChunk(id string, documentId string, index int, content string) docModel.Chunk {
	return docModel.Chunk{
		Id:         id,
		DocumentId: documentId,
		Index:      index,
		Content:    content,
		Embeddings: map[docModel.FieldKind]docModel.FieldEmbedding{
			docModel.FieldContent: {Vector: vec(1), ModelId: "test-model"},
		},
	}
}

func newRedisBackedStore(t *testing.T) (*store.RedisDocumentStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return store.TestDocumentStore(redisStore.NewTestStore(client)), mr, client
}

func TestRedisDocumentStore_Lifecycle(t *testing.T) {
	docStore, mr, _ := newRedisBackedStore(t)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	documentId := "doc_abc_123"

	doc := docModel.Document{
		Id:     documentId,
		Name:   "manuale.md",
		Status: docModel.DocumentStatusPending,
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		if err := docStore.SaveDocument(ctx, doc); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}
		retrieved, err := docStore.GetDocument(ctx, documentId)
		if err != nil {
			t.Fatalf("document was saved but not found: %v", err)
		}
		if retrieved.Name != doc.Name || retrieved.Status != docModel.DocumentStatusPending {
			t.Errorf("data mismatch, got %+v", retrieved)
		}
		if !mr.Exists("doc:" + documentId) {
			t.Error("document was not written through to Redis")
		}
	})

	t.Run("Processing Installs Chunks", func(t *testing.T) {
		if err := docStore.BeginProcessing(ctx, documentId); err != nil {
			t.Fatalf("BeginProcessing failed: %v", err)
		}
		chunks := []docModel.Chunk{
			embeddedChunk("chunk-1", documentId, 0, "Primo blocco"),
			embeddedChunk("chunk-2", documentId, 1, "Secondo blocco"),
		}
		if err := docStore.CompleteProcessing(ctx, documentId, "testo completo", chunks); err != nil {
			t.Fatalf("CompleteProcessing failed: %v", err)
		}

		retrieved, err := docStore.GetDocument(ctx, documentId)
		if err != nil {
			t.Fatal(err)
		}
		if retrieved.Status != docModel.DocumentStatusCompleted {
			t.Errorf("status = %s; want %s", retrieved.Status, docModel.DocumentStatusCompleted)
		}

		rows, err := docStore.Snapshot(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 2 {
			t.Fatalf("snapshot has %d rows; want 2", len(rows))
		}
		if rows[0].DocumentName != "manuale.md" || rows[0].Chunk.Content != "Primo blocco" {
			t.Errorf("unexpected first row %+v", rows[0])
		}
	})

	t.Run("Get Non-Existent Document", func(t *testing.T) {
		_, err := docStore.GetDocument(ctx, "ghost-id")
		if !errors.Is(err, docModel.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete Cascades", func(t *testing.T) {
		if err := docStore.DeleteDocument(ctx, documentId); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if mr.Exists("doc:" + documentId) {
			t.Error("document still exists in Redis after delete")
		}
		if _, err := docStore.GetChunks(ctx, documentId); !errors.Is(err, docModel.ErrNotFound) {
			t.Errorf("chunks survived the delete: %v", err)
		}
		rows, _ := docStore.Snapshot(ctx)
		if len(rows) != 0 {
			t.Errorf("snapshot still has %d rows after delete", len(rows))
		}
	})
}

func TestRedisDocumentStore_HydrateRebuildsIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	first := store.TestDocumentStore(redisStore.NewTestStore(client))
	if err := first.SaveDocument(ctx, docModel.Document{Id: "doc-ok", Name: "ok.md", Status: docModel.DocumentStatusPending}); err != nil {
		t.Fatal(err)
	}
	if err := first.BeginProcessing(ctx, "doc-ok"); err != nil {
		t.Fatal(err)
	}
	if err := first.CompleteProcessing(ctx, "doc-ok", "testo", []docModel.Chunk{
		embeddedChunk("chunk-ok", "doc-ok", 0, "contenuto"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := first.SaveDocument(ctx, docModel.Document{Id: "doc-broken", Name: "broken.md", Status: docModel.DocumentStatusPending}); err != nil {
		t.Fatal(err)
	}
	if err := first.FailProcessing(ctx, "doc-broken", "extraction failed"); err != nil {
		t.Fatal(err)
	}

	// a fresh process over the same Redis
	second := store.TestDocumentStore(redisStore.NewTestStore(client))
	if err := second.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}

	ok, err := second.GetDocument(ctx, "doc-ok")
	if err != nil || ok.Status != docModel.DocumentStatusCompleted {
		t.Errorf("doc-ok not restored, err=%v status=%s", err, ok.Status)
	}
	broken, err := second.GetDocument(ctx, "doc-broken")
	if err != nil || broken.Status != docModel.DocumentStatusFailed || broken.Error != "extraction failed" {
		t.Errorf("doc-broken not restored, err=%v doc=%+v", err, broken)
	}

	rows, err := second.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Chunk.Id != "chunk-ok" {
		t.Errorf("snapshot after hydrate = %+v; want the one completed chunk", rows)
	}
}

func TestInMemoryDocumentStore_DimensionEnforced(t *testing.T) {
	memStore := store.InitInMemoryDocumentStore()
	ctx := context.Background()

	if err := memStore.SaveDocument(ctx, docModel.Document{Id: "doc-dim", Status: docModel.DocumentStatusPending}); err != nil {
		t.Fatal(err)
	}
	if err := memStore.BeginProcessing(ctx, "doc-dim"); err != nil {
		t.Fatal(err)
	}

	bad := embeddedChunk("chunk-bad", "doc-dim", 0, "testo")
	bad.Embeddings[docModel.FieldContent] = docModel.FieldEmbedding{Vector: []float32{1, 2, 3}}

	err := memStore.CompleteProcessing(ctx, "doc-dim", "testo", []docModel.Chunk{bad})
	if !errors.Is(err, docModel.ErrDataIntegrity) {
		t.Errorf("CompleteProcessing accepted a wrong dimension: %v", err)
	}

	if err := memStore.CompleteProcessing(ctx, "doc-dim", "testo", []docModel.Chunk{
		embeddedChunk("chunk-good", "doc-dim", 0, "testo"),
	}); err != nil {
		t.Fatal(err)
	}

	patched := embeddedChunk("chunk-good", "doc-dim", 0, "testo")
	patched.Embeddings[docModel.FieldNotes] = docModel.FieldEmbedding{Vector: []float32{1}}
	if err := memStore.UpdateChunk(ctx, "doc-dim", patched); !errors.Is(err, docModel.ErrDataIntegrity) {
		t.Errorf("UpdateChunk accepted a wrong dimension: %v", err)
	}
}

func TestInMemoryDocumentStore_SnapshotIsPrivate(t *testing.T) {
	memStore := store.InitInMemoryDocumentStore()
	ctx := context.Background()

	if err := memStore.SaveDocument(ctx, docModel.Document{Id: "doc-priv", Status: docModel.DocumentStatusPending}); err != nil {
		t.Fatal(err)
	}
	if err := memStore.BeginProcessing(ctx, "doc-priv"); err != nil {
		t.Fatal(err)
	}
	if err := memStore.CompleteProcessing(ctx, "doc-priv", "testo", []docModel.Chunk{
		embeddedChunk("chunk-priv", "doc-priv", 0, "originale"),
	}); err != nil {
		t.Fatal(err)
	}

	rows, err := memStore.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rows[0].Chunk.Content = "manomesso"
	rows[0].Chunk.Embeddings[docModel.FieldContent].Vector[0] = 99

	fresh, err := memStore.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fresh[0].Chunk.Content != "originale" {
		t.Error("snapshot rows share content with the store")
	}
	if fresh[0].Chunk.Embeddings[docModel.FieldContent].Vector[0] == 99 {
		t.Error("snapshot rows share vectors with the store")
	}
}

func TestInMemoryDocumentStore_AtomicReprocessing(t *testing.T) {
	memStore := store.InitInMemoryDocumentStore()
	ctx := context.Background()
	documentId := "doc-atomic"

	if err := memStore.SaveDocument(ctx, docModel.Document{Id: documentId, Status: docModel.DocumentStatusPending}); err != nil {
		t.Fatal(err)
	}

	const rounds = 25
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := memStore.BeginProcessing(ctx, documentId); err != nil {
				t.Error(err)
				return
			}
			chunks := []docModel.Chunk{
				embeddedChunk(fmt.Sprintf("round-%d-a", i), documentId, 0, "alpha"),
				embeddedChunk(fmt.Sprintf("round-%d-b", i), documentId, 1, "beta"),
			}
			if err := memStore.CompleteProcessing(ctx, documentId, "testo", chunks); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds*4; i++ {
			rows, err := memStore.Snapshot(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			// either the empty processing state or a full pair, never one chunk
			if len(rows) != 0 && len(rows) != 2 {
				t.Errorf("torn snapshot with %d rows", len(rows))
				return
			}
			if len(rows) == 2 && rows[0].Chunk.Id[:len(rows[0].Chunk.Id)-2] != rows[1].Chunk.Id[:len(rows[1].Chunk.Id)-2] {
				t.Errorf("snapshot mixes rounds: %s vs %s", rows[0].Chunk.Id, rows[1].Chunk.Id)
				return
			}
		}
	}()

	wg.Wait()
}
