package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/data/store"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/mcpserver"
	"github.com/raggio-engine/raggio/internal/rag"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/internal/rag/embedding/providerFactory"
	"github.com/raggio-engine/raggio/internal/rag/semcache"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

func main() {

	_ = godotenv.Load() //optional .env for provider keys

	logger_i.InitStderr() //stdout carries the MCP protocol
	logger := logger_i.NewLogger("mcp-main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//this binary serves the corpus the API binary ingested, so it reads the
	//same Redis index
	var documentStore docModel.DocumentStore
	redisDocumentStore := store.GetRedisDocumentStore(ctx)
	switch {
	case redisDocumentStore != nil:
		if err := redisDocumentStore.Hydrate(ctx); err != nil {
			logger.Error("Could not hydrate the document store", "error", err)
		}
		documentStore = redisDocumentStore
	case config.FALLBACK_REDIS_TO_INTERNALSTORE:
		logger.Error("Redis document store is offline - starting with an empty in-memory index")
		documentStore = store.InitInMemoryDocumentStore()
	default:
		logger.Error("Redis document store is offline")
		os.Exit(1)
	}

	var queryCache semcache.Cache
	if redisCache := semcache.GetRedisCache(ctx); redisCache != nil {
		queryCache = redisCache
	} else {
		logger.Error("Redis cache is offline - falling back to the in-memory cache")
		queryCache = semcache.NewMemoryCache()
	}

	provider, err := providerFactory.New(ctx, providerFactory.SettingsFromEnv())
	if err != nil {
		logger.Error("Could not initialize the embedding provider. Shutting down.", "error", err)
		os.Exit(1)
	}

	ragService := rag.NewService(documentStore, embedding.NewGateway(provider), queryCache)

	srv, err := mcpserver.NewServer(ragService)
	if err != nil {
		logger.Error("Could not create the MCP server", "error", err)
		os.Exit(1)
	}
	if err := srv.Run(ctx); err != nil {
		logger.Error("MCP server stopped", "error", err)
		os.Exit(1)
	}
}
