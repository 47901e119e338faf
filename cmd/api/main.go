// @title           Raggio Retrieval API
// @version         1.0
// @description     This API ingests documents, runs semantic search over their chunks and answers questions grounded in the retrieved passages.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/data/store"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/handlers"
	"github.com/raggio-engine/raggio/internal/rag"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/internal/rag/embedding/providerFactory"
	"github.com/raggio-engine/raggio/internal/rag/semcache"
	"github.com/raggio-engine/raggio/internal/server"
	"github.com/raggio-engine/raggio/internal/task"
	"github.com/raggio-engine/raggio/internal/worker"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	_ = godotenv.Load() //optional .env for provider keys

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered task channel
	taskChannel := make(chan docModel.IngestTask, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init document store - Redis keeps it durable, memory keeps it fast
	var documentStore docModel.DocumentStore
	redisDocumentStore := store.GetRedisDocumentStore(serviceContext)
	switch {
	case redisDocumentStore != nil:
		if err := redisDocumentStore.Hydrate(serviceContext); err != nil {
			logger.Error("Could not hydrate the document store", "error", err)
		}
		documentStore = redisDocumentStore
	case config.FALLBACK_REDIS_TO_INTERNALSTORE:
		logger.Error("Redis document store is offline - falling back to the in-memory store")
		documentStore = store.InitInMemoryDocumentStore()
	default:
		logger.Error("Redis document store is offline")
		return
	}

	//semantic cache - same fallback policy as the document store
	var queryCache semcache.Cache
	if redisCache := semcache.GetRedisCache(serviceContext); redisCache != nil {
		queryCache = redisCache
	} else {
		logger.Error("Redis cache is offline - falling back to the in-memory cache")
		queryCache = semcache.NewMemoryCache()
	}

	//embedding provider behind the retrying gateway
	provider, err := providerFactory.New(serviceContext, providerFactory.SettingsFromEnv())
	if err != nil {
		logger.Error("Could not initialize the embedding provider. Shutting down.", "error", err)
		return
	}
	gateway := embedding.NewGateway(provider)

	ragService := rag.NewService(documentStore, gateway, queryCache)

	logger.Info("Starting task service")
	service := task.InitTaskService(task.ServiceConfig{
		TaskChannel:       taskChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		DocumentStore:     documentStore,
	})

	handlers.InitDocumentHandler(service, ragService)

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
