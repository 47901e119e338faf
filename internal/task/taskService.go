package task

import (
	"github.com/raggio-engine/raggio/internal/domain/docModel"
)

// Service is the shared ingest queue: handlers push tasks, the worker pool
// drains them, and the dispatcher channel signals when the pool should grow.
type Service struct {
	TaskChannel       chan docModel.IngestTask
	RequestCount      int64
	DispatcherChannel chan bool
	DocumentStore     docModel.DocumentStore
}

type ServiceConfig struct {
	TaskChannel       chan docModel.IngestTask
	RequestCount      int64
	DispatcherChannel chan bool
	DocumentStore     docModel.DocumentStore
}

func InitTaskService(cfg ServiceConfig) *Service {
	return &Service{
		TaskChannel:       cfg.TaskChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		DocumentStore:     cfg.DocumentStore,
	}
}
