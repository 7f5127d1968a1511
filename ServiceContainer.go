package main

import (
	"github.com/gin-gonic/gin"
	"go.etcd.io/bbolt"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

type ServiceContainer struct {
	Database          *bbolt.DB
	ApiController     contracts.ApiController
	SheetRepository   contracts.SheetRepository
	FormulaEngine     contracts.FormulaEngine
	WebhookDispatcher contracts.WebhookDispatcher
	BatchWorker       *BatchWorker
	Router            *gin.Engine
}

func BuildServiceContainer(config Config) (container ServiceContainer, err error) {
	container.Database, err = bbolt.Open(config.DatabasePath, 0600, nil)
	if err != nil {
		return
	}

	serializer := NewCellBinarySerializer()

	container.FormulaEngine = NewEvaluator()
	container.BatchWorker = NewBatchWorker(container.FormulaEngine)
	container.WebhookDispatcher = NewWebhookDispatcher(config.WebhookWorkers)
	container.SheetRepository, err = NewSheetRepository(
		container.Database, container.FormulaEngine, serializer,
		container.WebhookDispatcher, container.BatchWorker, config.BatchThreshold,
	)
	if err != nil {
		return
	}

	container.ApiController = NewApiController(container.SheetRepository, container.WebhookDispatcher)

	container.Router = SetupRouter(container.ApiController)

	return
}
