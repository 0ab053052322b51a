package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfg "github.com/solarops/document-processor/config"
	"github.com/solarops/document-processor/internal/batch"
	"github.com/solarops/document-processor/internal/models"
	"github.com/solarops/document-processor/internal/ocr"
	"github.com/solarops/document-processor/internal/repository"
	batchsvc "github.com/solarops/document-processor/internal/service/batch"
	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/queue"
	"github.com/solarops/document-processor/pkg/storage"
	"github.com/solarops/document-processor/pkg/worker"
)

func main() {
	serverCfg, err := cfg.LoadServerConfig("configs/config.yaml")
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(serverCfg.Logging.Level),
		logger.WithEncoding(serverCfg.Logging.Encoding),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := repository.Open(ctx, cfg.GetDatabaseConfig(), log)
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()
	repo := repository.NewDocumentRepository(pool, log)

	store, err := storage.NewStorage(storage.Backend(cfg.GetStorageConfig().Backend), log)
	if err != nil {
		log.Error("Failed to initialize storage", logger.Error(err))
		os.Exit(1)
	}

	extractor, err := ocr.NewExtractor(ctx, repo, store, log)
	if err != nil {
		log.Error("Failed to initialize extractor", logger.Error(err))
		os.Exit(1)
	}

	redisCfg := cfg.GetRedisConfig()
	q, err := queue.NewAsynqQueue(&queue.Config{RedisAddr: redisCfg.Addr, RedisDB: redisCfg.DB})
	if err != nil {
		log.Error("Failed to initialize queue", logger.Error(err))
		os.Exit(1)
	}
	defer q.Close()

	controller := batch.NewController(extractor, models.BatchOptions{
		MaxConcurrent: serverCfg.Batch.MaxConcurrent,
		MaxBatchSize:  serverCfg.Batch.MaxBatchSize,
		MaxPages:      serverCfg.Batch.MaxPages,
		AutoUpdate:    serverCfg.Batch.AutoUpdate,
	}, log.Named("batch"))

	service := batchsvc.NewService(repo, controller, q, store, log.Named("batch-service"))

	workerCfg := &worker.Config{
		RedisAddr:   redisCfg.Addr,
		RedisDB:     redisCfg.DB,
		Concurrency: serverCfg.Worker.Concurrency,
		Queues:      serverCfg.Worker.Queues,
	}

	batchWorker, err := worker.NewBatchWorker(workerCfg, service, log)
	if err != nil {
		log.Error("Failed to create batch worker", logger.Error(err))
		os.Exit(1)
	}

	if err := batchWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	service.Cancel()
	batchWorker.Stop()
	log.Info("Worker stopped")
}
