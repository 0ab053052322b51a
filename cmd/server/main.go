package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solarops/document-processor/api/handlers"
	"github.com/solarops/document-processor/api/routes"
	cfg "github.com/solarops/document-processor/config"
	"github.com/solarops/document-processor/internal/batch"
	"github.com/solarops/document-processor/internal/models"
	"github.com/solarops/document-processor/internal/ocr"
	"github.com/solarops/document-processor/internal/repository"
	batchsvc "github.com/solarops/document-processor/internal/service/batch"
	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/queue"
	"github.com/solarops/document-processor/pkg/storage"
)

func main() {
	serverCfg, err := cfg.LoadServerConfig("configs/config.yaml")
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(serverCfg.Logging.Level),
		logger.WithEncoding(serverCfg.Logging.Encoding),
		logger.WithOutputPaths(serverCfg.Logging.OutputPaths),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	pool, err := repository.Open(ctx, cfg.GetDatabaseConfig(), log)
	if err != nil {
		log.Fatal("Failed to open database", logger.Error(err))
	}
	defer pool.Close()
	repo := repository.NewDocumentRepository(pool, log)

	store, err := storage.NewStorage(storage.Backend(cfg.GetStorageConfig().Backend), log)
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}

	extractor, err := ocr.NewExtractor(ctx, repo, store, log)
	if err != nil {
		log.Fatal("Failed to initialize extractor", logger.Error(err))
	}

	redisCfg := cfg.GetRedisConfig()
	q, err := queue.NewAsynqQueue(&queue.Config{RedisAddr: redisCfg.Addr, RedisDB: redisCfg.DB})
	if err != nil {
		log.Fatal("Failed to initialize queue", logger.Error(err))
	}
	defer q.Close()

	controller := batch.NewController(extractor, models.BatchOptions{
		MaxConcurrent: serverCfg.Batch.MaxConcurrent,
		MaxBatchSize:  serverCfg.Batch.MaxBatchSize,
		MaxPages:      serverCfg.Batch.MaxPages,
		AutoUpdate:    serverCfg.Batch.AutoUpdate,
	}, log.Named("batch"))

	service := batchsvc.NewService(repo, controller, q, store, log.Named("batch-service"))

	h := handlers.NewHandlers(service, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    serverCfg.Addr,
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", serverCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Stop accepting requests and let any active batch run notice the
	// cancellation on its next claim.
	service.Cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
