package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"veritas-backend/internal/ai"
	"veritas-backend/internal/config"
	"veritas-backend/internal/logger"
	"veritas-backend/internal/queue"
	"veritas-backend/internal/rag"
	"veritas-backend/internal/vectorindex"
	"veritas-backend/models"
	"veritas-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	repo := models.NewDocumentRepo(mongoClient.Database(cfg.DBName))

	// The worker shares session state and page images with the API process
	// through Redis, so Redis is mandatory here.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	sessions := rag.NewRedisSessionStore(rdb, time.Duration(cfg.SessionTTLMinutes)*time.Minute)

	ctx := context.Background()
	embedder, err := ai.NewEmbeddingClient(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embedder.Close()

	index := vectorindex.NewClient(vectorindex.Config{
		IndexHost: cfg.PineconeIndexHost,
		APIKey:    cfg.PineconeAPIKey,
		Namespace: cfg.PineconeNamespace,
	})
	store := rag.NewDocumentStore(embedder, index)

	pageImages := services.NewPageImageStore(rdb)
	cache := services.NewChunkCache(rdb, 24*time.Hour)
	docs := services.NewDocumentService(cfg, repo, store, sessions, cache, pageImages)

	redisOpt, err := queue.RedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to parse Redis config:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewIngestProcessor(docs, repo)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessIngest)

	logger.Info("Starting worker", "concurrency", 4)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
