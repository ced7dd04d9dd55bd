package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"veritas-backend/internal/ai"
	"veritas-backend/internal/config"
	"veritas-backend/internal/logger"
	"veritas-backend/internal/queue"
	"veritas-backend/internal/rag"
	"veritas-backend/internal/telemetry"
	"veritas-backend/internal/vectorindex"
	"veritas-backend/internal/websearch"
	"veritas-backend/middleware"
	"veritas-backend/models"
	"veritas-backend/routes"
	"veritas-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("veritas-backend")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracer = func() {}
	}

	// MongoDB for upload bookkeeping
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

	// Redis backs the session store, chunk cache, and task queue. Without it
	// everything degrades to single-process in-memory operation.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running with in-memory state", "error", err)
		rdb = nil
	}

	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	var sessions rag.SessionStore
	if rdb != nil {
		sessions = rag.NewRedisSessionStore(rdb, sessionTTL)
	} else {
		sessions = rag.NewMemorySessionStore()
	}

	ctx := context.Background()

	embedder, err := ai.NewEmbeddingClient(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embedder.Close()

	vision, err := ai.NewVisionClient(ctx, cfg.GeminiAPIKey, cfg.VisionModel)
	if err != nil {
		log.Fatal("Failed to initialize vision client:", err)
	}
	defer vision.Close()

	groq := ai.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel, cfg.GroqTier)

	index := vectorindex.NewClient(vectorindex.Config{
		IndexHost: cfg.PineconeIndexHost,
		APIKey:    cfg.PineconeAPIKey,
		Namespace: cfg.PineconeNamespace,
	})

	store := rag.NewDocumentStore(embedder, index)
	pageImages := services.NewPageImageStore(rdb)
	visualSelector := rag.NewVisualSelector(vision, pageImages, cfg.MaxVisionPages)
	streamer := rag.NewStreamer(groq, time.Duration(cfg.StreamWordDelayMs)*time.Millisecond)

	var web rag.WebSearcher
	if serper := websearch.NewClient(cfg.SerperAPIKey); serper != nil {
		web = serper
	}

	orchestrator := rag.NewOrchestrator(
		rag.NewClassifier(),
		store,
		visualSelector,
		web,
		streamer,
		sessions,
		rag.OrchestratorConfig{
			TopK:           cfg.TopK,
			RelevanceFloor: cfg.RelevanceFloor,
			ContextBudget:  cfg.ContextBudget,
			EnrichWeb:      cfg.WebEnrichEnabled,
		},
	)

	cache := services.NewChunkCache(rdb, 24*time.Hour)
	docs := services.NewDocumentService(cfg, repo, store, sessions, cache, pageImages)

	var queueClient *asynq.Client
	if rdb != nil {
		redisOpt, err := queue.RedisOpt(cfg)
		if err != nil {
			logger.Warn("Async processing disabled", "error", err)
		} else {
			queueClient = asynq.NewClient(redisOpt)
			defer queueClient.Close()
		}
	}

	janitor := services.NewJanitor(sessions, repo, sessionTTL, 24*time.Hour)
	if err := janitor.Start(time.Duration(cfg.JanitorIntervalMin) * time.Minute); err != nil {
		logger.Warn("Janitor failed to start", "error", err)
	}
	defer janitor.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With", middleware.SessionIDHeader, middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Hello from Veritas Backend!"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupUploadRoutes(router, cfg, docs, repo, queueClient)
	routes.SetupChatRoutes(router, orchestrator)
	routes.SetupExportRoutes(router, sessions, repo)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	shutdownTracer()
	logger.Info("Server exited")
}
