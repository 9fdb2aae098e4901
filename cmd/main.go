package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kotobalab/kotoba-backend/internal/data/graph"
	jobsrepo "github.com/kotobalab/kotoba-backend/internal/data/repos/jobs"
	"github.com/kotobalab/kotoba-backend/internal/db"
	httpserver "github.com/kotobalab/kotoba-backend/internal/http"
	httpH "github.com/kotobalab/kotoba-backend/internal/http/handlers"
	"github.com/kotobalab/kotoba-backend/internal/jobs/relations"
	"github.com/kotobalab/kotoba-backend/internal/jobs/runtime"
	"github.com/kotobalab/kotoba-backend/internal/jobs/worker"
	"github.com/kotobalab/kotoba-backend/internal/lexicon/resolve"
	"github.com/kotobalab/kotoba-backend/internal/platform/envutil"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
	"github.com/kotobalab/kotoba-backend/internal/platform/neo4jdb"
	"github.com/kotobalab/kotoba-backend/internal/platform/openai"
	"github.com/kotobalab/kotoba-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Logger
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Neo4j vocabulary graph
	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Error("Neo4j init failed", "error", err)
		os.Exit(1)
	}
	if neoClient == nil {
		log.Error("missing NEO4J_URI")
		os.Exit(1)
	}
	defer func() { _ = neoClient.Close(context.Background()) }()

	// OpenAI
	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("OpenAI init failed", "error", err)
		os.Exit(1)
	}

	// Repos and stores
	jobRunRepo := jobsrepo.NewJobRunRepo(thePG, log)
	lexiconStore := graph.NewLexiconStore(neoClient, log)

	// Services
	resolver := resolve.NewResolver(lexiconStore, log)
	generator := services.NewRelationGenerator(aiClient, log)
	jobService := services.NewJobService(thePG, jobRunRepo, log)
	jobEvents, err := services.NewRedisJobEventsFromEnv(log)
	if err != nil {
		log.Warn("Redis job events disabled", "error", err)
	}
	defer func() { _ = jobEvents.Close() }()

	// Job handlers and worker
	costInPer1K := envutil.Float64("OPENAI_COST_IN_PER_1K", 0)
	costOutPer1K := envutil.Float64("OPENAI_COST_OUT_PER_1K", 0)

	registry := runtime.NewRegistry()
	for _, h := range []runtime.Handler{
		relations.NewPipeline(lexiconStore, resolver, generator, costInPer1K, costOutPer1K, log),
		relations.NewImporter(lexiconStore, log),
		relations.NewAnalyzer(lexiconStore, log),
	} {
		if err := registry.Register(h); err != nil {
			log.Error("handler registration failed", "job_type", h.Type(), "error", err)
			os.Exit(1)
		}
	}

	var notify runtime.Notifier
	if jobEvents != nil {
		notify = jobEvents
	}
	jobWorker := worker.NewWorker(thePG, log, jobRunRepo, registry, notify)
	jobWorker.Start(ctx)

	// HTTP
	router := httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		JobHandler:     httpH.NewJobHandler(jobService),
		ResolveHandler: httpH.NewResolveHandler(resolver),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
