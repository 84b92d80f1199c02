package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/config"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/api"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/broker"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/redisclient"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/service"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/store"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/util"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting producten-diensten service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Database.Backend))

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	repo, err := store.NewRepository(cfg.Database.Backend, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to open product store", zap.Error(err))
	}
	defer repo.Close()

	readiness := map[string]api.ReadinessCheck{}
	if db, ok := repo.(*store.Store); ok {
		logger.Info("Database connected")
		if cfg.Database.AutoMigrate {
			if err := store.RunMigrations(db.GetDB().DB); err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
		}
		readiness["database"] = db.GetDB().PingContext
	}

	var (
		cache       service.ProductCache
		locker      service.Locker
		publisher   service.EventPublisher
		redisClient *redisclient.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		cache, locker = redisClient, redisClient
		readiness["redis"] = redisClient.Ping
	}

	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicProduct)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicProduct))
	}

	catalog := service.NewCatalogService(repo, cache, locker, publisher, service.Options{
		CacheTTL: cfg.Catalog.CacheTTL,
		LockTTL:  cfg.Catalog.LockTTL,
	})

	if cfg.Catalog.SeedFixtures {
		if _, err := catalog.LoadFixtures(context.Background(), cfg.Catalog.FixtureOrganization); err != nil {
			logger.Fatal("Failed to load fixtures", zap.Error(err))
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var cacheWorker *worker.CacheWorker
	if cfg.Kafka.Enabled && redisClient != nil {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicProduct, consumerGroup(cfg.Kafka.ConsumerGroup))
		cacheWorker = worker.NewCacheWorker(consumer, redisClient)
		go func() {
			if err := cacheWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Cache worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(catalog, cfg.Server.PublicBaseURL)
	for name, check := range readiness {
		handler.AddReadinessCheck(name, check)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if cacheWorker != nil {
		if err := cacheWorker.Stop(); err != nil {
			logger.Error("Error stopping cache worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// consumerGroup gives every instance its own group so each one sees every
// product event
func consumerGroup(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil {
		host = fmt.Sprintf("pid-%d", os.Getpid())
	}
	return "producten-cache-" + host
}
