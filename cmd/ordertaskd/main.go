// Command ordertaskd runs the per-identity task executor behind a demo HTTP
// front end, with optional Kafka ingestion, Postgres audit logging, and
// Redis-backed rate limiting.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordertask/ordertask/internal/adapter/kafka"
	"github.com/ordertask/ordertask/internal/engine"
	"github.com/ordertask/ordertask/internal/httpapi"
	"github.com/ordertask/ordertask/internal/platform/audit"
	"github.com/ordertask/ordertask/internal/platform/cache"
	"github.com/ordertask/ordertask/internal/platform/config"
	"github.com/ordertask/ordertask/internal/platform/database"
	"github.com/ordertask/ordertask/internal/platform/health"
	"github.com/ordertask/ordertask/internal/platform/logger"
	"github.com/ordertask/ordertask/internal/platform/metrics"
	"github.com/ordertask/ordertask/internal/platform/sysstats"
	"github.com/ordertask/ordertask/internal/platform/telemetry"
)

const serviceName = "ordertaskd"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logger)
	log.Info("starting ordertaskd", "version", cfg.Version, "environment", cfg.Service.Environment)

	tel, err := telemetry.New(telemetry.Config{
		ServiceName:    serviceName,
		JaegerEndpoint: cfg.Telemetry.JaegerEndpoint,
		MetricsEnabled: cfg.Telemetry.MetricsEnabled,
		TracingEnabled: cfg.Telemetry.TracingEnabled,
	})
	if err != nil {
		log.Fatal("failed to initialize telemetry", "error", err)
	}
	defer tel.Close()

	m := metrics.NewMetrics(serviceName, tel.Registry())

	healthHandler := health.NewHandler(serviceName, cfg.Version)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Warn("audit database unavailable, audit logging disabled", "error", err)
		db = nil
	} else {
		healthHandler.AddCheck("database", health.DatabaseChecker(db.HealthCheck))
	}
	auditSink, err := audit.New(db, log)
	if err != nil {
		log.Fatal("failed to prepare audit sink", "error", err)
	}

	redisCache, err := cache.NewRedisCache(cache.Config{
		Host:      cfg.Redis.Host,
		Port:      cfg.Redis.Port,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: serviceName,
	})
	var limiter *cache.RateLimiter
	if err != nil {
		log.Warn("redis unavailable, rate limiting disabled", "error", err)
	} else {
		healthHandler.AddCheck("redis", health.RedisChecker(redisCache.Health))
		limiter = redisCache.NewRateLimiter(cfg.HTTP.RateLimitPerMin, time.Minute)
	}

	sampler := sysstats.NewSampler(m, log, 15*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	sampler.Start(ctx)

	executor := engine.NewTaskExecutor(cfg.Engine, log, tel.Registry(), tel.Tracer())
	executor.PostConstruct()

	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err = kafka.NewConsumer(kafka.Config{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, executor, kafka.AuditedIngestBuilder(auditSink), log, m)
		if err != nil {
			log.Warn("kafka unavailable, submission ingestion disabled", "error", err)
		} else {
			go func() {
				if err := consumer.Run(ctx); err != nil {
					log.Error("kafka consumer stopped", "error", err)
				}
			}()
		}
	}

	server := httpapi.NewServer(cfg.HTTP, cfg.Auth, executor, log, m, healthHandler, limiter)
	go func() {
		log.Info("http front end listening", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil {
			log.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "error", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Error("kafka consumer close error", "error", err)
		}
	}
	cancel()
	sampler.Stop()
	executor.Stop()

	if db != nil {
		db.Close()
	}
	if redisCache != nil {
		redisCache.Close()
	}

	log.Info("ordertaskd stopped")
}
