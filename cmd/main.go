package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/hearthside/gametable/internal/infrastructure/configs"
	"github.com/hearthside/gametable/internal/infrastructure/events"
	"github.com/hearthside/gametable/internal/infrastructure/logging"
	"github.com/hearthside/gametable/internal/infrastructure/messaging"
	"github.com/hearthside/gametable/internal/infrastructure/metrics"
	"github.com/hearthside/gametable/internal/infrastructure/ratelimiter"
	"github.com/hearthside/gametable/internal/infrastructure/tracing"
	"github.com/hearthside/gametable/internal/infrastructure/ws"
	"github.com/hearthside/gametable/internal/persistence/db"
	"github.com/hearthside/gametable/internal/persistence/repository"
	"github.com/hearthside/gametable/internal/presentation/api"
	"github.com/hearthside/gametable/internal/presentation/handler/admin"
	"github.com/hearthside/gametable/internal/presentation/handler/health"
	"github.com/hearthside/gametable/internal/presentation/handler/session"
)

const (
	serviceName = "gametable-api"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := logging.NewLogger(logging.NewDefaultConfig())

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	mongoCfg := &db.MongoConfig{
		URI:               cfg.Mongo.URI,
		Database:          cfg.Mongo.Database,
		ConnectionTimeout: cfg.Mongo.Timeout,
	}
	mongoClient, err := db.NewMongoClient(ctx, mongoCfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := db.DisconnectMongo(context.Background(), mongoClient); err != nil {
			log.Printf("Failed to disconnect from MongoDB: %v", err)
		}
	}()

	database := db.GetDatabase(mongoClient, mongoCfg)
	directory := repository.NewCampaignRepository(database)
	authorizer := repository.NewCampaignAuthorizer(database)

	auditRepository := repository.NewSessionAuditLogRepository(database)
	if err := auditRepository.EnsureIndexes(ctx); err != nil {
		log.Printf("Failed to ensure audit log indexes: %v", err)
	}

	sessionMetrics := metrics.New()

	var notifier ws.LifecycleNotifier
	var publisher *events.SessionPublisher
	if cfg.AMQP.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.AMQP.URL)
		if err != nil {
			log.Fatal(err)
		}
		defer rabbitmq.Close()

		log.Println("Starting RabbitMQ connection")

		publisher = events.NewSessionPublisher(rabbitmq)
		notifier = publisher

		sessionConsumer := events.NewSessionConsumer(rabbitmq, auditRepository)
		if err := sessionConsumer.Listen(); err != nil {
			log.Fatal(err)
		}
	}

	core := ws.NewCoordinator(ws.Config{
		LockTimeout:     cfg.Room.LockTimeout,
		ClientBuffer:    cfg.Room.ClientBuffer,
		SamplerCapacity: cfg.Sampler.Capacity,
		PingInterval:    cfg.Sampler.PingInterval,
	}, logger, sessionMetrics, directory, notifier)

	upgrader := ws.NewUpgrader(cfg.HTTP.AllowedOrigins)

	sessionHandler := session.NewHandler(core, authorizer, upgrader, cfg.Room.ClientBuffer, publisher)
	adminHandler := admin.NewHandler(core)
	healthHandler := health.NewHandler()

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})

	app := api.NewApplication(*cfg, sessionHandler, adminHandler, healthHandler, logger, rl, sessionMetrics)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
