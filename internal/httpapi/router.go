package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokentra/internal/archive"
	"tokentra/internal/attribution"
	"tokentra/internal/auth"
	"tokentra/internal/config"
	"tokentra/internal/ingest"
	"tokentra/internal/middleware"
	"tokentra/internal/notify"
	"tokentra/internal/optimize"
	"tokentra/internal/processor"
	"tokentra/internal/queue"
	"tokentra/internal/ratelimit"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

// Dependencies aggregates the long-lived services the HTTP layer owns,
// exposed so main can shut them down in order.
type Dependencies struct {
	DB       *storage.DB
	Worker   *processor.Worker
	Archiver *archive.Archiver
	Optimize *optimize.Service
	Logger   *utils.Logger
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	logger := utils.NewLogger("tokentra")

	db, err := storage.NewDB(storage.DBConfig{
		DSN:                  cfg.Database.URL,
		MaxOpenConns:         cfg.Database.MaxOpenConns,
		MaxIdleConns:         cfg.Database.MaxIdleConns,
		ConnMaxLifetime:      cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:      cfg.Database.ConnMaxIdleTime,
		APIKeyCacheSize:      cfg.Cache.APIKeyCacheSize,
		APIKeyCacheTTL:       cfg.Cache.APIKeyCacheTTL,
		AttributionCacheSize: cfg.Cache.AttributionCacheSize,
		AttributionCacheTTL:  cfg.Cache.AttributionCacheTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Repositories
	apiKeyRepo := storage.NewAPIKeyRepository(db)
	usageRepo := storage.NewUsageRepository(db)
	directoryRepo := storage.NewDirectoryRepository(db)
	alertRepo := storage.NewAlertRepository(db)
	budgetRepo := storage.NewBudgetRepository(db)
	notificationRepo := storage.NewNotificationRepository(db)
	recommendationRepo := storage.NewRecommendationRepository(db)
	routingRuleRepo := storage.NewRoutingRuleRepository(db)
	userRepo := storage.NewUserRepository(db)

	// Rate limiting. Redis keeps the counters shared across instances;
	// without it each instance counts on its own.
	var counterStore ratelimit.CounterStore = ratelimit.NewMemoryStore()
	if cfg.Redis.Enabled {
		redisClient, err := storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		counterStore = ratelimit.NewRedisStore(redisClient)
	}
	limiter := ratelimit.NewLimiter(counterStore, logger)

	validator := auth.NewValidator(apiKeyRepo, cfg.RateLimit.DefaultPerMinute, cfg.RateLimit.DefaultPerDay, logger)
	resolver := attribution.NewResolver(directoryRepo, db.GetAttributionCache(), logger)

	// Event queue for async alert and budget evaluation
	queueCfg := queue.DefaultConfig("usage")
	queueCfg.BatchSize = cfg.Processor.BatchSize
	queueCfg.BatchTimeout = cfg.Processor.BatchTimeout
	queueCfg.MaxRetries = cfg.Processor.MaxRetries
	queueCfg.RetryBackoff = cfg.Processor.RetryBackoff
	queueCfg.UseRedis = cfg.Processor.UseRedis && cfg.Redis.Enabled

	var (
		q   queue.Queue
		dlq queue.DeadLetterQueue
	)
	if queueCfg.UseRedis {
		queueCfg.RedisAddr = cfg.Redis.Address
		queueCfg.RedisPassword = cfg.Redis.Password
		queueCfg.RedisDB = cfg.Redis.DB
		q, err = queue.NewRedisQueue(queueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create usage queue: %w", err)
		}
		dlq, err = queue.NewRedisDeadLetterQueue(queueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create usage DLQ: %w", err)
		}
	} else {
		q = queue.NewMemoryQueue(queueCfg)
		dlq = queue.NewMemoryDeadLetterQueue()
	}

	var notifier processor.Notifier = notify.NoopNotifier{}
	if cfg.Email.Enabled {
		notifier = notify.NewEmailNotifier(cfg.Email, userRepo, logger)
	}

	proc := processor.NewProcessor(alertRepo, budgetRepo, usageRepo, notificationRepo, notifier, logger)
	worker := processor.NewWorker(q, dlq, proc, queueCfg, logger)
	dispatcher := processor.NewQueueDispatcher(q, logger)

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		writer, err := archive.NewS3Writer(context.Background(),
			cfg.Archive.S3Bucket, cfg.Archive.S3Region, cfg.Archive.S3Prefix, cfg.Archive.PodName, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize archive writer: %w", err)
		}
		archiver = archive.NewArchiver(writer, cfg.Archive.BufferSize, cfg.Archive.FlushSize, cfg.Archive.FlushInterval, logger)
		worker.SetArchive(archiver)
	}

	pipeline := ingest.NewPipeline(resolver, usageRepo, dispatcher, logger)
	optimizeService := optimize.NewService(usageRepo, recommendationRepo, routingRuleRepo, logger)

	worker.Start()

	deps := &Dependencies{
		DB:       db,
		Worker:   worker,
		Archiver: archiver,
		Optimize: optimizeService,
		Logger:   logger,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg, routes{
		ingest:          NewIngestHandler(validator, limiter, pipeline, cfg.Version, logger),
		sdkConfig:       NewSDKConfigHandler(validator, routingRuleRepo, logger),
		auth:            NewAuthHandler(userRepo, cfg.JWTSecret, logger),
		recommendations: NewRecommendationsHandler(recommendationRepo, optimizeService, logger),
		notifications:   NewNotificationsHandler(notificationRepo, logger),
	})

	return mux, deps, nil
}

type routes struct {
	ingest          *IngestHandler
	sdkConfig       *SDKConfigHandler
	auth            *AuthHandler
	recommendations *RecommendationsHandler
	notifications   *NotificationsHandler
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config, r routes) {
	// SDK endpoints authenticate with API keys inside the handlers
	mux.Handle("/v1/sdk/ingest", r.ingest)
	mux.Handle("/v1/sdk/config", r.sdkConfig)

	// Dashboard login is public
	mux.HandleFunc("/v1/auth/login", r.auth.Login)

	// Dashboard endpoints require a session token
	session := middleware.SessionMiddleware(cfg.JWTSecret)
	mux.Handle("/v1/optimization", session(r.recommendations))
	mux.Handle("/v1/optimization/", session(r.recommendations))
	mux.Handle("/v1/notifications", session(r.notifications))
	mux.Handle("/v1/notifications/", session(r.notifications))

	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.DB.Health(req.Context()); err != nil {
			deps.Logger.Error("health check failed", "error", err)
			utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": cfg.Version})
	})

	mux.Handle("/metrics", promhttp.Handler())
}
