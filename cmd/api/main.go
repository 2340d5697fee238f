package main

import (
	"context"
	"log"

	"cute-chat/config"
	"cute-chat/internal/handler"
	"cute-chat/internal/metrics"
	"cute-chat/internal/redis"
	"cute-chat/internal/repository"
	"cute-chat/internal/server"
	"cute-chat/internal/services"
	"cute-chat/internal/storage"
	"cute-chat/internal/view"
	"cute-chat/internal/websocket"
	"cute-chat/pkg/database"
	"cute-chat/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx := context.Background()

	// Connect to Database
	client, err := database.Connect(ctx, cfg, l)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(client)

	db := client.Database(cfg.MongoDB)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	if report, err := database.NormalizeTimestamps(ctx, db); err != nil {
		l.Warnf("Failed to normalize message timestamps: %v", err)
	} else if report.Converted > 0 || report.Remaining > 0 {
		l.Infof("Normalized %d message timestamps, %d unparseable", report.Converted, report.Remaining)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var users repository.UserRepository = repository.NewUserRepository(db)
	var (
		limiter  *redis.RateLimiter
		presence *redis.PresenceStore
		viewers  *redis.Subscriber
	)
	if cfg.RedisEnabled() {
		rc, err := redis.Connect(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			l.Warnf("Redis unavailable, running without sender cache: %v", err)
		} else {
			defer rc.Close()
			users = repository.NewCachedUserRepository(users, redis.NewCacheStore(rc, redis.CacheConfig{UserTTL: cfg.UserCacheTTL}), l)
			limiter = redis.NewRateLimiter(rc, redis.DefaultRateLimitConfig())
			presence = redis.NewPresenceStore(rc, redis.NewPublisher(rc), 0)
			viewers = redis.NewSubscriber(rc)
		}
	}

	var (
		viewUploader   view.Uploader
		uploadsHandler *handler.UploadHandler
	)
	if cfg.S3Enabled() {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Fatalf("Failed to configure object storage: %v", err)
		}
		images := services.NewImageUploadService(s3Client, services.DefaultMaxImageBytes)
		viewUploader = images
		uploadsHandler = handler.NewUploadHandler(images, services.DefaultMaxImageBytes, l)
	} else {
		l.Warnf("S3 is not configured, image uploads are disabled")
		uploadsHandler = handler.NewUploadHandler(nil, 0, l)
	}

	base := view.Options{
		PageSize:       cfg.PageSize,
		Messages:       repository.NewMessageRepository(db, l),
		Users:          users,
		Conversations:  repository.NewConversationRepository(db),
		Uploader:       viewUploader,
		ReceiptTimeout: cfg.ReceiptTimeout,
		Metrics:        m,
	}

	hub := websocket.NewHub()
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	var sendLimiter websocket.SendLimiter
	if limiter != nil {
		sendLimiter = limiter
	}
	wsHandler := websocket.NewHandler(base, hub, nil, sendLimiter, l)
	if presence != nil {
		wsHandler.WithPresence(presence)
		go websocket.RelayViewers(hubCtx, viewers, hub, l)
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		WebSocket: wsHandler,
		Upload:    uploadsHandler,
		Health: func(ctx context.Context) error {
			return database.HealthCheck(ctx, client)
		},
		Metrics: reg,
		Limiter: limiter,
	})

	if err := srv.Start(); err != nil {
		l.Errorf("Server stopped with error: %v", err)
	}
}
