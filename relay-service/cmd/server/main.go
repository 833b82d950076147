package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guard-relay/pkg/database"
	"guard-relay/pkg/migration"
	"guard-relay/relay-service/internal/clients"
	"guard-relay/relay-service/internal/config"
	"guard-relay/relay-service/internal/display"
	"guard-relay/relay-service/internal/handler"
	"guard-relay/relay-service/internal/messaging"
	"guard-relay/relay-service/internal/relay"
	"guard-relay/shared/authutils"
	sharedDatabase "guard-relay/shared/database"
	"guard-relay/shared/database/migrations"
	"guard-relay/shared/interfaces"
	sharedLogger "guard-relay/shared/logger"
	sharedMiddleware "guard-relay/shared/middleware"
	"guard-relay/shared/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	flag.Parse()

	// --- Загрузка конфигурации ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Логгер ---
	logger, err := sharedLogger.New(sharedLogger.Config{
		Level:    cfg.Log.Level,
		Encoding: cfg.Log.Encoding,
		Service:  "relay-service",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("Logger initialized", zap.String("logLevel", cfg.Log.Level), zap.String("hostMode", cfg.HostMode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Хранилище показанных уведомлений ---
	store, closeStore := setupStore(ctx, cfg, logger)
	defer closeStore()

	// --- Журнал доставки (опционально) ---
	var journal interfaces.DeliveryJournal
	var journalReader handler.JournalReader
	if cfg.Database.URL != "" {
		db, err := setupJournalDatabase(ctx, cfg, logger)
		if err != nil {
			logger.Error("Delivery journal disabled: database setup failed", zap.Error(err))
		} else {
			defer db.Close()
			pgJournal := sharedDatabase.NewPgDeliveryJournal(db.Pool, logger)
			journal, journalReader = pgJournal, pgJournal
		}
	} else {
		logger.Info("DATABASE_URL not set, delivery journal disabled")
	}

	// --- RabbitMQ: ошибка подключения не останавливает сервис ---
	var rabbitConn *amqp.Connection
	if cfg.RabbitMQ.URI != "" {
		rabbitConn, err = messaging.Connect(ctx, cfg.RabbitMQ.URI, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay, logger)
		if err != nil {
			logger.Error("RabbitMQ unavailable, push messages will not be received", zap.Error(err))
		} else {
			defer rabbitConn.Close()
		}
	} else {
		logger.Warn("RABBITMQ_URI not set, push messages will not be received")
	}

	var tokenSink display.InvalidTokenSink
	if rabbitConn != nil {
		tokenSink, err = messaging.NewRabbitTokenDeletionPublisher(rabbitConn, cfg.TokenDeletionQueue, logger)
		if err != nil {
			logger.Error("Token deletion publisher unavailable, invalid tokens will only be logged", zap.Error(err))
			tokenSink = nil
		}
	}

	// --- Окна и хосты отображения ---
	registry := clients.NewRegistry(logger)
	relayOpts := relay.Options{
		FallbackTitle: cfg.Notification.FallbackTitle,
		FallbackBody:  cfg.Notification.FallbackBody,
		Icon:          cfg.Notification.Icon,
		Badge:         cfg.Notification.Badge,
		Origin:        cfg.Origin,
		TargetPath:    cfg.Notification.TargetPath,
	}
	clickURL, err := relay.ResolveTargetURL(relayOpts.Origin, relayOpts.TargetPath)
	if err != nil {
		logger.Fatal("Invalid relay origin", zap.Error(err))
	}

	hosts, opener := setupHosts(ctx, cfg, registry, clickURL, tokenSink, logger)
	registration := display.NewMulti(logger, hosts...)

	notificationRelay, err := relay.New(registration, registry, opener, store, journal, relayOpts, logger)
	if err != nil {
		logger.Fatal("Failed to create relay", zap.Error(err))
	}
	registry.SetClickHandler(func(ctx context.Context, event models.ClickEvent) {
		// Ошибка уже залогирована внутри relay
		_, _ = notificationRelay.HandleNotificationClick(ctx, event)
	})

	// --- Консьюмер ---
	var consumer *messaging.Consumer
	consumerDone := make(chan error, 1)
	if rabbitConn != nil {
		processor := messaging.NewProcessor(logger, notificationRelay)
		consumer, err = messaging.NewConsumer(rabbitConn, logger, cfg.PushQueueName, cfg.WorkerConcurrency, processor)
		if err != nil {
			logger.Error("Failed to create consumer", zap.Error(err))
			consumer = nil
		}
	}
	if consumer != nil {
		go func() {
			err := consumer.Start()
			if err != nil {
				logger.Error("Consumer stopped with error", zap.Error(err))
			}
			consumerDone <- err
		}()
	}

	// --- HTTP ---
	var verifier sharedMiddleware.TokenVerifier = rejectAllTokens
	if cfg.JWTSecret != "" {
		jwtVerifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, logger)
		if err != nil {
			logger.Fatal("Failed to create JWT verifier", zap.Error(err))
		}
		verifier = jwtVerifier.VerifyToken
	}
	relayHandler := handler.NewRelayHandler(notificationRelay, registry, journalReader, verifier, cfg.InterServiceSecret, cfg.GetAllowedOrigins(), logger)
	router := setupRouter(cfg, relayHandler, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// --- Ожидание сигнала ---
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
	case err := <-consumerDone:
		logger.Error("Consumer exited, shutting down", zap.Error(err))
		consumer = nil
	}

	// --- Graceful shutdown ---
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Сначала прекращаем прием: очередь, HTTP, WebSocket. Потом ждем начатые клики.
	if consumer != nil {
		consumer.Stop()
		<-consumerDone
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	registry.CloseAll()
	if err := notificationRelay.Wait(shutdownCtx); err != nil {
		logger.Warn("Pending click handling did not finish in time", zap.Error(err))
	}
	logger.Info("Relay service stopped")
}

func rejectAllTokens(ctx context.Context, token string) (uuid.UUID, error) {
	return uuid.Nil, models.ErrTokenInvalid
}

func setupStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (interfaces.NotificationStore, func()) {
	if cfg.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, using in-memory notification store", zap.Duration("ttl", cfg.Notification.TTL))
		return sharedDatabase.NewMemoryNotificationStore(cfg.Notification.TTL), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("Redis unavailable, falling back to in-memory notification store", zap.Error(err))
		_ = client.Close()
		return sharedDatabase.NewMemoryNotificationStore(cfg.Notification.TTL), func() {}
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	return sharedDatabase.NewRedisNotificationStore(client, cfg.Notification.TTL, logger), func() { _ = client.Close() }
}

func setupJournalDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.Database, error) {
	db, err := database.New(ctx, database.Config{
		URL:            cfg.Database.URL,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: 10 * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}
	migrator := migration.NewMigrator(migration.Config{MigrationsPath: ".", MigrationsFS: migrations.FS}, db.Pool, logger)
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// setupHosts собирает хосты отображения для выбранного режима. Ошибки инициализации
// SDK логируются, сервис продолжает работу с остальными хостами.
func setupHosts(ctx context.Context, cfg *config.Config, registry *clients.Registry, clickURL string, sink display.InvalidTokenSink, logger *zap.Logger) ([]display.Host, relay.WindowOpener) {
	if cfg.HostMode == config.HostModeDesktop {
		desktop, err := display.NewDesktopHost(cfg.Desktop, logger)
		if err != nil {
			logger.Error("Desktop host unavailable, using stub host", zap.Error(err))
			return []display.Host{display.NewStubHost(logger)}, nil
		}
		return []display.Host{desktop}, desktop
	}

	hosts := []display.Host{registry}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	tokens := display.NewHTTPTokenProvider(httpClient, cfg.TokenService.URL, logger, cfg.InterServiceSecret)

	fcmHost, err := display.NewFCMHost(ctx, cfg.FCM, clickURL, tokens, sink, logger)
	if err != nil {
		logger.Error("FCM host initialization failed", zap.Error(err))
	} else if fcmHost != nil {
		hosts = append(hosts, fcmHost)
	}

	apnsHost, err := display.NewAPNSHost(cfg.APNS, clickURL, tokens, sink, logger)
	if err != nil {
		logger.Error("APNS host initialization failed", zap.Error(err))
	} else if apnsHost != nil {
		hosts = append(hosts, apnsHost)
	}

	if len(hosts) == 1 {
		logger.Warn("No push hosts configured, notifications reach connected windows only")
	}
	return hosts, registry
}

func setupRouter(cfg *config.Config, h *handler.RelayHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(sharedMiddleware.GinZapLogger(logger))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", sharedMiddleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Middleware должен быть подключен до роутов, иначе gin не включит его в их цепочки
	p.Use(router)

	h.RegisterRoutes(router)
	return router
}
