package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/inkmarket-service/internal/api/http"
	"github.com/spec-kit/inkmarket-service/internal/api/http/handlers"
	"github.com/spec-kit/inkmarket-service/internal/auth"
	"github.com/spec-kit/inkmarket-service/internal/config"
	"github.com/spec-kit/inkmarket-service/internal/events"
	"github.com/spec-kit/inkmarket-service/internal/notify"
	"github.com/spec-kit/inkmarket-service/internal/observability"
	"github.com/spec-kit/inkmarket-service/internal/persistence"
	"github.com/spec-kit/inkmarket-service/internal/repository"
	"github.com/spec-kit/inkmarket-service/internal/repository/memstore"
	"github.com/spec-kit/inkmarket-service/internal/service"
	"github.com/spec-kit/inkmarket-service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	production := cfg.App.IsProduction()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory credential store; data is lost on restart")
		store = memstore.New()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewActivityService(dispatcher, logger, metrics).RegisterHandlers()

	sink, err := newSink(cfg.Notification, logger)
	if err != nil {
		logger.Fatal("failed to configure email", zap.Error(err))
	}
	mailer := worker.NewNotificationWorker(sink, logger, cfg.Notification.Workers, cfg.Notification.QueueSize)
	links := notify.Links{BaseURL: cfg.Notification.FrontendURL}
	notifier := service.NewNotificationService(sink, mailer, links, dispatcher, logger)
	mailer.OnDone(notifier.HandleDeliveryResult)
	mailer.Start()

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Auth.SessionSecret(production), cfg.Auth.SessionTTL(production))

	authService := service.NewAuthService(service.AuthDependencies{
		Store:    store,
		Tokens:   tokens,
		Hasher:   hasher,
		Notifier: notifier,
		Events:   dispatcher,
		Logger:   logger,
	})
	accountService := service.NewAccountService(service.AccountDependencies{
		Store:    store,
		Sessions: authService,
		Hasher:   hasher,
		Notifier: notifier,
		Limiter:  service.NewRequestLimiter(redis.Client, cfg.RateLimit.Window, cfg.RateLimit.TokenRequests),
		Events:   dispatcher,
		Logger:   logger,
		TTLs: service.TokenTTLs{
			PasswordReset: cfg.Auth.PasswordResetTTL(),
			EmailChange:   cfg.Auth.EmailChangeTTL(),
			Reactivation:  cfg.Auth.ReactivationTTL(),
		},
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: production,
		ProxyHeader:           fiber.HeaderXForwardedFor,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), production)

	cookies := handlers.CookieSettings{Secure: production, TTL: cfg.Cookie.Lifetime(production)}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Users:          handlers.NewUsersHandler(authService, cookies),
		Accounts:       handlers.NewAccountHandler(accountService, cookies),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := mailer.Stop(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err))
	}
}

func newSink(cfg config.NotificationConfig, logger *zap.Logger) (notify.Sink, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not provided; emails are logged instead of sent")
		return notify.NewLogSink(logger), nil
	}
	return notify.NewSMTPSink(cfg)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
