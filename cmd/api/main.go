package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-portal/internal/api/http"
	"github.com/spec-kit/helpdesk-portal/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/config"
	"github.com/spec-kit/helpdesk-portal/internal/events"
	"github.com/spec-kit/helpdesk-portal/internal/notify"
	"github.com/spec-kit/helpdesk-portal/internal/observability"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/retry"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	"github.com/spec-kit/helpdesk-portal/internal/store"
)

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

	pool, err := store.NewPool(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Postgres.RunMigrations {
		if err := store.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	feed := store.NewChangeFeed(cfg.Redis, logger)
	defer feed.Close()

	documents := store.NewPostgres(ctx, pool, feed, logger)
	blobs := store.NewPostgresBlobs(pool, cfg.App.PublicBaseURL)

	ticketRepo := repository.NewTicketRepository(documents)
	categoryRepo := repository.NewCategoryRepository(documents)
	userRepo := repository.NewUserRepository(documents)

	metrics := observability.NewMetrics()
	retryPolicy := retry.New(cfg.Retry, logger).WithMetrics(metrics)
	dispatcher := events.NewInMemoryDispatcher()
	center := notify.NewCenter(cfg.Notify.TTL())
	notify.NewEventLogger(dispatcher, logger).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		Blobs:         blobs,
		Retry:         retryPolicy,
		Dispatcher:    dispatcher,
		Notifications: center,
		Logger:        logger,
	})
	categoryService := service.NewCategoryService(service.CategoryDependencies{
		CategoryRepo:  categoryRepo,
		Retry:         retryPolicy,
		Dispatcher:    dispatcher,
		Notifications: center,
		Logger:        logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	denylist := auth.NewDenylist(feed.Client())
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: userRepo,
		Tokens:   tokens,
		Denylist: denylist,
		Retry:    retryPolicy,
		Logger:   logger,
	})
	sessions := auth.NewSessionContext(tokens, userRepo, denylist, retryPolicy, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, documents, feed),
		Session:       handlers.NewSessionHandler(authService),
		Tickets:       handlers.NewTicketsHandler(ticketService, categoryService),
		Categories:    handlers.NewCategoriesHandler(categoryService),
		Blobs:         handlers.NewBlobsHandler(blobs),
		Notifications: handlers.NewNotificationsHandler(center),
		Sessions:      sessions,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
