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

	httptransport "github.com/spec-kit/maintenance-service/internal/api/http"
	"github.com/spec-kit/maintenance-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/config"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/ledger"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/repository/memory"
	"github.com/spec-kit/maintenance-service/internal/service"
	"github.com/spec-kit/maintenance-service/internal/worker"
	"github.com/spec-kit/maintenance-service/internal/workflow"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
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

	shutdownTracing := observability.SetupTracing(cfg.Telemetry, cfg.App.Version, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		store     repository.Store
		operators repository.OperatorRepository
	)
	if pg.Configured() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, cfg.Postgres.DSN, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle(), cfg.Store.LockTimeout())
		operators = repository.NewOperatorRepository(pg.PoolHandle())
	} else {
		store = memory.NewStore(cfg.Store.LockTimeout())
		operators = memory.NewOperators()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	policy, err := workflow.ParseStartPolicy(cfg.Workflow.StartPolicy)
	if err != nil {
		logger.Fatal("invalid start policy", zap.Error(err))
	}

	clk := clock.Real()
	metrics := observability.NewMetrics(cfg.App.Name)
	dispatcher := events.NewInMemoryDispatcher(logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	stockLedger := ledger.New(clk)
	deps := service.Dependencies{
		Store:      store,
		Ledger:     stockLedger,
		Machine:    workflow.NewMachine(stockLedger, policy, clk),
		Numbers:    persistence.NewTicketNumberer(redis, cfg.Workflow.TicketNumberPrefix, logger),
		Operators:  operators,
		AlertCache: persistence.NewAlertCache(redis, cfg.Alerts.CacheTTL()),
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
		Metrics:    metrics,
		Retry: service.RetryPolicy{
			MaxAttempts:     uint(cfg.Store.RetryMaxAttempts),
			InitialInterval: cfg.Store.RetryInitialInterval(),
			MaxInterval:     cfg.Store.RetryMaxInterval(),
		},
		ExpiryWindow: cfg.Alerts.ExpiryWindow(),
	}
	ticketService := service.NewTicketService(deps)
	inventoryService := service.NewInventoryService(deps)
	authService := service.NewAuthService(cfg.Auth, operators, clk, logger)

	if err := authService.SeedAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("failed to seed admin operator", zap.Error(err))
	}

	workersDone := worker.Background{
		Notifications: notificationService,
		Sweeper:       worker.NewAlertSweeper(inventoryService, cfg.Alerts.SweepInterval(), logger),
		Logger:        logger,
	}.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{
				"code":    domainErr.Code,
				"message": domainErr.Message,
			}})
		},
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService, operators),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Materials:      handlers.NewMaterialsHandler(inventoryService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), operators),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	<-workersDone
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
