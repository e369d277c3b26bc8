package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-escalation-service/internal/api/http"
	"github.com/spec-kit/sla-escalation-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-escalation-service/internal/auth"
	"github.com/spec-kit/sla-escalation-service/internal/config"
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/observability"
	"github.com/spec-kit/sla-escalation-service/internal/persistence"
	"github.com/spec-kit/sla-escalation-service/internal/push"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
	"github.com/spec-kit/sla-escalation-service/internal/repository/memstore"
	"github.com/spec-kit/sla-escalation-service/internal/service"
	"github.com/spec-kit/sla-escalation-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name, cfg.App.Version)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	repos := buildRepositories(pg)
	dispatcher := events.NewInMemoryDispatcher(logger)
	instanceID := uuid.NewString()

	hub := push.NewHub(logger, metrics.PushSubscribed)
	var publisher push.Publisher = hub
	var broker *push.RedisBroker
	if redis != nil {
		broker = push.NewRedisBroker(redis.Client, hub, logger)
		publisher = broker
	}

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		StaffRepo: repos.Staff,
		Logger:    logger,
	})
	staffService := service.NewStaffService(cfg, repos.Staff)
	slaConfigService := service.NewSLAConfigService(repos.SLAConfigs, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    repos.Tickets,
		EventRepo:     repos.TicketEvents,
		ViolationRepo: repos.Violations,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	scanner := service.NewSLAScanner(service.SLAScannerDependencies{
		TicketRepo:    repos.Tickets,
		ViolationRepo: repos.Violations,
		ConfigRepo:    repos.SLAConfigs,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.Notifications,
		EscalationRepo:   repos.Escalations,
		Publisher:        publisher,
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		EscalationRepo: repos.Escalations,
		AssignmentRepo: repos.Assignments,
		StaffRepo:      repos.Staff,
		Notifier:       notificationService,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		DefaultTTL:     cfg.Escalation.DefaultTTL(),
	})
	worker.StartNotificationWorker(dispatcher, notificationService, publisher)

	if cfg.Auth.BootstrapAdminEmail != "" {
		created, err := staffService.EnsureAdmin(ctx, "Administrator", cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword)
		if err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap admin created", zap.String("email", cfg.Auth.BootstrapAdminEmail))
		}
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.Staff, cfg.Auth.ServiceAPIKey)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ReadTimeout:           cfg.App.RequestTimeout(),
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, scanner),
		Staff:          handlers.NewStaffHandler(authService, staffService),
		SLA:            handlers.NewSLAHandler(slaConfigService, scanner),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Escalations:    handlers.NewEscalationsHandler(escalationService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	var locker worker.Locker
	if redis != nil {
		locker = redis
	}

	var wg sync.WaitGroup
	runBackground := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			logger.Debug("background task exited", zap.String("task", name))
		}()
	}

	runBackground("sla_worker", worker.NewSLAWorker(cfg.SLA, scanner, locker, instanceID, metrics, logger).Start)
	runBackground("expiry_worker", worker.NewExpiryWorker(cfg.Escalation, escalationService, logger).Start)
	if broker != nil {
		runBackground("push_broker", func(ctx context.Context) {
			if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("push broker stopped", zap.Error(err))
			}
		})
	}

	pushServer := &http.Server{
		Addr:              cfg.Push.Addr,
		Handler:           push.NewServer(hub, authMiddleware, cfg.Push.Debounce(), logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("push gateway listening", zap.String("addr", cfg.Push.Addr))
		if err := pushServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("push gateway listen", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("api listening", zap.String("addr", cfg.App.Addr()), zap.String("instance_id", instanceID))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := pushServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("push gateway shutdown", zap.Error(err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("api shutdown", zap.Error(err))
	}
	wg.Wait()
}

type repositories struct {
	Tickets       repository.TicketRepository
	TicketEvents  repository.TicketEventRepository
	SLAConfigs    repository.SLAConfigRepository
	Violations    repository.SLAViolationRepository
	Escalations   repository.EscalationRepository
	Notifications repository.NotificationRepository
	Assignments   repository.ConversationAssignmentRepository
	Staff         repository.StaffRepository
}

// buildRepositories uses Postgres when configured and the in-memory store otherwise.
func buildRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		mem := memstore.New(memstore.WithDefaultSLAConfigs()).Repositories()
		return repositories(mem)
	}
	pool := pg.PoolHandle()
	return repositories{
		Tickets:       repository.NewTicketRepository(pool),
		TicketEvents:  repository.NewTicketEventRepository(pool),
		SLAConfigs:    repository.NewSLAConfigRepository(pool),
		Violations:    repository.NewSLAViolationRepository(pool),
		Escalations:   repository.NewEscalationRepository(pool),
		Notifications: repository.NewNotificationRepository(pool),
		Assignments:   repository.NewConversationAssignmentRepository(pool),
		Staff:         repository.NewStaffRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
