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

	httptransport "github.com/spec-kit/helpdesk-workflow/internal/api/http"
	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/persistence"
	"github.com/spec-kit/helpdesk-workflow/internal/ratelimit"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	"github.com/spec-kit/helpdesk-workflow/internal/repository/memstore"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
	"github.com/spec-kit/helpdesk-workflow/internal/worker"
)

type repositories struct {
	tickets       repository.TicketRepository
	stages        repository.ApprovalStageRepository
	requests      repository.ApprovalRequestRepository
	rules         repository.AssignmentRuleRepository
	teams         repository.TeamRepository
	users         repository.UserRepository
	history       repository.TicketHistoryRepository
	notifications repository.NotificationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	mongo, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("failed to connect mongo", zap.Error(err))
	}
	defer mongo.Close(context.Background())

	repos := buildRepositories(pg, mongo)
	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartEventRelay(dispatcher, redis, cfg.Notification.EventsChannel, logger)

	audit := service.NewAuditRecorder(repos.history)
	notificationService := service.NewNotificationService(repos.notifications, redis, cfg.Notification.RedisChannel, logger)

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		RuleRepo:   repos.rules,
		TeamRepo:   repos.teams,
		TicketRepo: repos.tickets,
		Audit:      audit,
		Notifier:   notificationService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	chain := service.NewApprovalChainBuilder(service.ApprovalChainDependencies{
		StageRepo:   repos.stages,
		RequestRepo: repos.requests,
		Resolver:    assignmentService,
		Audit:       audit,
		Notifier:    notificationService,
		Logger:      logger,
	})
	approvalService := service.NewApprovalService(service.ApprovalDependencies{
		TicketRepo:  repos.tickets,
		RequestRepo: repos.requests,
		StageRepo:   repos.stages,
		UserRepo:    repos.users,
		Audit:       audit,
		Notifier:    notificationService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		RequestRepo: repos.requests,
		Audit:       audit,
		Assignment:  assignmentService,
		Chain:       chain,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, repos.users)

	var rateLimit fiber.Handler
	if cfg.RateLimit.Enabled() {
		rateLimit = httptransport.RateLimitMiddleware(buildLimiter(ctx, cfg.RateLimit, redis, logger), logger, metrics)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	dependencies := []handlers.Dependency{{Name: "redis", Ping: redis.Ping}}
	if pg.Enabled() {
		dependencies = append(dependencies, handlers.Dependency{Name: "postgres", Ping: pg.Ping})
	}
	if mongo.Enabled() {
		dependencies = append(dependencies, handlers.Dependency{Name: "mongo", Ping: mongo.Ping})
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, dependencies...),
		Tickets:        handlers.NewTicketsHandler(ticketService, approvalService),
		Approvals:      handlers.NewApprovalsHandler(approvalService),
		Rules:          handlers.NewRulesHandler(assignmentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
		RateLimit:      rateLimit,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// buildRepositories prefers postgres and falls back to the in-memory store.
// Notifications move to mongo when it is configured.
func buildRepositories(pg *persistence.Postgres, mongo *persistence.Mongo) repositories {
	var repos repositories
	if pg.Enabled() {
		pool := pg.PoolHandle()
		repos = repositories{
			tickets:       repository.NewTicketRepository(pool),
			stages:        repository.NewApprovalStageRepository(pool),
			requests:      repository.NewApprovalRequestRepository(pool),
			rules:         repository.NewAssignmentRuleRepository(pool),
			teams:         repository.NewTeamRepository(pool),
			users:         repository.NewUserRepository(pool),
			history:       repository.NewTicketHistoryRepository(pool),
			notifications: repository.NewNotificationRepository(pool),
		}
	} else {
		store := memstore.New()
		repos = repositories{
			tickets:       store.Tickets(),
			stages:        store.Stages(),
			requests:      store.Requests(),
			rules:         store.Rules(),
			teams:         store.Teams(),
			users:         store.Users(),
			history:       store.History(),
			notifications: store.Notifications(),
		}
	}
	if mongo.Enabled() {
		repos.notifications = repository.NewMongoNotificationRepository(mongo.DB)
	}
	return repos
}

func buildLimiter(ctx context.Context, cfg config.RateLimitConfig, redis *persistence.Redis, logger *zap.Logger) ratelimit.Limiter {
	if err := redis.Ping(ctx); err == nil {
		return ratelimit.NewRedisLimiter(redis.Client, cfg.Max, cfg.Window())
	}
	logger.Warn("redis unavailable; rate limiting per instance")
	return ratelimit.NewMemoryLimiter(cfg.Max, cfg.Window())
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
