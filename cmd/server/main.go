package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/database"
	"github.com/referralhub/backend/internal/handlers"
	"github.com/referralhub/backend/internal/jobs"
	"github.com/referralhub/backend/internal/logger"
	"github.com/referralhub/backend/internal/middleware"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/routes"
	"github.com/referralhub/backend/internal/security/audit"
	"github.com/referralhub/backend/internal/services/auth"
	"github.com/referralhub/backend/internal/services/certificate"
	"github.com/referralhub/backend/internal/services/email"
	"github.com/referralhub/backend/internal/services/task"
	"github.com/referralhub/backend/internal/services/users"
	"github.com/referralhub/backend/internal/services/workflow"
	"github.com/referralhub/backend/internal/session"
	"github.com/referralhub/backend/internal/utils"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.New,
			provideDatabase,
			provideRedis,
			provideRevocationStore,
			provideArtifactStore,
			provideQueue,
			provideTransactionIDs,
			provideEmailService,
			provideCertificateService,
			provideEngine,
			provideAuthService,
			provideRateLimiter,
			provideRouter,
			audit.NewLogger,
			users.NewService,
			func(db *gorm.DB, auditLogger *audit.Logger, log *zap.Logger) *task.Service {
				return task.NewService(db, auditLogger, log)
			},
		),
		fx.Invoke(
			registerJobHandlers,
			runScheduler,
			runServer,
		),
		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	app.Run()
}

func provideDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.InitDB(cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return database.Close(db)
		},
	})
	return db, nil
}

func provideRedis(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	client, err := session.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}

	log.Info("connected to redis")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func provideRevocationStore(client *redis.Client) session.RevocationStore {
	return session.NewRedisRevocationStore(client)
}

func provideArtifactStore(cfg *config.Config) (certificate.ArtifactStore, error) {
	client, err := certificate.NewMinioClient(context.Background(), cfg.Minio)
	if err != nil {
		return nil, err
	}
	return certificate.NewMinioStore(client, cfg.Minio), nil
}

func provideQueue(db *gorm.DB, cfg *config.Config, log *zap.Logger) *queue.Queue {
	return queue.NewQueue(db, cfg.Outbox, log)
}

func provideTransactionIDs() (*utils.TransactionIDGenerator, error) {
	return utils.NewTransactionIDGenerator(1)
}

func provideEmailService(cfg *config.Config) *email.EmailService {
	return email.NewEmailService(cfg.SMTP, cfg.FrontendURL)
}

func provideCertificateService(db *gorm.DB, cfg *config.Config, store certificate.ArtifactStore, mailer *email.EmailService, q *queue.Queue, auditLogger *audit.Logger, log *zap.Logger) *certificate.Service {
	renderer := certificate.NewRenderer(cfg.Certificate.IssuerName)
	return certificate.NewService(db, renderer, store, mailer, q, auditLogger, cfg.Certificate, log)
}

func provideEngine(db *gorm.DB, cfg *config.Config, q *queue.Queue, auditLogger *audit.Logger, txids *utils.TransactionIDGenerator, log *zap.Logger) *workflow.Engine {
	return workflow.NewEngine(db, q, auditLogger, txids, workflow.Options{
		MinimumRedeemPoints: cfg.Redeem.MinimumPoints,
	}, log)
}

func provideAuthService(db *gorm.DB, cfg *config.Config, revocations session.RevocationStore, auditLogger *audit.Logger, log *zap.Logger) *auth.Service {
	tokens := utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Expiration)
	return auth.NewService(db, tokens, revocations, auditLogger, cfg.Auth, cfg.Google, log)
}

func provideRateLimiter(lc fx.Lifecycle, cfg *config.Config) *middleware.RateLimiter {
	rl := middleware.NewRateLimiter(cfg.RateLimit)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			rl.Stop()
			return nil
		},
	})
	return rl
}

type routerParams struct {
	fx.In

	Config       *config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	Queue        *queue.Queue
	Audit        *audit.Logger
	Auth         *auth.Service
	Tasks        *task.Service
	Users        *users.Service
	Engine       *workflow.Engine
	Certificates *certificate.Service
	RateLimiter  *middleware.RateLimiter
}

func provideRouter(p routerParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestLogger(p.Log),
		middleware.Recovery(p.Log),
		middleware.CORSMiddleware(p.Config.FrontendURL),
		middleware.SecureHeadersMiddleware(middleware.DefaultSecureHeadersConfig(p.Config.IsProduction())),
	)

	routes.RegisterRoutes(router, routes.Handlers{
		Auth: handlers.NewAuthHandler(p.Auth, handlers.SessionCookie{
			Name:   p.Config.JWT.CookieName,
			Secure: p.Config.IsProduction(),
		}),
		Tasks:        handlers.NewTaskHandler(p.Tasks),
		Submissions:  handlers.NewSubmissionHandler(p.DB, p.Engine),
		Redeem:       handlers.NewRedeemHandler(p.DB, p.Engine),
		Certificates: handlers.NewCertificateHandler(p.DB, p.Certificates),
		Users:        handlers.NewUserHandler(p.Users),
		Audit:        handlers.NewAuditHandler(p.Audit),
		Jobs:         handlers.NewJobHandler(p.Queue, p.Audit),
		Health:       handlers.NewHealthHandler(p.DB),
	}, middleware.AuthMiddleware(p.Auth, p.Config.JWT.CookieName), p.RateLimiter)

	return router
}

func registerJobHandlers(q *queue.Queue, db *gorm.DB, certificates *certificate.Service, mailer *email.EmailService) {
	jobs.RegisterAllJobHandlers(q, db, certificates, mailer)
}

func runScheduler(lc fx.Lifecycle, q *queue.Queue) {
	scheduler := queue.NewScheduler(q)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
}

func runServer(lc fx.Lifecycle, cfg *config.Config, router *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("server started", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			log.Info("shutting down server")
			return srv.Shutdown(shutdownCtx)
		},
	})
}
