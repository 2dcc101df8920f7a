// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"erp-sync-service/internal/config"
	"erp-sync-service/internal/db"
	"erp-sync-service/internal/erp"
	customerHandler "erp-sync-service/internal/handlers/customer"
	erpHandler "erp-sync-service/internal/handlers/erp"
	syncHandler "erp-sync-service/internal/handlers/sync"
	wsHandler "erp-sync-service/internal/handlers/websocket"
	"erp-sync-service/internal/middleware"
	"erp-sync-service/internal/pkg/jsonrpc"
	"erp-sync-service/internal/pkg/jwt"
	"erp-sync-service/internal/pkg/lock"
	"erp-sync-service/internal/pkg/session"
	"erp-sync-service/internal/repository/postgres"
	customersvc "erp-sync-service/internal/service/customer"
	"erp-sync-service/internal/service/scoring"
	"erp-sync-service/internal/service/syncer"
	"erp-sync-service/internal/websocket"
	wsHandlers "erp-sync-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	httpServer *http.Server
	pool       *pgxpool.Pool
	redis      *redis.Client

	// stops the hub and the scheduler
	cancel context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()

	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger, _ = zap.NewProduction()
	}

	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Start wires every component and blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	logger := s.logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{
		URL:      s.cfg.DatabaseURL,
		MaxConns: s.cfg.DBMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool

	dbWrapper := postgres.NewDB(pool)
	if err := dbWrapper.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}
	logger.Info("postgres ready")

	// ----- Run lock -----
	var locker syncer.Locker
	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
		Address:  s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		PoolSize: 10,
	})
	if err != nil {
		logger.Warn("redis unavailable, sync runs are serialized in-process only", zap.Error(err))
		locker = lock.NewLocalLocker()
	} else {
		s.redis = redisClient
		locker = lock.NewRedisLocker(redisClient, s.cfg.Sync.LockTTL, logger)
		logger.Info("redis ready", zap.String("addr", s.cfg.RedisAddr))
	}

	// ----- JWT -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- ERP -----
	transport := jsonrpc.NewHTTPTransport(s.cfg.ERP.URL, s.cfg.ERP.CallTimeout)
	sessionManager := session.NewManager(transport, session.Config{
		Credentials: session.Credentials{
			Database: s.cfg.ERP.Database,
			Login:    s.cfg.ERP.Login,
			Password: s.cfg.ERP.Password,
		},
		Lifetime:      s.cfg.ERP.SessionLifetime,
		RefreshWindow: s.cfg.ERP.RefreshWindow,
		CallTimeout:   s.cfg.ERP.CallTimeout,
		MaxRetries:    s.cfg.ERP.MaxRetries,
	}, logger)
	erpClient := erp.NewClient(sessionManager)

	// ----- Scoring -----
	thresholds, err := config.LoadScoring(s.cfg.ScoringConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load scoring thresholds: %w", err)
	}
	scorer := scoring.NewHeuristic(thresholds)

	// ----- Repositories -----
	avatarRepo := postgres.NewCustomerAvatarRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool, dbWrapper)
	runRepo := postgres.NewSyncRunRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(verifier, logger)
	hub.RegisterHandler(wsHandlers.NewSyncStatusHandler(sessionManager, runRepo))
	go hub.Run(ctx)

	// ----- Services -----
	opts := syncer.Options{
		Concurrency: s.cfg.Sync.Concurrency,
		PageSize:    s.cfg.Sync.BatchSize,
	}
	customerSync := syncer.NewCustomerSyncService(erpClient, avatarRepo, scorer, opts, logger)
	orderSync := syncer.NewOrderSyncService(erpClient, avatarRepo, orderRepo, opts, logger)
	runner := syncer.NewRunner(customerSync, orderSync, runRepo, locker, hub, syncer.Defaults{
		WindowMonths:  s.cfg.Sync.WindowMonths,
		MaxCustomers:  s.cfg.Sync.MaxCustomers,
		OrderDaysBack: s.cfg.Sync.OrderDaysBack,
		BatchSize:     s.cfg.Sync.BatchSize,
	}, logger)
	customerService := customersvc.NewCustomerService(avatarRepo, orderRepo, logger)

	go syncer.NewScheduler(runner, s.cfg.Sync.Interval, logger).Run(ctx)

	// ----- Handlers -----
	handlers := &Handlers{
		SyncHandler:     syncHandler.NewSyncHandler(runner, runRepo, sessionManager, s.cfg.Sync.RunTimeout),
		CustomerHandler: customerHandler.NewCustomerHandler(customerService),
		ERPHandler:      erpHandler.NewERPHandler(erpClient),
		WSHandler:       wsHandler.NewWebSocketHandler(hub, logger),
		AuthMiddleware:  middleware.NewAuthMiddleware(verifier),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	SetupRouter(s.engine, handlers)

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			s.logger.Warn("failed to close redis", zap.Error(cerr))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	_ = s.logger.Sync()
	return err
}
