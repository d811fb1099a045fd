package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authapp "github.com/clinic/terminal/internal/application/auth"
	billingapp "github.com/clinic/terminal/internal/application/billing"
	cashierapp "github.com/clinic/terminal/internal/application/cashier"
	patientapp "github.com/clinic/terminal/internal/application/patients"
	"github.com/clinic/terminal/internal/application/pool"
	"github.com/clinic/terminal/internal/application/syncsvc"
	"github.com/clinic/terminal/internal/domain/connectivity"
	"github.com/clinic/terminal/internal/infrastructure/auth"
	"github.com/clinic/terminal/internal/infrastructure/authority"
	"github.com/clinic/terminal/internal/infrastructure/config"
	"github.com/clinic/terminal/internal/infrastructure/logger"
	"github.com/clinic/terminal/internal/infrastructure/persistence"
	"github.com/clinic/terminal/internal/infrastructure/supervisor"
	"github.com/clinic/terminal/internal/interfaces/http/handler"
	"github.com/clinic/terminal/internal/interfaces/http/middleware"
	"github.com/clinic/terminal/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting clinic terminal",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("terminal_id", cfg.App.TerminalID),
		zap.String("branch", cfg.App.BranchCode),
		zap.String("port", cfg.App.Port),
	)

	// Open the local store
	gormLog := logger.NewGormLogger(log, cfg.Log.Level)
	db, err := persistence.NewDatabase(&cfg.Store, gormLog)
	if err != nil {
		log.Fatal("Failed to open local store", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing local store", zap.Error(err))
		}
	}()
	log.Info("Local store opened", zap.String("path", cfg.Store.Path))

	// Initialize repositories
	rangeRepo := persistence.NewGormRangeRepository(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	credentialRepo := persistence.NewGormCredentialRepository(db.DB)
	sessionRepo := persistence.NewGormCashSessionRepository(db.DB)
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	pendingRepo := persistence.NewGormPendingRecordRepository(db.DB)
	patientRepo := persistence.NewGormPatientRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)

	// Authority gateway and connectivity supervisor
	gateway := authority.NewClient(&cfg.Authority, log)
	sup := supervisor.New(gateway, cfg.Connectivity, log)
	if err := sup.Start(context.Background()); err != nil {
		log.Fatal("Failed to start connectivity supervisor", zap.Error(err))
	}
	defer sup.Stop()

	// Application services
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := authapp.NewService(credentialRepo, gateway, sup, jwtService, log)
	poolService := pool.NewService(rangeRepo, allocationRepo, gateway, sup, pool.Options{
		TerminalID:   cfg.App.TerminalID,
		BranchCode:   cfg.App.BranchCode,
		BatchSize:    cfg.Pool.BatchSize,
		LowWaterMark: cfg.Pool.LowWaterMark,
	}, log)
	coordinator := syncsvc.NewCoordinator(
		pendingRepo, gateway, sup, patientRepo, invoiceRepo, catalogRepo, poolService,
		syncsvc.Options{
			DrainBatchSize:  cfg.Sync.DrainBatchSize,
			DrainOnStart:    cfg.Sync.DrainOnStart,
			SyncedRetention: cfg.Sync.SyncedRetention,
			Interval:        cfg.Sync.ReplenishEvery,
		}, log)
	sessionService := cashierapp.NewService(sessionRepo, invoiceRepo, cfg.App.TerminalID, log)
	patientService := patientapp.NewService(patientRepo, coordinator, log)
	billingService := billingapp.NewService(
		invoiceRepo, sessionRepo, patientRepo, catalogRepo, pendingRepo,
		poolService, coordinator, cfg.App.TerminalID, log,
	)

	// Start the sync coordinator and kick it whenever connectivity
	// comes back, so a reconnect drains the queue without waiting for
	// the next tick.
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	coordinator.Start(appCtx)
	defer coordinator.Stop()

	go func() {
		transitions := sup.Subscribe()
		for {
			select {
			case <-appCtx.Done():
				return
			case snap := <-transitions:
				if snap.State == connectivity.StateOnline {
					log.Info("Connectivity restored, kicking sync")
					coordinator.Kick()
				}
			}
		}
	}()

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORS())

	authMW := middleware.JWTAuth(jwtService, log)
	lockMW := middleware.LockGate(sup)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewSystemHandler(sup, cfg.App.TerminalID)).
		Register(handler.NewAuthHandler(authService, authMW)).
		Register(handler.NewSessionHandler(sessionService, authMW)).
		Register(handler.NewPatientHandler(patientService, authMW)).
		Register(handler.NewInvoiceHandler(billingService, authMW, lockMW)).
		Register(handler.NewPoolHandler(poolService, authMW, lockMW)).
		Register(handler.NewSyncHandler(coordinator, authMW))
	r.Setup()

	// The terminal serves its own front desk UI only; bind loopback.
	srv := &http.Server{
		Addr:         "127.0.0.1:" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down terminal...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Terminal exited gracefully")
}
