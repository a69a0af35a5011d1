package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/chickenstock/internal/config"
	"github.com/mamadbah2/chickenstock/internal/repository/mongodb"
	"github.com/mamadbah2/chickenstock/internal/repository/xlsx"
	"github.com/mamadbah2/chickenstock/internal/scheduler"
	"github.com/mamadbah2/chickenstock/internal/server/handlers"
	"github.com/mamadbah2/chickenstock/internal/server/router"
	ledgersvc "github.com/mamadbah2/chickenstock/internal/service/ledger"
	reportingsvc "github.com/mamadbah2/chickenstock/internal/service/reporting"
	whatsappclient "github.com/mamadbah2/chickenstock/pkg/clients/whatsapp"
	"github.com/mamadbah2/chickenstock/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ledgerRepo, err := xlsx.NewLedgerRepository(cfg.Ledger.Dir, logger.Named(baseLogger, "repo.xlsx"))
	if err != nil {
		baseLogger.Fatal("failed to init ledger repository", zap.Error(err))
	}
	baseLogger.Info("ledger directory ready", zap.String("dir", ledgerRepo.Dir()))

	ledgerSvc := ledgersvc.NewService(ledgerRepo, logger.Named(baseLogger, "svc.ledger"))

	var reportOpts []reportingsvc.Option
	if cfg.MongoDB.URI != "" {
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoRepo, err := mongodb.NewMongoDBRepository(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		cancel()
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		reportOpts = append(reportOpts, reportingsvc.WithArchive(mongoRepo))
		baseLogger.Info("summary archive enabled", zap.String("db", cfg.MongoDB.DBName))
	} else {
		baseLogger.Warn("MONGODB_URI missing, daily summaries will not be archived")
	}

	if cfg.WhatsApp.Enabled() {
		reportOpts = append(reportOpts, reportingsvc.WithNotifier(whatsappclient.NewClient(cfg.WhatsApp), cfg.WhatsApp.ReportRecipient))
		baseLogger.Info("whatsapp report notifications enabled")
	} else {
		baseLogger.Warn("whatsapp credentials missing, daily reports will not be sent")
	}

	reportingSvc := reportingsvc.NewService(ledgerSvc, logger.Named(baseLogger, "svc.reporting"), reportOpts...)

	loc, err := cfg.Location()
	if err != nil {
		baseLogger.Fatal("failed to resolve timezone", zap.Error(err))
	}

	ledgerHandler := handlers.NewLedgerHandler(ledgerSvc, reportingSvc, loc, logger.Named(baseLogger, "handlers.ledger"))
	engine := router.New(ledgerHandler, logger.Named(baseLogger, "router"))

	sched, err := scheduler.NewScheduler(*cfg, ledgerSvc, reportingSvc, logger.Named(baseLogger, "scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
