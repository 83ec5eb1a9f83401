package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkarlovic/tradepost/server"
	"github.com/mkarlovic/tradepost/tradepost"
	"github.com/mkarlovic/tradepost/tradepost/catalog"
	"github.com/mkarlovic/tradepost/tradepost/commerce"
	appconfig "github.com/mkarlovic/tradepost/tradepost/config"
	"github.com/mkarlovic/tradepost/tradepost/database"
	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
	"github.com/mkarlovic/tradepost/tradepost/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler("tradepost")
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting Tradepost marketplace core",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := tradepost.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	ctx, cancel := context.WithTimeout(context.Background(), appconfig.StartupTimeout)
	defer cancel()

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	db, err := database.New(ctx, database.DBConfig{
		Host:         cfg.DB.Host,
		Port:         cfg.DB.Port,
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Database:     cfg.DB.Database,
		PoolSize:     cfg.DB.PoolSize,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxLifetime:  cfg.DB.MaxLifetime,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Schema initialization failed", slog.Any("error", err))
		os.Exit(-1)
	}

	docStore, err := database.NewDocumentStore(ctx, database.MongoConfig{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		slog.Error("Document store connection failed", slog.Any("error", err))
		os.Exit(-1)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := docStore.Close(closeCtx); err != nil {
			slog.Error("Document store close failed", slog.Any("error", err))
		}
	}()

	orderRepo := repositories.NewOrderRepository(db.BunDB())
	escrowRepo := repositories.NewEscrowRepository(db.BunDB())
	barterRepo := repositories.NewBarterRepository(db.BunDB())
	notificationRepo := repositories.NewNotificationRepository(docStore)
	auditRepo := repositories.NewAuditRepository(docStore)

	guard := commerce.NewGuard(cfg.Commerce.AdminIDs)
	notifier := commerce.NewNotifier(notificationRepo)
	auditWriter := commerce.NewAuditWriter(auditRepo)
	escrowLedger := commerce.NewEscrowLedger(escrowRepo, orderRepo, guard, notifier, auditWriter)
	orderEngine := commerce.NewOrderEngine(orderRepo, escrowLedger, guard, notifier, auditWriter)
	barterEngine := commerce.NewBarterEngine(barterRepo, catalog.NewClient(cfg.Catalog.BaseURL), guard, notifier, auditWriter)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	barterEngine.StartExpirySweeper(runCtx)

	srv := server.New(server.Config{IdentityHeader: cfg.Server.IdentityHeader},
		orderEngine, escrowLedger, barterEngine, notificationRepo, auditRepo)

	go func() {
		if err := srv.Listen(cfg.Server.ListenAddr); err != nil {
			slog.Error("HTTP server stopped", slog.Any("error", err))
			runCancel()
		}
	}()

	logger.LogSystem("Tradepost is running",
		slog.String("listen_addr", cfg.Server.ListenAddr))

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-s:
	case <-runCtx.Done():
	}

	slog.Info("Shutting down...")
	if err := srv.Shutdown(); err != nil {
		slog.Error("HTTP shutdown failed", slog.Any("error", err))
	}
}
