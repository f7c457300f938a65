package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/leadforge/crm/internal/api"
	"github.com/leadforge/crm/internal/config"
	"github.com/leadforge/crm/internal/deliverylog"
	"github.com/leadforge/crm/internal/lead"
	"github.com/leadforge/crm/internal/leadimport"
	"github.com/leadforge/crm/internal/messaging"
	"github.com/leadforge/crm/internal/notify"
	"github.com/leadforge/crm/internal/pkg/distlock"
	"github.com/leadforge/crm/internal/pkg/logger"
	"github.com/leadforge/crm/internal/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	objectStore, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	leadStore := lead.NewStore(db)
	importer := leadimport.NewImporter(leadStore)
	sendLog := deliverylog.New(db)
	hub := notify.NewHub(rdb)

	waClient := messaging.NewWhatsAppClient(
		cfg.WhatsApp.SendURL, cfg.WhatsApp.TemplatesURL, cfg.WhatsApp.AuthToken)
	waDispatcher := messaging.NewWhatsAppDispatcher(waClient, sendLog)

	emailClient := messaging.NewEmailClient(cfg.Email.SendURL, cfg.Email.AuthToken)
	emailDispatcher := messaging.NewEmailDispatcher(emailClient, objectStore, sendLog).
		WithDefaultSender(cfg.Email.SenderEmail, cfg.Email.SenderName)

	importLock := func() distlock.Lock {
		return distlock.New(rdb, db, "leads:import", 2*time.Minute)
	}

	router := api.NewRouter(api.Deps{
		Leads:     api.NewLeadHandler(leadStore, hub),
		Import:    api.NewImportHandler(importer, leadStore).WithLock(importLock),
		Messaging: api.NewMessagingHandler(waDispatcher, emailDispatcher, waClient, objectStore),
		Logs:      api.NewLogsHandler(sendLog),
		Webhook:   api.NewWebhookHandler(leadStore, hub),
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown incomplete", "error", err)
	}
	db.Close()
	rdb.Close()
}
