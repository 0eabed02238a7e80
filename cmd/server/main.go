package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashbook/internal/config"
	"cashbook/internal/db"
	"cashbook/internal/handlers"
	"cashbook/internal/logger"
	"cashbook/internal/services"
	"cashbook/internal/store"
	"cashbook/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	users := store.NewUserStore(database)
	accounts := store.NewAccountStore(database)
	movements := store.NewMovementStore(database)
	postings := store.NewPostingStore(database)
	sequences := store.NewSequenceStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	ledger := services.NewLedgerService(txRunner, accounts, movements, postings, sequences, hub, log, cfg.VoucherPrefix)
	balances := services.NewBalanceResolver(postings)

	handler := handlers.New(database, txRunner, cfg, log, users, accounts, movements, admin, admin, audit, ledger, balances, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("ledger API listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("shutdown error", zap.Error(err))
	}
}
