/*
main.go - Application entry point

PURPOSE:
  Starts the wallet engine behind its HTTP facade. Handles configuration,
  dependency wiring, and graceful shutdown.

CONFIGURATION:
  A .env file (if present) and environment variables provide defaults;
  command-line flags override them.

    -port / WALLET_PORT          HTTP port (default 8080)
    -store / WALLET_STORE        memory | sqlite | redis (default sqlite)
    -db / WALLET_DB              SQLite path (default wallet.db, ":memory:" works)
    -redis / WALLET_REDIS_ADDR   Redis address for -store=redis
    -nats / WALLET_NATS_URL      optional NATS URL for the event stream
    -latency / WALLET_LATENCY    simulate network latency on mutations

STARTUP SEQUENCE:
  1. Load .env + flags
  2. Open the key/value backend
  3. Wire engine: log, balance ledger, processors, coordinator, view cache
  4. Seed the demo account
  5. Serve with graceful shutdown on SIGINT/SIGTERM
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartbank/wallet-engine/api"
	"github.com/smartbank/wallet-engine/bus"
	natsbus "github.com/smartbank/wallet-engine/bus/nats"
	"github.com/smartbank/wallet-engine/kv"
	kvredis "github.com/smartbank/wallet-engine/kv/redis"
	kvsqlite "github.com/smartbank/wallet-engine/kv/sqlite"
	"github.com/smartbank/wallet-engine/ledger"
	"github.com/smartbank/wallet-engine/rates"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	port := flag.String("port", envOr("WALLET_PORT", "8080"), "HTTP server port")
	storeKind := flag.String("store", envOr("WALLET_STORE", "sqlite"), "storage backend: memory | sqlite | redis")
	dbPath := flag.String("db", envOr("WALLET_DB", "wallet.db"), "SQLite database path")
	redisAddr := flag.String("redis", envOr("WALLET_REDIS_ADDR", "localhost:6379"), "Redis address (store=redis)")
	natsURL := flag.String("nats", os.Getenv("WALLET_NATS_URL"), "NATS URL for the event stream (optional)")
	latency := flag.Bool("latency", os.Getenv("WALLET_LATENCY") == "true", "simulate network latency on mutations")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Storage backend
	var store kv.Store
	switch *storeKind {
	case "memory":
		store = kv.NewMemory()
	case "sqlite":
		s, err := kvsqlite.New(*dbPath)
		if err != nil {
			logger.Error("failed to open sqlite store", "path", *dbPath, "error", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	case "redis":
		s, err := kvredis.New(ctx, *redisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", *redisAddr, "error", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	default:
		logger.Error("unknown store kind", "store", *storeKind)
		os.Exit(1)
	}

	// Engine wiring
	accounts := ledger.NewAccounts(store)
	delegations := ledger.NewDelegations(store)
	balances := ledger.NewBalanceLedger(store)
	txlog := ledger.NewTransactionLog(store)
	transfers := ledger.NewTransferProcessor(accounts, balances, txlog)
	wallet := ledger.NewWalletOperationProcessor(accounts, balances, txlog)
	coordinator := ledger.NewMutationCoordinator(accounts, balances, txlog, transfers, wallet)

	// Event stream: NATS when configured, in-process otherwise.
	if *natsURL != "" {
		nb, err := natsbus.Connect(*natsURL)
		if err != nil {
			logger.Error("failed to connect to nats", "url", *natsURL, "error", err)
			os.Exit(1)
		}
		defer nb.Close()
		coordinator.WithEventPublisher(nb)
	} else {
		coordinator.WithEventPublisher(bus.NewMemory())
	}

	views := api.NewViewCache(coordinator)
	coordinator.WithInvalidator(views)

	// Seed the demo account: lets visitors exercise the UI while transfers
	// stay blocked.
	if _, err := accounts.Create(ctx, "demo", ledger.DefaultCurrency, true); err != nil {
		logger.Warn("failed to seed demo account", "error", err)
	}

	handler := api.NewHandler(coordinator, accounts, delegations, views, api.HeaderSessions{})
	handler.Logger = logger
	handler.Rates = rates.Demo()
	if *latency {
		handler.Delay = ledger.RandomDelay{Min: 300 * time.Millisecond, Max: 1200 * time.Millisecond}
	}

	router := api.NewRouter(handler, []string{"http://localhost:5173", "http://localhost:8080"})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", *port, "store", *storeKind)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
