/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the trade settlement server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Wire settlement engine and trade services
  4. Configure HTTP router with auth
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: settlement.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  JWT_SECRET       token signing secret (required)
  ADMIN_USER       admin login name (default: admin)
  ADMIN_PASSWORD   admin login password (required)
  LOG_LEVEL        zerolog level (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/warp/trade-settlement/api"
	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/store/sqlite"
	"github.com/warp/trade-settlement/trade"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "settlement.db", "SQLite database path")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := newLogger(os.Getenv("LOG_LEVEL"))

	secret := os.Getenv("JWT_SECRET")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if secret == "" || adminPassword == "" {
		log.Fatal().Msg("JWT_SECRET and ADMIN_PASSWORD must be set")
	}
	adminUser := os.Getenv("ADMIN_USER")
	if adminUser == "" {
		adminUser = "admin"
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Wire domain services
	engine := settlement.NewEngine(store, store)
	pricing := &trade.Pricing{Prices: store}
	orders := trade.NewOrderService(store, store, pricing, engine, log)
	reports := &trade.ReportService{Orders: store, Costs: store, Parties: store, Invoices: store}

	handler := api.NewHandler(store, orders, reports, log)
	auth := &api.Auth{
		Secret:        []byte(secret),
		AdminUser:     adminUser,
		AdminPassword: adminPassword,
	}
	router := api.NewRouter(handler, auth, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
