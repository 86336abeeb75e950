// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Shivanand-hulikatti/campus-events/internal/auth"
	"github.com/Shivanand-hulikatti/campus-events/internal/clock"
	"github.com/Shivanand-hulikatti/campus-events/internal/config"
	"github.com/Shivanand-hulikatti/campus-events/internal/database"
	"github.com/Shivanand-hulikatti/campus-events/internal/handler"
	"github.com/Shivanand-hulikatti/campus-events/internal/i18n"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	envFile        string
	migrateOnly    bool
	skipMigrations bool
}

func main() {
	var opts options
	pflag.StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")
	pflag.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	pflag.BoolVar(&opts.skipMigrations, "skip-migrations", false, "start without applying database migrations")
	pflag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "campus-events: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Schema
	if !opts.skipMigrations {
		if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if opts.migrateOnly {
		return nil
	}

	// 2. Connect to PostgreSQL
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: cfg.DBMaxConns}, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	// 3. Wire up layers
	clk := clock.NewSystem()
	tx := repository.NewTxManager(pool)
	events := repository.NewEventRepository(pool)
	registrations := repository.NewRegistrationRepository(pool)
	users := repository.NewUserRepository(pool)
	chat := repository.NewChatRepository(pool)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, clk.Now)

	router := handler.NewRouter(handler.Deps{
		Events:        service.NewEventService(tx, events, registrations, clk, logger),
		Registrations: service.NewRegistrationService(tx, events, registrations, clk, logger),
		Payments:      service.NewPaymentService(tx, registrations, clk, cfg.PaymentCheckoutBaseURL, logger),
		Accounts:      service.NewAuthService(users, tokens, clk, cfg.AdminBootstrapKey, logger),
		Reports:       service.NewReportService(events, registrations),
		Chat:          service.NewChatService(events, chat, clk, logger),
		Notify:        service.NewNotifyService(service.LogNotifier{Logger: logger}),
		Tokens:        tokens,
		Translator:    i18n.NewTranslator(cfg.DefaultLocale, logger),
		Logger:        logger,
		SessionTTL:    cfg.TokenTTL,
		CookieSecure:  cfg.CookieSecure,
		CORSOrigins:   cfg.CORSOrigins,
		WebhookSecret: cfg.PaymentWebhookSecret,
	})
	if cfg.AdminBootstrapKey == "" {
		logger.Info("admin bootstrap endpoint disabled")
	}

	// 4. Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
