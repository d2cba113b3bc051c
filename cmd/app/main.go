// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"applyassist/internal/config"
	"applyassist/internal/domain/ports/adapter"
	"applyassist/internal/domain/ports/repository"
	"applyassist/internal/infra/adapters/purchases"
	"applyassist/internal/infra/api"
	"applyassist/internal/infra/i18n"
	"applyassist/internal/infra/logging"
	"applyassist/internal/infra/memstore"
	"applyassist/internal/infra/metrics"
	red "applyassist/internal/infra/redis"
	"applyassist/internal/infra/restclient"
	"applyassist/internal/infra/sched"
	"applyassist/internal/infra/security"
	"applyassist/internal/usecase"
)

// Set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, dev encryption key)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Session store ----
	store, closeStore := buildTokenStore(ctx, cfg, logger)
	defer closeStore()

	// ---- Application backend ----
	apiClient, err := restclient.New(cfg.API.BaseURL, cfg.API.Timeout, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api client")
	}
	sessionUC := usecase.NewSessionUseCase(apiClient, store, logger)
	profileUC := usecase.NewProfileUseCase(apiClient.WithTokens(sessionUC))

	// ---- Purchases ----
	backend, webhook := buildPurchaseBackend(cfg, logger)
	coordinator := usecase.NewEntitlementCoordinator(backend, usecase.CoordinatorOptions{
		APIKey:  cfg.Purchases.APIKey,
		Preview: cfg.Purchases.Preview,
	}, logger)

	// splash: the UI polls state while this runs
	go func() {
		initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
		defer initCancel()
		if err := coordinator.Initialize(initCtx); err != nil {
			logger.Error().Err(err).Msg("entitlements initialization failed")
		}
	}()

	worker := sched.NewRefreshWorker(cfg.Purchases.RefreshInterval, coordinator, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- HTTP ----
	messages, err := i18n.NewTranslator(i18n.LocalesFS, cfg.HTTP.Locale)
	if err != nil {
		logger.Warn().Err(err).Str("locale", cfg.HTTP.Locale).Msg("falling back to en messages")
		if messages, err = i18n.NewTranslator(i18n.LocalesFS, "en"); err != nil {
			logger.Fatal().Err(err).Msg("i18n")
		}
	}
	srv := api.NewServer(coordinator, api.Options{
		Entitlement: cfg.Purchases.Entitlement,
		APIKey:      cfg.HTTP.APIKey,
		Webhook:     webhook,
		Metrics:     metrics.Handler(),
		Sessions:    sessionUC,
		Profiles:    profileUC,
		Messages:    messages,
		Timeout:     cfg.API.Timeout + 5*time.Second,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := coordinator.Close(); err != nil {
		logger.Error().Err(err).Msg("coordinator close")
	}
}

func buildTokenStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (repository.SessionTokenStore, func()) {
	if cfg.Session.Store != "redis" {
		return memstore.NewTokenStore(), func() {}
	}

	encKey := cfg.Security.EncryptionKey
	if encKey == "" {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("security.encryption_key is required for the redis session store")
		}
		logger.Warn().Msg("security.encryption_key not set; using dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}
	client, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	return red.NewTokenStore(client, cfg.Redis.Prefix, encSvc), func() { _ = client.Close() }
}

func buildPurchaseBackend(cfg *config.Config, logger *zerolog.Logger) (adapter.PurchaseBackend, http.Handler) {
	pc := cfg.Purchases
	if pc.Backend == "memory" {
		logger.Warn().Msg("using in-memory purchase backend")
		return purchases.NewNoopPurchaseBackend(pc.AppUserID, pc.Entitlement), nil
	}

	var store adapter.StoreFront
	if pc.Sandbox {
		store = purchases.NewSandboxStoreFront(logger)
	}
	rc, err := purchases.NewRevenueCatBackend(pc.BaseURL, pc.AppUserID, cfg.API.Timeout, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("revenuecat backend")
	}
	rc.SetPlatform(pc.Platform)
	logger.Info().
		Str("app_user_id", pc.AppUserID).
		Str("api_key", logging.Redact(pc.APIKey, cfg.Runtime.Dev)).
		Str("platform", pc.Platform).
		Bool("sandbox", pc.Sandbox).
		Msg("purchases backend: revenuecat")

	if pc.WebhookSecret == "" {
		return rc, nil
	}
	return rc, purchases.NewWebhookHandler(rc, pc.WebhookSecret, logger)
}
