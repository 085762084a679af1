package app

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

	"go-verse-auth/internal/config"
	"go-verse-auth/internal/database"
	"go-verse-auth/internal/handler"
	"go-verse-auth/internal/middleware"
	"go-verse-auth/internal/password"
	"go-verse-auth/internal/provider"
	"go-verse-auth/internal/repository"
	"go-verse-auth/internal/router"
	"go-verse-auth/internal/service"
	"go-verse-auth/internal/telemetry"
	"go-verse-auth/internal/token"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func(context.Context)
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.onShutdown(func(ctx context.Context) {
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err.Error())
		}
	})

	users, err := a.openUserStore(ctx, cfg)
	if err != nil {
		a.cleanup(ctx)
		return nil, err
	}

	appHandler, err := buildHandler(cfg, users)
	if err != nil {
		a.cleanup(ctx)
		return nil, err
	}

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appHandler,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

// openUserStore selects the adapter named by STORE_DRIVER and applies its
// migrations.
func (a *App) openUserStore(ctx context.Context, cfg *config.Config) (repository.UserStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.onShutdown(func(context.Context) { db.Close() })

		if err := db.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		return repository.NewUserRepository(db.Pool), nil

	case config.StoreSQLite:
		slog.Info("opening SQLite store", "path", cfg.SQLitePath)
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.onShutdown(func(context.Context) { _ = db.Close() })
		return repository.NewSQLiteUserRepository(db), nil

	case config.StoreMemory:
		slog.Warn("memory store selected; accounts are lost on restart")
		return repository.NewMemoryUserRepository(), nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func buildHandler(cfg *config.Config, users repository.UserStore) (http.Handler, error) {
	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	codec, err := token.NewCodec(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	httpClient := provider.NewHTTPClient(cfg.ProviderTimeout)
	providers := provider.NewRegistry(
		provider.NewGoogle(provider.GoogleConfig{
			ClientID:    cfg.GoogleClientID,
			FrontendURL: cfg.FrontendURL,
			UserInfoURL: cfg.GoogleUserInfoURL,
		}, httpClient),
		provider.NewFacebook(provider.FacebookConfig{
			AppID:       cfg.FacebookAppID,
			FrontendURL: cfg.FrontendURL,
			GraphURL:    cfg.FacebookGraphURL,
		}, httpClient),
	)

	authService := service.NewAuthService(users, hasher, codec, providers, service.AuthConfig{
		AccessTTL: cfg.JWTAccessTTL,
		SocialTTL: cfg.JWTSocialTTL,
		ResetTTL:  cfg.JWTResetTTL,
	})

	validator := handler.NewRequestValidator()

	return router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:          handler.NewAuthHandler(authService, validator),
		OAuth:         handler.NewOAuthHandler(authService),
		PasswordReset: handler.NewPasswordResetHandler(authService, validator, cfg.ResetExposeToken),
		Health:        handler.NewHealthHandler(authService),
	}), nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		if err != nil {
			a.cleanup(context.Background())
			return fmt.Errorf("server failed: %w", err)
		}
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup(ctx)
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) onShutdown(fn func(context.Context)) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

// cleanup runs registered shutdown hooks in reverse order.
func (a *App) cleanup(ctx context.Context) {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i](ctx)
	}
	a.cleanupFuncs = nil
}
