package app

import (
	"auth_service/config"
	"auth_service/internal/clients"
	"auth_service/internal/domain"
	"auth_service/internal/localauth"
	"auth_service/internal/repository"
	"auth_service/internal/usecase"
	"auth_service/pkg/db"
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

func SetupLogger(level string, json bool) *logrus.Logger {
	logger := logrus.New()
	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	logger.SetOutput(os.Stdout)

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using default 'info'. Error: %v", level, err)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	return logger
}

// Dependencies holds the backend and profile store selected by AUTH_BACKEND.
type Dependencies struct {
	Backend  domain.AuthBackend
	Profiles domain.ProfileStore
	db       *sql.DB
	cfg      *config.Config
	log      *logrus.Logger
}

func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Dependencies, error) {
	deps := &Dependencies{cfg: cfg, log: logger}

	switch cfg.Backend {
	case config.BackendSupabase:
		client := clients.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.BackendTimeout, logger)
		deps.Backend = client
		deps.Profiles = client
		logger.Infof("Using hosted backend at %s", cfg.SupabaseURL)

	case config.BackendLocal:
		logger.Info("Connecting to database...")
		conn, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database connection established successfully.")
		deps.db = conn
		tokens := localauth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
		deps.Backend = localauth.NewBackend(repository.NewPostgresCredentialRepository(conn, logger), tokens, logger)
		deps.Profiles = repository.NewPostgresProfileRepository(conn, logger)

	case config.BackendMemory:
		store := repository.NewMemoryStore()
		tokens := localauth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
		deps.Backend = localauth.NewBackend(store, tokens, logger)
		deps.Profiles = store
		logger.Warn("Using in-memory backend, data is lost on restart")

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return deps, nil
}

// NewProvider builds one provider over the shared backend.
func (d *Dependencies) NewProvider() domain.AuthStateProvider {
	return usecase.NewAuthStateUseCase(d.Backend, d.Profiles, d.log, usecase.Options{
		RemoteSignOut: d.cfg.RemoteSignOut,
		CallTimeout:   d.cfg.BackendTimeout,
		Now:           time.Now,
	})
}

func (d *Dependencies) Close() {
	if d.db == nil {
		return
	}
	if err := d.db.Close(); err != nil {
		d.log.Errorf("Error closing database connection: %v", err)
	} else {
		d.log.Info("Database connection closed.")
	}
}
