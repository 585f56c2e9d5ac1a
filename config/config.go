package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	BackendSupabase = "supabase"
	BackendLocal    = "local"
	BackendMemory   = "memory"
)

type Config struct {
	Backend         string        `envconfig:"AUTH_BACKEND"      default:"supabase"`
	SupabaseURL     string        `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey string        `envconfig:"SUPABASE_ANON_KEY"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	JWTIssuer       string        `envconfig:"JWT_ISSUER"        default:"auth_service"`
	JWTTTL          time.Duration `envconfig:"JWT_TTL"           default:"1h"`
	HTTPPort        string        `envconfig:"HTTP_PORT"         default:":8080"`
	GrpcPort        string        `envconfig:"GRPC_PORT"         default:":50051"`
	LogLevel        string        `envconfig:"LOG_LEVEL"         default:"info"`
	RemoteSignOut   bool          `envconfig:"REMOTE_SIGN_OUT"   default:"false"`
	BackendTimeout  time.Duration `envconfig:"BACKEND_TIMEOUT"   default:"10s"`
	SessionIdleTTL  time.Duration `envconfig:"SESSION_IDLE_TTL"  default:"30m"`
}

var (
	config Config
	once   sync.Once
)

// LoadConfig reads .env (if present) and the environment once per process.
func LoadConfig(logger *logrus.Logger) *Config {
	once.Do(func() {
		err := godotenv.Load()
		if err != nil && !os.IsNotExist(err) {
			logger.Warnf("Error loading .env file (but continuing): %v", err)
		} else if err == nil {
			logger.Info("Loaded configuration from .env file")
		}

		cfg, err := Process()
		if err != nil {
			logger.Fatalf("Configuration error: %v", err)
		}
		config = *cfg

		logger.Infof("Configuration loaded: Backend=%s, HTTP Port=%s, GRPC Port=%s, LogLevel=%s",
			config.Backend, config.HTTPPort, config.GrpcPort, config.LogLevel)
	})
	return &config
}

// Process reads the environment without caching and validates the result.
func Process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration from environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required for backend %q", c.Backend)
		}
	case BackendLocal:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for backend %q", c.Backend)
		}
		fallthrough
	case BackendMemory:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for backend %q", c.Backend)
		}
	default:
		return fmt.Errorf("unknown AUTH_BACKEND %q (want %s, %s or %s)", c.Backend, BackendSupabase, BackendLocal, BackendMemory)
	}
	return nil
}
