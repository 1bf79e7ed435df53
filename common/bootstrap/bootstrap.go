package bootstrap

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/soclab/mitigator/common/config"
	"github.com/soclab/mitigator/common/db"
	"github.com/soclab/mitigator/common/logger"
	rediscommon "github.com/soclab/mitigator/common/redis"
)

// Setup initializes all service components.
// This is the main entry point for the service.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	// Apply options
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize database (if not skipped)
	if !options.skipDB {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing database connection")
			components.DB.Close()
			return nil
		})

		// Run DB init hook if provided
		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx) // Cleanup what we've initialized
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize the alert bus (if not skipped)
	if !options.skipRedis {
		components.Logger.Info("connecting to alert bus", "addr", components.Config.RedisAddr())
		raw := redis.NewClient(&redis.Options{
			Addr:     components.Config.RedisAddr(),
			Password: components.Config.Redis.Password,
			DB:       0,
		})
		components.Redis = rediscommon.NewClient(raw, components.Logger)
		if err := components.Redis.Ping(ctx); err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to alert bus: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing alert bus connection")
			return components.Redis.Close()
		})
	}

	// 5. Initialize the ISIM driver (if not skipped)
	if !options.skipIsim {
		components.Logger.Info("connecting to ISIM", "url", components.Config.Isim.URL)
		driver, err := neo4j.NewDriverWithContext(
			components.Config.Isim.URL,
			neo4j.BasicAuth(components.Config.Isim.Username, components.Config.Isim.Password, ""),
		)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create ISIM driver: %w", err)
		}
		components.Isim = driver

		components.addCleanup(func() error {
			components.Logger.Info("closing ISIM driver")
			return driver.Close(context.Background())
		})
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"bus", components.Redis != nil,
		"isim", components.Isim != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error.
// Startup failure is not recoverable for this service.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
