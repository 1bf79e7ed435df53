package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Version is the manager version string, exposed by GET /version.
const Version = "1.0.0"

// InvalidEnvironmentError is raised when a critical environment
// constraint is broken. It is the only fatal error class: everything
// else is caught and logged at the ingest boundary.
type InvalidEnvironmentError struct {
	Reason string
}

func (e *InvalidEnvironmentError) Error() string {
	return fmt.Sprintf("invalid environment: %s", e.Reason)
}

// Config holds all service configuration
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Isim     IsimConfig
	Engine   EngineConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
	Timeout     time.Duration
}

// RedisConfig holds the alert bus and event channel settings
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	AlertChannel string
	EventChannel string
}

// IsimConfig holds the graph database connection settings
type IsimConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// EngineConfig holds the attack-graph scoring tunables and the
// resource limits of the ingest pipeline.
type EngineConfig struct {
	// The maximum number of conditions an attack graph is expected
	// to have.
	MaxConditions int
	// The rate of "interest": lower values mean attack graph nodes
	// won't be given high probabilities until the end, while higher
	// values assign linearly increasing probabilities.
	GraphInterest float64
	// The maximum impact ease of attack graph completion can have in
	// the final probability score.
	EaseImpact float64
	// The minimum change in probability for the database to update.
	ProbabilityEpsilon float64
	// The minimum probability for a future node to be considered as
	// "requires mitigation".
	ProbabilityThreshold float64
	// The maximum number of alerts processed concurrently.
	WorkerPoolSize int
	// Timeout for a single workflow actuator call.
	WorkflowTimeout time.Duration
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "mitigator"),
			User:        getEnv("POSTGRES_USER", "mitigator"),
			Password:    getEnv("POSTGRES_PASSWORD", "mitigator"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
			Timeout:     getEnvDuration("POSTGRES_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			AlertChannel: getEnv("REDIS_ALERT_CHANNEL", "alerts"),
			EventChannel: getEnv("REDIS_EVENT_CHANNEL", "mitigator:events"),
		},
		Isim: IsimConfig{
			URL:      getEnv("NEO4J_URL", "neo4j://localhost:7687"),
			Username: getEnv("NEO4J_USERNAME", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", ""),
			Timeout:  getEnvDuration("ISIM_TIMEOUT", 10*time.Second),
		},
		Engine: EngineConfig{
			MaxConditions:        getEnvInt("MAX_CONDITIONS", 100),
			GraphInterest:        getEnvFloat("GRAPH_INTEREST", 0.5),
			EaseImpact:           getEnvFloat("EASE_IMPACT", 0.3),
			ProbabilityEpsilon:   getEnvFloat("PROBABILITY_EPSILON", 0.0001),
			ProbabilityThreshold: getEnvFloat("PROBABILITY_THRESHOLD", 0.75),
			WorkerPoolSize:       getEnvInt("WORKER_POOL_SIZE", 8),
			WorkflowTimeout:      getEnvDuration("WORKFLOW_TIMEOUT", 15*time.Second),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &InvalidEnvironmentError{Reason: fmt.Sprintf("invalid port: %d", c.Service.Port)}
	}
	if c.Database.Host == "" {
		return &InvalidEnvironmentError{Reason: "database host is required"}
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return &InvalidEnvironmentError{Reason: "max_conns must be >= min_conns"}
	}
	if c.Engine.GraphInterest < 0 || c.Engine.GraphInterest > 1 {
		return &InvalidEnvironmentError{Reason: "GRAPH_INTEREST must be in [0,1]"}
	}
	if c.Engine.EaseImpact < 0 || c.Engine.EaseImpact > 1 {
		return &InvalidEnvironmentError{Reason: "EASE_IMPACT must be in [0,1]"}
	}
	if c.Engine.MaxConditions < 1 {
		return &InvalidEnvironmentError{Reason: "MAX_CONDITIONS must be positive"}
	}
	if c.Engine.WorkerPoolSize < 1 {
		return &InvalidEnvironmentError{Reason: "WORKER_POOL_SIZE must be positive"}
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the host:port address of the Redis alert bus
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
