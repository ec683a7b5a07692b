package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service    ServiceConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Blockchain BlockchainConfig
	Storage    StorageConfig
	Worker     WorkerConfig
	Telemetry  TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name             string
	Port             int
	Environment      string
	LogLevel         string
	LogFormat        string
	UploadRateLimit  int64
	UploadRateWindow time.Duration
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
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueConfig holds registration queue settings
type QueueConfig struct {
	RegistrationQueue string
	MaxAttempts       int
	Backoff           []time.Duration
}

// BlockchainConfig holds the Ethereum node and contract settings
type BlockchainConfig struct {
	ProviderURL     string
	ContractAddress string
	AccountAddress  string
	PrivateKey      string
	ChainID         int64
	GasLimit        uint64
	// GasPriceWei pins a fixed gas price when > 0; 0 queries eth_gasPrice
	GasPriceWei        int64
	GasPriceCacheTTL   time.Duration
	RPCTimeout         time.Duration
	NetworkName        string
	NonceSanityCeiling uint64
}

// StorageConfig holds file storage settings
type StorageConfig struct {
	DocumentDir   string
	UploadTmpDir  string
	MaxUploadSize int64
}

// WorkerConfig holds anchor-worker settings
type WorkerConfig struct {
	SweepInterval     time.Duration
	StalePendingAfter time.Duration
	ConfirmPollCount  int
	ConfirmPollDelay  time.Duration
	HealthPort        int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:             serviceName,
			Port:             getEnvInt("PORT", 8080),
			Environment:      getEnv("ENVIRONMENT", "development"),
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			LogFormat:        getEnv("LOG_FORMAT", "text"),
			UploadRateLimit:  int64(getEnvInt("UPLOAD_RATE_LIMIT", 30)),
			UploadRateWindow: getEnvDuration("UPLOAD_RATE_WINDOW", time.Minute),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "blockdoc"),
			User:        getEnv("POSTGRES_USER", "blockdoc"),
			Password:    getEnv("POSTGRES_PASSWORD", "blockdoc"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			RegistrationQueue: getEnv("QUEUE_REGISTRATION", "blockdoc:register"),
			MaxAttempts:       getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
			Backoff:           getEnvDurations("QUEUE_BACKOFF", defaultBackoff()),
		},
		Blockchain: BlockchainConfig{
			ProviderURL:        getEnv("BLOCKCHAIN_PROVIDER_URL", "http://localhost:8545"),
			ContractAddress:    getEnv("BLOCKCHAIN_CONTRACT_ADDRESS", ""),
			AccountAddress:     getEnv("BLOCKCHAIN_ACCOUNT_ADDRESS", ""),
			PrivateKey:         getEnv("BLOCKCHAIN_PRIVATE_KEY", ""),
			ChainID:            int64(getEnvInt("BLOCKCHAIN_CHAIN_ID", 11155111)),
			GasLimit:           uint64(getEnvInt("BLOCKCHAIN_GAS_LIMIT", 100000)),
			GasPriceWei:        int64(getEnvInt("BLOCKCHAIN_GAS_PRICE_WEI", 0)),
			GasPriceCacheTTL:   getEnvDuration("BLOCKCHAIN_GAS_PRICE_CACHE_TTL", 30*time.Second),
			RPCTimeout:         getEnvDuration("BLOCKCHAIN_RPC_TIMEOUT", 15*time.Second),
			NetworkName:        getEnv("BLOCKCHAIN_NETWORK_NAME", "sepolia"),
			NonceSanityCeiling: uint64(getEnvInt("BLOCKCHAIN_NONCE_SANITY_CEILING", 1000000)),
		},
		Storage: StorageConfig{
			DocumentDir:   getEnv("STORAGE_DOCUMENT_DIR", "storage/documents"),
			UploadTmpDir:  getEnv("STORAGE_UPLOAD_TMP_DIR", "storage/uploads"),
			MaxUploadSize: int64(getEnvInt("STORAGE_MAX_UPLOAD_SIZE", 10*1024*1024)),
		},
		Worker: WorkerConfig{
			SweepInterval:     getEnvDuration("WORKER_SWEEP_INTERVAL", 60*time.Second),
			StalePendingAfter: getEnvDuration("WORKER_STALE_PENDING_AFTER", 24*time.Hour),
			ConfirmPollCount:  getEnvInt("WORKER_CONFIRM_POLL_COUNT", 5),
			ConfirmPollDelay:  getEnvDuration("WORKER_CONFIRM_POLL_DELAY", 2*time.Second),
			HealthPort:        getEnvInt("WORKER_HEALTH_PORT", 8081),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", false),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

func defaultBackoff() []time.Duration {
	return []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		300 * time.Second,
		600 * time.Second,
	}
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue max attempts must be >= 1")
	}

	if c.Blockchain.ProviderURL == "" {
		return fmt.Errorf("blockchain provider URL is required")
	}

	if c.Blockchain.GasLimit == 0 {
		return fmt.Errorf("blockchain gas limit must be > 0")
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

// getEnvDurations parses a comma-separated list of durations, e.g. "30s,60s,120s"
func getEnvDurations(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		out = append(out, d)
	}
	return out
}
