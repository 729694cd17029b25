package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Environment   string
	LogLevel      string
	HTTPAddr      string
	StorageDriver string

	DBDSN         string
	DBMaxConns    int32
	MigrationsDir string // пусто - миграции из бинарника

	RedisURL string
	CacheTTL time.Duration

	RabbitMQURL string
	AuditQueue  string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	TelegramToken string

	SweepInterval time.Duration
	RateLimitRPS  int
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg := &Config{
		Environment:    getEnv("ENV", "development"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DBDSN:          os.Getenv("DB_DSN"),
		MigrationsDir:  os.Getenv("MIGRATIONS_DIR"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		AuditQueue:     getEnv("AUDIT_QUEUE", "turnos.audit"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "turnos-attachments"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
	}

	var err error

	maxConns, err := getInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxConns = int32(maxConns)

	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getInt("RATE_LIMIT_RPS", 50); err != nil {
		return nil, err
	}
	if cfg.MinioUseSSL, err = getBool("MINIO_USE_SSL", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded (env=%s, storage=%s)\n", cfg.Environment, cfg.StorageDriver)

	return cfg, nil
}

// Validate проверяет обязательные поля и допустимые значения
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q",
			StorageDriverPostgres, StorageDriverMemory, c.StorageDriver)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}

	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
