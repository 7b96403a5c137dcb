package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"edudebt_collection/internal/config/connections/mongo"
	"edudebt_collection/internal/config/connections/postgres"
	"edudebt_collection/internal/config/connections/rabbitmq"
	"edudebt_collection/internal/config/connections/redis"
	"edudebt_collection/internal/config/connections/s3"
	"edudebt_collection/internal/services/calculator"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Settings is everything read from the environment. Connections are opened
// separately by Init.
type Settings struct {
	Port  string
	Store string

	Postgres postgres.ConnectionInfo
	Mongo    mongo.ConnectionInfo
	S3       s3.ConnectionInfo
	Redis    redis.ConnectionInfo

	AMQPURL      string
	AMQPExchange string

	SweepSchedule     string
	Calc              calculator.Config
	DefaultCommission decimal.Decimal
	LockTTL           time.Duration
	ImportBatchSize   int

	AuthDisabled bool
	// StaticTokens maps plain API tokens to "subject:tenant" for memory mode.
	StaticTokens map[string]string
}

type Config struct {
	Settings

	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
	Redis    *redis.Redis
	RabbitMQ *rabbitmq.RabbitMQ
}

// Load reads .env (when present) and the process environment.
func Load() (Settings, error) {
	_ = godotenv.Load()

	var errs []error

	s := Settings{
		Port:  getenv("SERVER_PORT", "8080"),
		Store: strings.ToLower(getenv("STORE", StorePostgres)),
		Postgres: postgres.ConnectionInfo{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", "hello-world"),
			DB:       getenv("PG_DB", "edudebt"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Mongo: mongo.ConnectionInfo{
			URI:        os.Getenv("MONGO_URI"),
			Scheme:     getenv("MONGO_SCHEME", "mongodb"),
			User:       getenv("MONGO_USER", "root"),
			Password:   getenv("MONGO_PASSWORD", "secret"),
			Host:       getenv("MONGO_HOST", "127.0.0.1"),
			Port:       getenv("MONGO_PORT", "27017"),
			DB:         getenv("MONGO_DB", "collection_db"),
			AuthSource: getenv("MONGO_AUTH_SOURCE", "admin"),
		},
		S3: s3.ConnectionInfo{
			Endpoint:  getenv("AWS_ENDPOINT", "localhost:9000"),
			AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
			SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
			Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
			Bucket:    getenv("AWS_BUCKET", "collection-imports"),
			UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
		},
		Redis: redis.ConnectionInfo{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		AMQPURL:       os.Getenv("AMQP_URL"),
		AMQPExchange:  getenv("AMQP_EXCHANGE", "collection.events"),
		SweepSchedule: getenv("OVERDUE_SWEEP_SCHEDULE", "15 0 * * *"),
		AuthDisabled:  getenv("AUTH_DISABLED", "false") == "true",
		StaticTokens:  parseTokens(os.Getenv("API_TOKENS")),
	}

	if s.Store != StorePostgres && s.Store != StoreMemory {
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, s.Store))
	}

	var err error
	if s.Redis.DB, err = strconv.Atoi(getenv("REDIS_DB", "0")); err != nil {
		errs = append(errs, fmt.Errorf("REDIS_DB: %w", err))
	}
	maxConns, err := strconv.Atoi(getenv("PG_MAX_CONNS", "10"))
	if err != nil || maxConns <= 0 {
		errs = append(errs, fmt.Errorf("PG_MAX_CONNS must be a positive integer"))
	}
	s.Postgres.MaxConns = int32(maxConns)
	if s.ImportBatchSize, err = strconv.Atoi(getenv("IMPORT_BATCH_SIZE", "1000")); err != nil {
		errs = append(errs, fmt.Errorf("IMPORT_BATCH_SIZE: %w", err))
	}
	ttl, err := strconv.Atoi(getenv("LOCK_TTL_SECONDS", "10"))
	if err != nil || ttl <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_TTL_SECONDS must be a positive integer"))
	}
	s.LockTTL = time.Duration(ttl) * time.Second

	accrual := calculator.DefaultAccrual()
	if accrual.MonthlyRate, err = decimal.NewFromString(getenv("ACCRUAL_MONTHLY_RATE", accrual.MonthlyRate.String())); err != nil {
		errs = append(errs, fmt.Errorf("ACCRUAL_MONTHLY_RATE: %w", err))
	}
	if accrual.LateFee, err = decimal.NewFromString(getenv("ACCRUAL_LATE_FEE", accrual.LateFee.String())); err != nil {
		errs = append(errs, fmt.Errorf("ACCRUAL_LATE_FEE: %w", err))
	}
	if accrual.MonthlyRate.IsNegative() || accrual.LateFee.IsNegative() {
		errs = append(errs, errors.New("accrual rates must not be negative"))
	}
	s.Calc = calculator.Config{Accrual: accrual, Schedule: calculator.DefaultSchedule()}

	if s.DefaultCommission, err = decimal.NewFromString(getenv("DEFAULT_COMMISSION_PERCENT", calculator.DefaultCommissionPercentage.String())); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_COMMISSION_PERCENT: %w", err))
	} else if s.DefaultCommission.IsNegative() || s.DefaultCommission.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, errors.New("DEFAULT_COMMISSION_PERCENT must be within [0, 100]"))
	}

	return s, errors.Join(errs...)
}

// Init loads settings and opens every connection the chosen store needs.
// Redis and RabbitMQ are optional and only dialed when configured.
func Init(ctx context.Context) *Config {
	settings, err := Load()
	if err != nil {
		log.Fatal("config error: ", err)
	}
	cfg := &Config{Settings: settings}

	if settings.Store == StorePostgres {
		if cfg.S3, err = s3.NewConnection(settings.S3); err != nil {
			log.Fatal("S3 connect error:", err)
		}
		if cfg.Mongo, err = mongo.NewConnection(ctx, settings.Mongo); err != nil {
			log.Fatal("Mongo connect error:", err)
		}
		if cfg.Postgres, err = postgres.NewConnection(ctx, settings.Postgres); err != nil {
			log.Fatal("Postgres connect error:", err)
		}
	}

	if settings.Redis.Addr != "" {
		if cfg.Redis, err = redis.NewConnection(ctx, settings.Redis); err != nil {
			log.Fatal("Redis connect error:", err)
		}
	}
	if settings.AMQPURL != "" {
		if cfg.RabbitMQ, err = rabbitmq.NewConnection(settings.AMQPURL); err != nil {
			log.Fatal("RabbitMQ connect error:", err)
		}
	}

	return cfg
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.Store == StorePostgres {
		if c.Postgres == nil || c.Postgres.Pool == nil {
			errs = append(errs, errors.New("postgres not initialized"))
		} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
		}

		if c.Mongo == nil || c.Mongo.Client == nil {
			errs = append(errs, errors.New("mongo not initialized"))
		} else if err := c.Mongo.Client.Ping(ctx, nil); err != nil {
			errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
		}

		if c.S3 == nil || c.S3.Client == nil {
			errs = append(errs, errors.New("s3 not initialized"))
		} else if err := c.S3.EnsureBucket(ctx); err != nil {
			errs = append(errs, fmt.Errorf("s3 bucket %q: %w", c.S3.Bucket, err))
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Client.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis ping failed: %w", err))
		}
	}
	if c.RabbitMQ != nil && (c.RabbitMQ.Conn == nil || c.RabbitMQ.Conn.IsClosed()) {
		errs = append(errs, errors.New("rabbitmq connection closed"))
	}

	return errors.Join(errs...)
}

func (c *Config) Close(ctx context.Context) {
	if c.RabbitMQ != nil {
		c.RabbitMQ.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Mongo != nil {
		if err := c.Mongo.Close(ctx); err != nil {
			log.Printf("mongo disconnect: %v", err)
		}
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
}

func parseTokens(raw string) map[string]string {
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, rest, _ := strings.Cut(entry, "=")
		out[strings.TrimSpace(token)] = strings.TrimSpace(rest)
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
