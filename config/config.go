package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreMongo  = "mongo"
	StoreMemory = "memory"

	EventsNone  = "none"
	EventsKafka = "kafka"
	EventsNATS  = "nats"
)

type Config struct {
	Port            string
	Env             string
	StoreDriver     string
	RestockOnCancel bool

	Mongo   MongoConfig
	JWT     JWTConfig
	Admin   AdminConfig
	Redis   RedisConfig
	Events  EventsConfig
	Tracing TracingConfig
}

type MongoConfig struct {
	URI            string
	DB             string
	ConnectRetries int
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// AdminConfig seeds an admin account at startup when Email and Password are both set.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

func (a AdminConfig) Enabled() bool {
	return a.Email != "" && a.Password != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
}

type EventsConfig struct {
	Backend      string
	KafkaBrokers []string
	KafkaTopic   string
	NATSURL      string
	// Notify runs the in-process order notifier against the selected backend.
	Notify bool
}

type TracingConfig struct {
	JaegerEndpoint string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "5001"),
		Env:             getEnv("APP_ENV", EnvDevelopment),
		StoreDriver:     getEnv("STORE_DRIVER", StoreMongo),
		RestockOnCancel: getBool("RESTOCK_ON_CANCEL", false),
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", ""),
			DB:             getEnv("MONGO_DB", "shop"),
			ConnectRetries: getInt("MONGO_CONNECT_RETRIES", 3),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getDuration("JWT_TTL", 24*time.Hour),
		},
		Admin: AdminConfig{
			Name:     getEnv("ADMIN_NAME", "Admin"),
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			TTL:      getDuration("PRODUCT_CACHE_TTL", 5*time.Minute),
		},
		Events: EventsConfig{
			Backend:      getEnv("EVENTS_BACKEND", EventsNone),
			KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "order_events"),
			NATSURL:      getEnv("NATS_URL", ""),
			Notify:       getBool("NOTIFICATIONS_ENABLED", false),
		},
		Tracing: TracingConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.StoreDriver == StoreMongo && c.Mongo.URI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.StoreDriver {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == StoreMongo && c.Mongo.DB == "" {
		return fmt.Errorf("MONGO_DB is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	switch c.Events.Backend {
	case EventsNone:
	case EventsKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka")
		}
	case EventsNATS:
		if c.Events.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when EVENTS_BACKEND=nats")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend)
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
