package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	ERP      ERPConfig
	Sync     SyncConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	AppEnv string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

// DSN renders a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type ERPConfig struct {
	BaseURL        string
	AuthMode       string
	ClientID       string
	ClientSecret   string
	Currency       string
	PageSize       int
	MinInterval    time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	Timeout        time.Duration
}

type SyncConfig struct {
	EnrichInventory bool
	LockTTL         time.Duration
}

// RedisConfig is optional; an empty Addr disables the per-date lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig is optional; no brokers disables the sync event.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	RequestTopic string
	GroupID      string
}

type MetricsConfig struct {
	TextfilePath string
}

// TracingConfig drives the OTLP exporter; disabled installs a no-op provider.
type TracingConfig struct {
	Enabled          bool
	ServiceName      string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// LoadEnv reads the environment, optionally overlaid by a .env file in the
// working directory. Real environment variables win over the file.
func LoadEnv() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	e := env{v: v}
	cfg := &Config{
		Server: ServerConfig{
			AppEnv: e.get("APP_ENV", "dev"),
		},
		Logger: LoggerConfig{
			Level:             e.get("LOGGER_LEVEL", "info"),
			Encoding:          e.get("LOGGER_ENCODING", "json"),
			DisableCaller:     e.getBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: e.getBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            e.get("POSTGRES_HOST", "localhost"),
			Port:            e.get("POSTGRES_PORT", "5432"),
			User:            e.get("POSTGRES_USER", "analyst"),
			Password:        e.get("POSTGRES_PASSWORD", "analyst"),
			DBName:          e.get("POSTGRES_DB", "amazon_analyst"),
			SSLMode:         e.get("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    e.getInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.getInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.getInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: e.getInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		ERP: ERPConfig{
			BaseURL:        e.get("ERP_BASE_URL", "https://openapi.lingxing.com"),
			AuthMode:       e.get("ERP_AUTH_MODE", "oauth"),
			ClientID:       e.get("ERP_CLIENT_ID", ""),
			ClientSecret:   e.get("ERP_CLIENT_SECRET", ""),
			Currency:       e.get("ERP_CURRENCY", "USD"),
			PageSize:       e.getInt("ERP_PAGE_SIZE", 100),
			MinInterval:    e.getDuration("ERP_MIN_INTERVAL", 1100*time.Millisecond),
			MaxRetries:     e.getInt("ERP_MAX_RETRIES", 3),
			BackoffInitial: e.getDuration("ERP_BACKOFF_INITIAL", time.Second),
			Timeout:        e.getDuration("ERP_TIMEOUT", 30*time.Second),
		},
		Sync: SyncConfig{
			EnrichInventory: e.getBool("SYNC_ENRICH_INVENTORY", false),
			LockTTL:         e.getDuration("SYNC_LOCK_TTL", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     e.get("REDIS_ADDR", ""),
			Password: e.get("REDIS_PASSWORD", ""),
			DB:       e.getInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:      e.getSlice("KAFKA_BROKERS", nil),
			Topic:        e.get("KAFKA_TOPIC_INVENTORY_POINTS", "inventory_points.synced"),
			RequestTopic: e.get("KAFKA_TOPIC_SYNC_REQUESTS", "inventory_points.sync_requested"),
			GroupID:      e.get("KAFKA_GROUP_INVENTORY_POINTS", "inventory-point-sync"),
		},
		Metrics: MetricsConfig{
			TextfilePath: e.get("METRICS_TEXTFILE_PATH", ""),
		},
		Tracing: TracingConfig{
			Enabled:          e.getBool("TRACING_ENABLED", false),
			ServiceName:      e.get("OTEL_SERVICE_NAME", "inventory-point-sync"),
			ExporterEndpoint: e.get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ExporterProtocol: e.get("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			SamplingRatio:    e.getFloat("TRACING_SAMPLING_RATIO", 1),
		},
	}

	if cfg.ERP.AuthMode != "oauth" && cfg.ERP.AuthMode != "sign" {
		return nil, fmt.Errorf("ERP_AUTH_MODE must be oauth or sign, got %q", cfg.ERP.AuthMode)
	}
	if cfg.ERP.MinInterval < 1100*time.Millisecond {
		return nil, fmt.Errorf("ERP_MIN_INTERVAL must be at least 1.1s, got %s", cfg.ERP.MinInterval)
	}
	if cfg.ERP.PageSize <= 0 || cfg.ERP.PageSize > 100 {
		return nil, fmt.Errorf("ERP_PAGE_SIZE must be within 1..100, got %d", cfg.ERP.PageSize)
	}
	return cfg, nil
}

// env mirrors the os.LookupEnv helpers on top of viper, so keys may come
// from either the process environment or the .env file.
type env struct {
	v *viper.Viper
}

func (e env) get(key, fallback string) string {
	if e.v.IsSet(key) {
		return strings.TrimSpace(e.v.GetString(key))
	}
	return fallback
}

func (e env) getInt(key string, fallback int) int {
	if e.v.IsSet(key) {
		var i int
		if _, err := fmt.Sscan(e.v.GetString(key), &i); err == nil {
			return i
		}
	}
	return fallback
}

func (e env) getFloat(key string, fallback float64) float64 {
	if e.v.IsSet(key) {
		var f float64
		if _, err := fmt.Sscan(e.v.GetString(key), &f); err == nil {
			return f
		}
	}
	return fallback
}

func (e env) getBool(key string, fallback bool) bool {
	if e.v.IsSet(key) {
		switch strings.ToLower(strings.TrimSpace(e.v.GetString(key))) {
		case "1", "t", "true", "yes":
			return true
		case "0", "f", "false", "no":
			return false
		}
	}
	return fallback
}

func (e env) getDuration(key string, fallback time.Duration) time.Duration {
	if e.v.IsSet(key) {
		if d, err := time.ParseDuration(strings.TrimSpace(e.v.GetString(key))); err == nil {
			return d
		}
	}
	return fallback
}

func (e env) getSlice(key string, fallback []string) []string {
	if !e.v.IsSet(key) {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(e.v.GetString(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
