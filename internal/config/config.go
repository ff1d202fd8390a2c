// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8000"`

	// Service identity fields stamped onto every wide event.
	ServiceName    string `env:"SERVICE_NAME" envDefault:"investor-api"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`
	DeploymentID   string `env:"DEPLOYMENT_ID"`
	Region         string `env:"REGION"`

	// Market data provider
	MarketBaseURL string `env:"MARKET_BASE_URL" envDefault:"https://query1.finance.yahoo.com"`

	// Provider retry knobs
	ProviderMaxElapsedTime  time.Duration `env:"PROVIDER_MAX_ELAPSED_TIME" envDefault:"15s"`
	ProviderInitialInterval time.Duration `env:"PROVIDER_INITIAL_INTERVAL" envDefault:"250ms"`
	ProviderMaxInterval     time.Duration `env:"PROVIDER_MAX_INTERVAL" envDefault:"3s"`
	ProviderMultiplier      float64       `env:"PROVIDER_MULTIPLIER" envDefault:"2.0"`

	// Quote cache (disabled when RedisAddr is empty)
	RedisAddr     string        `env:"REDIS_ADDR"`
	QuoteCacheTTL time.Duration `env:"QUOTE_CACHE_TTL" envDefault:"30s"`

	// Snapshot archive (disabled when DBURL is empty)
	DBURL string `env:"DB_URL"`

	// Wide-event Kafka sink (disabled when no brokers configured)
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	WideEventTopic string   `env:"WIDE_EVENT_TOPIC" envDefault:"wide-events"`
	// WideEventLogFile redirects wide-event records to a dedicated file;
	// empty means they share the process stdout log stream.
	WideEventLogFile string `env:"WIDE_EVENT_LOG_FILE"`

	// Watchlist snapshot loop (disabled when WatchlistFile is empty)
	WatchlistFile     string        `env:"WATCHLIST_FILE"`
	WatchlistInterval time.Duration `env:"WATCHLIST_INTERVAL" envDefault:"15m"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"investor-api"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// SnapshotsEnabled reports whether the Postgres snapshot archive is configured.
func (c Config) SnapshotsEnabled() bool { return c.DBURL != "" }

// KafkaSinkEnabled reports whether the wide-event Kafka sink is configured.
func (c Config) KafkaSinkEnabled() bool { return len(c.KafkaBrokers) > 0 }

// GetProviderBackoffConfig returns backoff configuration for provider calls.
// In test environments, uses much shorter timeouts for faster test execution.
func (c Config) GetProviderBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 2 * time.Second, 20 * time.Millisecond, 200 * time.Millisecond, 2.0
	}
	return c.ProviderMaxElapsedTime, c.ProviderInitialInterval, c.ProviderMaxInterval, c.ProviderMultiplier
}
