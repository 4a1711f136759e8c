// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by the *.backend keys.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendLog      = "log"
	BackendSES      = "ses"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// EnvProduction enables the canonical host redirect.
const EnvProduction = "production"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Logging         LoggingConfig         `mapstructure:"logging"`
	Application     ApplicationConfig     `mapstructure:"application"`
	SubscriberStore SubscriberStoreConfig `mapstructure:"subscriber_store"`
	Events          EventsConfig          `mapstructure:"events"`
	DB              DBConfig              `mapstructure:"db"`
	Mail            MailConfig            `mapstructure:"mail"`
	AWS             AWSConfig             `mapstructure:"aws"`
	PubSub          PubSubConfig          `mapstructure:"pubsub"`
	Storage         StorageConfig         `mapstructure:"storage"`
	CORS            CORSConfig            `mapstructure:"cors"`
	RateLimit       RateLimitConfig       `mapstructure:"rate_limit"`
}

// ServerConfig controls HTTP server behavior and host canonicalization.
// TrustedProxyHops is how many proxies in front of the service append to
// X-Forwarded-For; zero ignores the header and uses the peer address.
type ServerConfig struct {
	Port                   int      `mapstructure:"port"`
	Environment            string   `mapstructure:"environment"`
	CanonicalHost          string   `mapstructure:"canonical_host"`
	PreviewSuffixes        []string `mapstructure:"preview_suffixes"`
	BypassPrefixes         []string `mapstructure:"bypass_prefixes"`
	TrustedProxyHops       int      `mapstructure:"trusted_proxy_hops"`
	RequestTimeoutSeconds  int      `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ApplicationConfig names the service for telemetry.
type ApplicationConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
}

// SubscriberStoreConfig selects the subscriber document store.
type SubscriberStoreConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	DynamoDBTable string `mapstructure:"dynamodb_table"`
}

// EventsConfig selects the event store and optional fan-out.
type EventsConfig struct {
	Backend     string `mapstructure:"backend"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	EventsTable            string `mapstructure:"events_table"`
	SessionsTable          string `mapstructure:"sessions_table"`
}

// MailConfig configures welcome email delivery.
type MailConfig struct {
	Backend          string  `mapstructure:"backend"`
	FromEmail        string  `mapstructure:"from_email"`
	FromName         string  `mapstructure:"from_name"`
	ReplyTo          string  `mapstructure:"reply_to"`
	ConfigurationSet string  `mapstructure:"configuration_set"`
	Subject          string  `mapstructure:"subject"`
	SiteURL          string  `mapstructure:"site_url"`
	SiteName         string  `mapstructure:"site_name"`
	MaxPerSecond     float64 `mapstructure:"max_per_second"`
	Burst            int     `mapstructure:"burst"`
}

// AWSConfig is shared by the DynamoDB and SES clients.
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Profile  string `mapstructure:"profile"`
	Endpoint string `mapstructure:"endpoint"`
}

// PubSubConfig holds metadata for event fan-out.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StorageConfig selects where Open Graph images are read from.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
	OGPrefix  string `mapstructure:"og_prefix"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig caps API calls per client IP.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// Load builds a Config from disk/environment. Environment variables use the
// CALIS_ prefix (CALIS_SERVER_PORT); PORT is honored for the listen port.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CALIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "CALIS_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.canonical_host", "")
	v.SetDefault("server.preview_suffixes", []string{".vercel.app"})
	v.SetDefault("server.bypass_prefixes", []string{
		"/_next", "/static", "/favicon.ico", "/robots.txt", "/sitemap.xml",
		"/.well-known", "/healthz", "/readyz", "/metrics",
	})
	v.SetDefault("server.trusted_proxy_hops", 1)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("application.service_name", "calis-blog")
	v.SetDefault("application.version", "dev")
	v.SetDefault("subscriber_store.backend", BackendMemory)
	v.SetDefault("subscriber_store.redis_addr", "")
	v.SetDefault("subscriber_store.redis_password", "")
	v.SetDefault("subscriber_store.redis_db", 0)
	v.SetDefault("subscriber_store.key_prefix", "calis:")
	v.SetDefault("subscriber_store.dynamodb_table", "")
	v.SetDefault("events.backend", BackendMemory)
	v.SetDefault("events.auto_migrate", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("db.events_table", "events")
	v.SetDefault("db.sessions_table", "sessions")
	v.SetDefault("mail.backend", BackendLog)
	v.SetDefault("mail.from_email", "")
	v.SetDefault("mail.from_name", "")
	v.SetDefault("mail.reply_to", "")
	v.SetDefault("mail.configuration_set", "")
	v.SetDefault("mail.subject", "Welcome to the newsletter")
	v.SetDefault("mail.site_url", "http://localhost:3000")
	v.SetDefault("mail.site_name", "Calisthenics Hub")
	v.SetDefault("mail.max_per_second", 10.0)
	v.SetDefault("mail.burst", 5)
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.profile", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.base_dir", "")
	v.SetDefault("storage.og_prefix", "og")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("rate_limit.requests_per_minute", 60)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.TrustedProxyHops < 0 {
		return fmt.Errorf("server.trusted_proxy_hops must be >= 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Production() && strings.TrimSpace(c.Server.CanonicalHost) == "" {
		return fmt.Errorf("server.canonical_host must be set in production")
	}
	if err := oneOf("subscriber_store.backend", c.SubscriberStore.Backend,
		BackendMemory, BackendRedis, BackendDynamoDB); err != nil {
		return err
	}
	if c.SubscriberStore.Backend == BackendRedis && c.SubscriberStore.RedisAddr == "" {
		return fmt.Errorf("subscriber_store.redis_addr must be set for the redis backend")
	}
	if c.SubscriberStore.Backend == BackendDynamoDB && c.SubscriberStore.DynamoDBTable == "" {
		return fmt.Errorf("subscriber_store.dynamodb_table must be set for the dynamodb backend")
	}
	if err := oneOf("events.backend", c.Events.Backend, BackendMemory, BackendPostgres); err != nil {
		return err
	}
	if c.Events.Backend == BackendPostgres && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set for the postgres events backend")
	}
	if err := oneOf("mail.backend", c.Mail.Backend, BackendLog, BackendSES); err != nil {
		return err
	}
	if c.Mail.Backend == BackendSES && c.Mail.FromEmail == "" {
		return fmt.Errorf("mail.from_email must be set for the ses backend")
	}
	if c.Mail.Burst < 0 || c.Mail.MaxPerSecond < 0 {
		return fmt.Errorf("mail.max_per_second and mail.burst must be >= 0")
	}
	if err := oneOf("storage.backend", c.Storage.Backend, BackendMemory, BackendLocal, BackendGCS); err != nil {
		return err
	}
	if c.Storage.Backend == BackendGCS && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
	}
	if c.Storage.Backend == BackendLocal && c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir must be set for the local backend")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be >= 0")
	}
	return nil
}

// Production reports whether the service runs in the production environment.
func (c Config) Production() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

// RequestTimeout converts the request timeout to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout converts the shutdown timeout to a duration.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// PubSubEnabled reports whether event fan-out is configured.
func (c Config) PubSubEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.TopicName != ""
}

func oneOf(key, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}
