package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	aws_pkg "github.com/kingjethro999/the-ecommerce-api/pkg/aws"
)

// Event bus choices for EVENT_BUS.
const (
	EventBusSNS   = "sns"
	EventBusKafka = "kafka"
	EventBusNone  = "none"
)

type Config struct {
	Port             string
	AppEnv           string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey  string
	StripeWebhookKey string
	StripeAPIBase    string // stripe-mock in local runs

	DefaultCurrency          string
	GatewayTimeout           time.Duration
	RequestTimeout           time.Duration
	OrderNumberAttempts      int
	NodeID                   int64
	CancelConfirmedOnFailure bool

	RedisURL        string
	ProductCacheTTL time.Duration

	EventBus         string
	KafkaBrokers     []string
	OrderEventsTopic string
	OrderSNSTopicARN string
	AlertSNSTopicARN string

	CloudWatchEnabled  bool
	CloudWatchLogGroup string
	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitBurst     int
}

// LoadConfig reads configuration from the environment (and .env when
// present), with an optional Secrets Manager override for credentials.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		Port:             getEnv("PORT", "8087"),
		AppEnv:           getEnv("APP_ENV", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeAPIBase:    os.Getenv("STRIPE_API_BASE"),

		DefaultCurrency:          strings.ToLower(getEnv("DEFAULT_CURRENCY", "usd")),
		GatewayTimeout:           p.duration("GATEWAY_TIMEOUT", 10*time.Second),
		RequestTimeout:           p.duration("REQUEST_TIMEOUT", 30*time.Second),
		OrderNumberAttempts:      p.integer("ORDER_NUMBER_ATTEMPTS", 3),
		NodeID:                   int64(p.integer("NODE_ID", 1)),
		CancelConfirmedOnFailure: p.boolean("CANCEL_CONFIRMED_ON_FAILURE", true),

		RedisURL:        os.Getenv("REDIS_URL"),
		ProductCacheTTL: p.duration("PRODUCT_CACHE_TTL", 60*time.Second),

		EventBus:         strings.ToLower(getEnv("EVENT_BUS", EventBusNone)),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		AlertSNSTopicARN: os.Getenv("ALERT_SNS_TOPIC_ARN"),

		CloudWatchEnabled:  p.boolean("CLOUDWATCH_ENABLED", false),
		CloudWatchLogGroup: getEnv("CLOUDWATCH_LOG_GROUP", "/ecommerce/payment-service"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitPerMinute: p.integer("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     p.integer("RATE_LIMIT_BURST", 10),
	}
	if p.err != nil {
		return nil, p.err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		applySecrets(context.Background(), cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DSN is the gorm postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func (c *Config) validate() error {
	var missing []string
	for key, val := range map[string]string{
		"POSTGRES_USER":         c.PostgresUser,
		"POSTGRES_PASSWORD":     c.PostgresPassword,
		"POSTGRES_DB":           c.PostgresDB,
		"POSTGRES_HOST":         c.PostgresHost,
		"STRIPE_API_KEY":        c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": c.StripeWebhookKey,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch c.EventBus {
	case EventBusSNS:
		if c.OrderSNSTopicARN == "" {
			return fmt.Errorf("EVENT_BUS=sns requires ORDER_SNS_TOPIC_ARN")
		}
	case EventBusKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("EVENT_BUS=kafka requires KAFKA_BROKERS")
		}
	case EventBusNone:
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}

	if c.OrderNumberAttempts < 1 {
		return fmt.Errorf("ORDER_NUMBER_ATTEMPTS must be at least 1")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be between 0 and 1023")
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

// applySecrets overrides DB credentials and Stripe keys from Secrets
// Manager. Unreadable secrets leave the environment values in place.
func applySecrets(ctx context.Context, cfg *Config) {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return
	}
	sm := aws_pkg.NewSecretsClient(awsCfg)

	if m, err := sm.GetSecretMap(ctx, "payment/DB_CREDENTIALS"); err == nil {
		overrideFrom(m, "POSTGRES_USER", &cfg.PostgresUser)
		overrideFrom(m, "POSTGRES_PASSWORD", &cfg.PostgresPassword)
		overrideFrom(m, "POSTGRES_DB", &cfg.PostgresDB)
		overrideFrom(m, "POSTGRES_HOST", &cfg.PostgresHost)
		overrideFrom(m, "POSTGRES_PORT", &cfg.PostgresPort)
	}
	if v, err := sm.GetSecret(ctx, "payment/STRIPE_API_KEY"); err == nil && v != "" {
		cfg.StripeSecretKey = v
	}
	if v, err := sm.GetSecret(ctx, "payment/STRIPE_WEBHOOK_SECRET"); err == nil && v != "" {
		cfg.StripeWebhookKey = v
	}
}

func overrideFrom(m map[string]string, key string, dst *string) {
	if v, ok := m[key]; ok && v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parser keeps the first malformed value it sees.
type parser struct{ err error }

func (p *parser) fail(key, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return d
}

func (p *parser) integer(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return n
}

func (p *parser) boolean(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return b
}
