package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	aws_pkg "checkout-service/pkg/aws"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	Frontend string

	// AllowedOrigins feeds CORS on the checkout route; defaults to Frontend.
	AllowedOrigins []string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey  string
	StripeWebhookKey string
	StripeTimeout    time.Duration
	WebhookTolerance time.Duration
	ReconcileTimeout time.Duration

	RedisURL                   string
	OrderSNSTopicARN           string
	NotificationRepairQueueURL string
	EventLedger                string // postgres | redis | dynamodb | none
	WebhookEventsTable         string
	UseSecretsManager          bool
}

// SecretSource is the subset of the Secrets Manager client the loader needs.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

const (
	stripeSecretName = "checkout/STRIPE_CREDENTIALS"
	dbSecretName     = "checkout/DB_CREDENTIALS"
)

// LoadConfig reads the environment (and .env when present) and validates it.
// With AWS_USE_SECRETS=true, Stripe and database credentials are overlaid from
// Secrets Manager before validation.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()
	if cfg.UseSecretsManager {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults only.
func FromEnv() *Config {
	frontend := strings.TrimSuffix(os.Getenv("FRONTEND_URL"), "/")
	return &Config{
		Port:                       getEnv("PORT", "8088"),
		Env:                        getEnv("APP_ENV", "development"),
		Frontend:                   frontend,
		AllowedOrigins:             splitOrigins(os.Getenv("ALLOWED_ORIGINS"), frontend),
		PostgresUser:               os.Getenv("POSTGRES_USER"),
		PostgresPassword:           os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:                 os.Getenv("POSTGRES_DB"),
		PostgresHost:               os.Getenv("POSTGRES_HOST"),
		PostgresPort:               getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:            getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:           getEnv("POSTGRES_TIMEZONE", "UTC"),
		StripeSecretKey:            os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey:           os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeTimeout:              getDuration("STRIPE_TIMEOUT", 10*time.Second),
		WebhookTolerance:           getDuration("WEBHOOK_TOLERANCE", 300*time.Second),
		ReconcileTimeout:           getDuration("RECONCILE_TIMEOUT", 10*time.Second),
		RedisURL:                   os.Getenv("REDIS_URL"),
		OrderSNSTopicARN:           os.Getenv("ORDER_SNS_TOPIC_ARN"),
		NotificationRepairQueueURL: os.Getenv("NOTIFICATION_REPAIR_QUEUE_URL"),
		EventLedger:                strings.ToLower(getEnv("EVENT_LEDGER", "postgres")),
		WebhookEventsTable:         getEnv("DDB_TABLE_WEBHOOK_EVENTS", "WebhookEvents"),
		UseSecretsManager:          os.Getenv("AWS_USE_SECRETS") == "true",
	}
}

// ApplySecrets overlays non-empty secret values onto the config.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	stripeSecrets, err := src.GetSecretMap(ctx, stripeSecretName)
	if err != nil {
		return fmt.Errorf("load stripe secrets: %w", err)
	}
	overlay(&c.StripeSecretKey, stripeSecrets, "STRIPE_API_KEY")
	overlay(&c.StripeWebhookKey, stripeSecrets, "STRIPE_WEBHOOK_SECRET")

	dbSecrets, err := src.GetSecretMap(ctx, dbSecretName)
	if err != nil {
		return fmt.Errorf("load db secrets: %w", err)
	}
	overlay(&c.PostgresUser, dbSecrets, "POSTGRES_USER")
	overlay(&c.PostgresPassword, dbSecrets, "POSTGRES_PASSWORD")
	overlay(&c.PostgresDB, dbSecrets, "POSTGRES_DB")
	overlay(&c.PostgresHost, dbSecrets, "POSTGRES_HOST")
	overlay(&c.PostgresPort, dbSecrets, "POSTGRES_PORT")
	return nil
}

// Validate fails fast on anything the service cannot start without.
func (c *Config) Validate() error {
	required := []struct{ key, val string }{
		{"STRIPE_API_KEY", c.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookKey},
		{"FRONTEND_URL", c.Frontend},
		{"POSTGRES_USER", c.PostgresUser},
		{"POSTGRES_PASSWORD", c.PostgresPassword},
		{"POSTGRES_DB", c.PostgresDB},
		{"POSTGRES_HOST", c.PostgresHost},
	}
	var missing []string
	for _, r := range required {
		if r.val == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch c.EventLedger {
	case "postgres", "redis", "dynamodb", "none":
	default:
		return fmt.Errorf("unsupported EVENT_LEDGER %q", c.EventLedger)
	}
	if c.EventLedger == "redis" && c.RedisURL == "" {
		return fmt.Errorf("EVENT_LEDGER=redis requires REDIS_URL")
	}
	return nil
}

// PostgresDSN renders the gorm/pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func splitOrigins(raw, fallback string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(o), "/")); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 && fallback != "" {
		out = []string{fallback}
	}
	return out
}

func overlay(dst *string, src map[string]string, key string) {
	if v, ok := src[key]; ok && v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
