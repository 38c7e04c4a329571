package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	StripeAPIKey        string
	StripeWebhookSecret string

	// CheckoutSuccessURL and CheckoutCancelURL are the fixed application
	// routes the provider redirects back to after a hosted session.
	CheckoutSuccessURL string
	CheckoutCancelURL  string

	// MarketplaceFeePercent is the application fee taken on product and kit
	// sales, in whole percent.
	MarketplaceFeePercent int64

	// EscrowHoldDays is how long sale proceeds stay held before the time
	// sweep releases them to the vendor.
	EscrowHoldDays int

	// EscrowSweepInterval is the sweep period in seconds.
	EscrowSweepInterval int

	// PromotionTiers maps a featured-listing duration in days to its flat
	// price in euro cents.
	PromotionTiers map[int]int64

	Metrics MetricsConfig
}

type MetricsConfig struct {
	Enabled  bool
	Exporter string
	Endpoint string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "despiezo"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel: getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "despiezo"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		StripeAPIKey:        strings.TrimSpace(getenv("STRIPE_API_KEY", "")),
		StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),

		CheckoutSuccessURL: getenv("CHECKOUT_SUCCESS_URL", "https://despiezo.com/compra/exito"),
		CheckoutCancelURL:  getenv("CHECKOUT_CANCEL_URL", "https://despiezo.com/compra/cancelado"),

		MarketplaceFeePercent: int64(getenvInt("MARKETPLACE_FEE_PERCENT", 10)),
		EscrowHoldDays:        getenvInt("ESCROW_HOLD_DAYS", 20),
		EscrowSweepInterval:   getenvInt("ESCROW_SWEEP_INTERVAL", 900),

		PromotionTiers: parsePromotionTiers(getenv("PROMOTION_TIERS", "7=500,15=900,30=1500")),

		Metrics: MetricsConfig{
			Enabled:  getenvBool("METRICS_ENABLED", false),
			Exporter: strings.ToLower(getenv("METRICS_EXPORTER", "grpc")),
			Endpoint: strings.TrimSpace(getenv("METRICS_ENDPOINT", "localhost:4317")),
		},
	}

	return cfg
}

func parsePromotionTiers(raw string) map[int]int64 {
	tiers := map[int]int64{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyValue := strings.SplitN(part, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		days, err := strconv.Atoi(strings.TrimSpace(keyValue[0]))
		if err != nil || days <= 0 {
			continue
		}
		price, err := strconv.ParseInt(strings.TrimSpace(keyValue[1]), 10, 64)
		if err != nil || price <= 0 {
			continue
		}
		tiers[days] = price
	}
	return tiers
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
