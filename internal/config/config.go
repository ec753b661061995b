package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fjod/go_cart/marketplace/internal/pricing"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	Environment     string
	LogLevel        string
	Mongo           MongoConfig
	Redis           RedisConfig
	CatalogDBPath   string
	Kafka           KafkaConfig
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	Pricing         pricing.Policy
	Tracing         TracingConfig
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type TracingConfig struct {
	ServiceName string
	SampleRatio float64
}

// KafkaConfig is optional; no brokers disables event publishing.
type KafkaConfig struct {
	Brokers   []string
	CartTopic string
}

var defaults = map[string]any{
	"PORT":                    "8080",
	"ENVIRONMENT":             "development",
	"LOG_LEVEL":               "info",
	"MONGO_URI":               "mongodb://localhost:27017",
	"MONGO_DB_NAME":           "marketplace",
	"REDIS_ADDR":              "localhost:6379",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"CACHE_TTL":               "15m",
	"CATALOG_DB_PATH":         "catalog.db",
	"KAFKA_BROKERS":           "",
	"KAFKA_CART_TOPIC":        "cart-events",
	"REQUEST_TIMEOUT":         "10s",
	"SHUTDOWN_TIMEOUT":        "10s",
	"CURRENCY":                "ZAR",
	"SHIPPING_BASELINE":       "100",
	"FREE_SHIPPING_THRESHOLD": "5000",
	"DISCOUNT_CODE":           "DIS25",
	"DISCOUNT_RATE":           "0.3",
	"SERVICE_NAME":            "marketplace",
	"TRACE_SAMPLE_RATIO":      1.0,
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, fills variables that are not already set; a
// malformed one is an error.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Mongo: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			CacheTTL: v.GetDuration("CACHE_TTL"),
		},
		CatalogDBPath: v.GetString("CATALOG_DB_PATH"),
		Kafka: KafkaConfig{
			Brokers:   splitList(v.GetString("KAFKA_BROKERS")),
			CartTopic: v.GetString("KAFKA_CART_TOPIC"),
		},
		RequestTimeout:  v.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		Tracing: TracingConfig{
			ServiceName: strings.TrimSpace(v.GetString("SERVICE_NAME")),
			SampleRatio: v.GetFloat64("TRACE_SAMPLE_RATIO"),
		},
	}

	policy, err := pricingPolicy(v)
	if err != nil {
		return nil, err
	}
	cfg.Pricing = policy

	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.Tracing.ServiceName == "" {
		return nil, fmt.Errorf("SERVICE_NAME must not be empty")
	}
	if r := cfg.Tracing.SampleRatio; r < 0 || r > 1 {
		return nil, fmt.Errorf("TRACE_SAMPLE_RATIO must be within [0, 1], got %v", r)
	}

	return cfg, nil
}

func pricingPolicy(v *viper.Viper) (pricing.Policy, error) {
	baseline, err := nonNegativeDecimal(v, "SHIPPING_BASELINE")
	if err != nil {
		return pricing.Policy{}, err
	}
	threshold, err := nonNegativeDecimal(v, "FREE_SHIPPING_THRESHOLD")
	if err != nil {
		return pricing.Policy{}, err
	}
	rate, err := nonNegativeDecimal(v, "DISCOUNT_RATE")
	if err != nil {
		return pricing.Policy{}, err
	}
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return pricing.Policy{}, fmt.Errorf("DISCOUNT_RATE must not exceed 1, got %s", rate)
	}

	return pricing.Policy{
		Currency:              strings.TrimSpace(v.GetString("CURRENCY")),
		ShippingBaseline:      baseline,
		FreeShippingThreshold: threshold,
		DiscountCode:          strings.TrimSpace(v.GetString("DISCOUNT_CODE")),
		DiscountRate:          rate,
	}, nil
}

func nonNegativeDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}

func splitList(csv string) []string {
	items := []string{}
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
