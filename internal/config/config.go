package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	JWTSecret  string

	AMQPURL      string
	AMQPExchange string

	// Pricing, in whole currency units.
	PlatformFee           int64
	ShippingFee           int64
	FreeShippingThreshold int64
	TaxPercent            int64

	LowStockThreshold    int
	HydrationConcurrency int
	SideEffectRetries    int
	PaymentDelay         time.Duration
	DeliveryDays         int
}

var ErrMissingDBHost = errors.New("DB_HOST is required")

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:       os.Getenv("DB_HOST"),
		DBUser:       os.Getenv("DB_USER"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBName:       os.Getenv("DB_NAME"),
		DBPort:       getenv("DB_PORT", "5432"),
		AppPort:      getenv("APP_PORT", "8080"),
		AppEnv:       getenv("APP_ENV", "development"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getenv("AMQP_EXCHANGE", "bookstore.admin"),
	}

	if cfg.DBHost == "" {
		return nil, ErrMissingDBHost
	}

	var err error
	if cfg.PlatformFee, err = int64Env("PLATFORM_FEE", 20); err != nil {
		return nil, err
	}
	if cfg.ShippingFee, err = int64Env("SHIPPING_FEE", 50); err != nil {
		return nil, err
	}
	if cfg.FreeShippingThreshold, err = int64Env("FREE_SHIPPING_THRESHOLD", 500); err != nil {
		return nil, err
	}
	if cfg.TaxPercent, err = int64Env("TAX_PERCENT", 18); err != nil {
		return nil, err
	}
	if cfg.LowStockThreshold, err = intEnv("LOW_STOCK_THRESHOLD", 5); err != nil {
		return nil, err
	}
	if cfg.HydrationConcurrency, err = intEnv("HYDRATION_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.SideEffectRetries, err = intEnv("SIDE_EFFECT_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.DeliveryDays, err = intEnv("DELIVERY_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.PaymentDelay, err = durationEnv("PAYMENT_DELAY", time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func int64Env(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return n, nil
}

func intEnv(key string, def int) (int, error) {
	n, err := int64Env(key, int64(def))
	return int(n), err
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
