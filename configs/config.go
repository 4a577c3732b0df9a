package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Queue struct {
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
	Retention   time.Duration
}

type Publish struct {
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

type Reconcile struct {
	Interval time.Duration
	Grace    time.Duration
}

type Config struct {
	PostgresURI       string
	RedisURI          string
	RedisPassword     string
	HTTPAddr          string
	SecretKey         string
	CookieName        string
	LockTTL           time.Duration
	InstagramGraphURL string
	TiktokAPIURL      string
	Queue             Queue
	Publish           Publish
	Reconcile         Reconcile
	R2                R2
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:       getEnv("POSTGRES_URI", ""),
		RedisURI:          getEnv("REDIS_URI", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		HTTPAddr:          getEnv("HTTP_ADDR", ":3000"),
		SecretKey:         getEnv("SECRET_KEY", ""),
		CookieName:        getEnv("COOKIE_NAME", "postflow_session"),
		LockTTL:           getEnvDuration("LOCK_TTL", 30*time.Second),
		InstagramGraphURL: getEnv("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com/v21.0"),
		TiktokAPIURL:      getEnv("TIKTOK_API_URL", "https://open.tiktokapis.com/v2"),
		Queue: Queue{
			Concurrency: getEnvInt("QUEUE_CONCURRENCY", 10),
			MaxAttempts: getEnvInt("PUBLISH_MAX_ATTEMPTS", 3),
			BackoffBase: getEnvDuration("PUBLISH_BACKOFF_BASE", 5*time.Second),
			Retention:   getEnvDuration("QUEUE_RETENTION", 24*time.Hour),
		},
		Publish: Publish{
			Timeout:    getEnvDuration("PUBLISH_TIMEOUT", 2*time.Minute),
			RatePerSec: getEnvFloat("PUBLISH_RATE_PER_SEC", 5),
			Burst:      getEnvInt("PUBLISH_RATE_BURST", 5),
		},
		Reconcile: Reconcile{
			Interval: getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),
			Grace:    getEnvDuration("RECONCILE_GRACE", time.Hour),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("invalid number in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}
