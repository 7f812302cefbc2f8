package config

import (
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

type Dispatcher struct {
	BatchSize      int
	MaxAttempts    int
	WorkerCount    int
	PublishTimeout time.Duration
	ClaimTTL       time.Duration
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
	SweepInterval  string
}

type Config struct {
	InstagramClientID     string
	InstagramClientSecret string
	TiktokClientKey       string
	TiktokClientSecret    string
	GoogleClientID        string
	GoogleClientSecret    string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	R2                    R2
	Dispatcher            Dispatcher
	SecretKey             string
	CookieName            string
	CronSecret            string
}

func LoadConfig() *Config {
	return &Config{
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		TiktokClientKey:       getEnv("TIKTOK_CLIENT_KEY", ""),
		TiktokClientSecret:    getEnv("TIKTOK_CLIENT_SECRET", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", ""),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Dispatcher: Dispatcher{
			BatchSize:      getEnvInt("DISPATCH_BATCH_SIZE", 50),
			MaxAttempts:    getEnvInt("DISPATCH_MAX_ATTEMPTS", 3),
			WorkerCount:    getEnvInt("DISPATCH_WORKERS", 10),
			PublishTimeout: getEnvDuration("DISPATCH_PUBLISH_TIMEOUT", 2*time.Minute),
			ClaimTTL:       getEnvDuration("DISPATCH_CLAIM_TTL", 15*time.Minute),
			BackoffBase:    getEnvDuration("DISPATCH_BACKOFF_BASE", 5*time.Minute),
			BackoffCeiling: getEnvDuration("DISPATCH_BACKOFF_CEILING", time.Hour),
			SweepInterval:  getEnv("DISPATCH_SWEEP_INTERVAL", "@every 00h05m00s"),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),
		CronSecret: getEnv("CRON_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
