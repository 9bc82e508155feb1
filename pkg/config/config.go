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
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	APNs         APNsConfig
	Admin        AdminConfig
	CacheManager CacheManagerConfig
	Recommender  RecommenderConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig is optional; an empty host keeps pending pushes in postgres.
type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type APNsConfig struct {
	KeyPath    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// AdminConfig guards the operator endpoints. PasswordHash is a bcrypt hash.
type AdminConfig struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

type CacheManagerConfig struct {
	SlotDuration         time.Duration
	WiFiThreshold        float64
	FallbackPushDelay    time.Duration
	NetworkProbeInterval time.Duration
	NetworkProbeEnabled  bool
	RestoreGrace         time.Duration
	TimeZone             string
}

type RecommenderConfig struct {
	NumFactors     int
	NumIterations  int
	Regularization float64
	NumWorkers     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	slot, err := getEnvDuration("CACHE_SLOT_DURATION", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	threshold, err := getEnvFloat("CACHE_WIFI_THRESHOLD", 0.5)
	if err != nil {
		return nil, err
	}
	fallback, err := getEnvDuration("CACHE_FALLBACK_PUSH_DELAY", time.Hour)
	if err != nil {
		return nil, err
	}
	probe, err := getEnvDuration("CACHE_NETWORK_PROBE_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	grace, err := getEnvDuration("CACHE_RESTORE_GRACE", slot)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := getEnvDuration("ADMIN_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	factors, err := getEnvInt("RECOMMENDER_FACTORS", 8)
	if err != nil {
		return nil, err
	}
	iterations, err := getEnvInt("RECOMMENDER_ITERATIONS", 15)
	if err != nil {
		return nil, err
	}
	regularization, err := getEnvFloat("RECOMMENDER_REGULARIZATION", 0.1)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvInt("RECOMMENDER_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Proactive Cacher"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "proactive_cacher"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", ""),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		APNs: APNsConfig{
			KeyPath:    getEnv("APNS_KEY_PATH", "APNs/AuthKey.p8"),
			KeyID:      getEnv("APNS_KEY_ID", ""),
			TeamID:     getEnv("APNS_TEAM_ID", ""),
			Topic:      getEnv("APNS_TOPIC", "com.DavidPasztor.ProactiveCacher"),
			Production: getEnv("APNS_PRODUCTION", "false") == "true",
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			JWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
			TokenTTL:     tokenTTL,
		},
		CacheManager: CacheManagerConfig{
			SlotDuration:         slot,
			WiFiThreshold:        threshold,
			FallbackPushDelay:    fallback,
			NetworkProbeInterval: probe,
			NetworkProbeEnabled:  getEnv("CACHE_NETWORK_PROBE_ENABLED", "true") == "true",
			RestoreGrace:         grace,
			TimeZone:             getEnv("CACHE_TIMEZONE", "Local"),
		},
		Recommender: RecommenderConfig{
			NumFactors:     factors,
			NumIterations:  iterations,
			Regularization: regularization,
			NumWorkers:     workers,
		},
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("missing admin jwt secret")
	}

	if err := cfg.CacheManager.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c CacheManagerConfig) validate() error {
	if c.SlotDuration <= 0 || (24*time.Hour)%c.SlotDuration != 0 {
		return fmt.Errorf("slot duration %v must evenly divide a day", c.SlotDuration)
	}
	if c.WiFiThreshold < 0 || c.WiFiThreshold > 1 {
		return fmt.Errorf("wifi threshold %v must be within [0,1]", c.WiFiThreshold)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid cache timezone %q: %w", c.TimeZone, err)
	}
	return nil
}

// Location resolves the configured time zone; Load has already validated it.
func (c CacheManagerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
