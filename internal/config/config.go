package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	EventsSubject       string
	JWTSecret           string
	StatsCacheTTL       time.Duration
	RetentionInterval   time.Duration
	RetentionEnabled    bool
	TaskRateLimit       int
	TaskRateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Study Plan API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.subject", "gema.studyplan")
	v.SetDefault("stats.cache_ttl", "1m")
	v.SetDefault("retention.interval", "1h")
	v.SetDefault("retention.enabled", true)
	v.SetDefault("task.rate_limit", 60)
	v.SetDefault("task.rate_limit_window", "1m")

	statsTTL, err := parseDuration(v, "stats.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	retentionInterval, err := parseDuration(v, "retention.interval")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "task.rate_limit_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		EventsSubject:       strings.TrimSuffix(v.GetString("events.subject"), "."),
		JWTSecret:           v.GetString("jwt.secret"),
		StatsCacheTTL:       statsTTL,
		RetentionInterval:   retentionInterval,
		RetentionEnabled:    v.GetBool("retention.enabled"),
		TaskRateLimit:       v.GetInt("task.rate_limit"),
		TaskRateLimitWindow: rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.RetentionInterval < time.Minute {
		return Config{}, fmt.Errorf("retention interval must be at least one minute")
	}

	if cfg.TaskRateLimit <= 0 {
		cfg.TaskRateLimit = 60
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}
