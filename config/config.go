package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"bastaku-campaign-api/database"
	"bastaku-campaign-api/logger"
)

type Config struct {
	Database database.DatabaseConfig
	Server   ServerConfig
	Redis    RedisConfig
	Session  SessionConfig
	JWT      JWTConfig
	Campaign CampaignConfig
}

type ServerConfig struct {
	Port string
}

type RedisConfig struct {
	URL               string
	WorkerConcurrency int
}

type SessionConfig struct {
	Secret string
	Domain string
	MaxAge int
	Secure bool
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

type CampaignConfig struct {
	Duration time.Duration
	CacheTTL time.Duration
	// ExpirySweep is how often the worker closes campaigns past their end time.
	ExpirySweep time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("WORKER_CONCURRENCY", 2)
	v.SetDefault("SESSION_MAX_AGE", 86400*7)
	v.SetDefault("SESSION_SECURE", true)
	v.SetDefault("JWT_ISSUER", "bastaku-campaign-api")
	v.SetDefault("JWT_TOKEN_TTL", "24h")
	v.SetDefault("CAMPAIGN_DURATION", "168h")
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("EXPIRY_SWEEP", "1m")
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Get().Warnw("failed to load .env file", "error", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Get().Infow("config loaded",
		"server_port", cfg.Server.Port,
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.DBName,
		"worker_concurrency", cfg.Redis.WorkerConcurrency,
		"campaign_duration", cfg.Campaign.Duration.String(),
	)
	return cfg, nil
}

func FromViper(v *viper.Viper) *Config {
	return &Config{
		Database: database.DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
		},
		Server: ServerConfig{
			Port: v.GetString("SERVER_PORT"),
		},
		Redis: RedisConfig{
			URL:               v.GetString("REDIS_URL"),
			WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
		},
		Session: SessionConfig{
			Secret: v.GetString("SESSION_SECRET"),
			Domain: v.GetString("SESSION_DOMAIN"),
			MaxAge: v.GetInt("SESSION_MAX_AGE"),
			Secure: v.GetBool("SESSION_SECURE"),
		},
		JWT: JWTConfig{
			Secret:   v.GetString("JWT_SECRET"),
			Issuer:   v.GetString("JWT_ISSUER"),
			TokenTTL: v.GetDuration("JWT_TOKEN_TTL"),
		},
		Campaign: CampaignConfig{
			Duration:    v.GetDuration("CAMPAIGN_DURATION"),
			CacheTTL:    v.GetDuration("CACHE_TTL"),
			ExpirySweep: v.GetDuration("EXPIRY_SWEEP"),
		},
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Database.Host == "" || c.Database.DBName == "":
		return errors.New("DB_HOST and DB_NAME are required")
	case c.Session.Secret == "":
		return errors.New("SESSION_SECRET is required")
	case c.JWT.Secret == "":
		return errors.New("JWT_SECRET is required")
	case c.Redis.WorkerConcurrency < 1:
		return errors.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Redis.WorkerConcurrency)
	case c.Campaign.Duration <= 0:
		return errors.Errorf("CAMPAIGN_DURATION must be positive, got %s", c.Campaign.Duration)
	}
	return nil
}
