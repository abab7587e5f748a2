package config

import (
	"errors"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the backend. Values come from an
// optional YAML file (CONFIG_FILE) with environment variables overriding;
// secrets (the NBB subscription key) come from the environment only.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	NBB      NBBConfig      `yaml:"nbb"`
	Import   ImportConfig   `yaml:"import"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"SERVER_ADDR" env-default:":8080"`
	Env  string `yaml:"env" env:"APP_ENV" env-default:"development"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type RedisConfig struct {
	// URL is optional; without Redis the import worker runs unguarded,
	// which is fine for single-instance deployments.
	URL string `yaml:"url" env:"REDIS_URL"`
}

type KafkaConfig struct {
	// Brokers is a comma-separated seed list; empty disables the job
	// consumer and the lazy-import enqueue path falls back to synchronous
	// imports.
	Brokers string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic   string `yaml:"topic" env:"KAFKA_IMPORT_TOPIC" env-default:"financials.import.jobs"`
	Group   string `yaml:"group" env:"KAFKA_IMPORT_GROUP" env-default:"companions-importer"`
}

type NBBConfig struct {
	BaseURL         string `yaml:"base_url" env:"NBB_BASE_URL" env-default:"https://ws.cbso.nbb.be/authentic"`
	SubscriptionKey string `yaml:"-" env:"NBB_SUBSCRIPTION_KEY"`
	UserAgent       string `yaml:"user_agent" env:"NBB_USER_AGENT" env-default:"companions-app-backend/1.0"`
}

type ImportConfig struct {
	// SettleDelay lets writes from a just-finished request land before the
	// duplicate-run guard is evaluated.
	SettleDelay time.Duration `yaml:"settle_delay" env:"IMPORT_SETTLE_DELAY" env-default:"2s"`
	// LeaseTTL bounds how long a crashed run keeps its company locked.
	LeaseTTL time.Duration `yaml:"lease_ttl" env:"IMPORT_LEASE_TTL" env-default:"10m"`
	// Rebuild switches the importer to wipe-then-rebuild: all existing
	// annual accounts of the company are deleted inside the run's
	// transaction before resyncing. Off by default; additive is primary.
	Rebuild bool `yaml:"rebuild" env:"IMPORT_REBUILD" env-default:"false"`
}

// Load reads CONFIG_FILE when set, then the environment.
func Load() (Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports configuration the server cannot start without.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}
