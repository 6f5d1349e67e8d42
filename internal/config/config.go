// internal/config/config.go

// Package config reads the server configuration from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Postgres struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

type Redis struct {
	// Addr is empty when the action log is disabled.
	Addr      string
	DB        int
	QueueName string
}

type Game struct {
	MinPlayers          int
	CatchRadiusMeters   float64
	AreaShrinkFactor    float64
	AreaShrinkInterval  time.Duration
	SchedulerResolution time.Duration
}

type Auth struct {
	PrivateKeyPath string
	PublicKeyPath  string
	TokenExpire    string
}

type WebSocket struct {
	SendBuffer int
	RatePerSec float64
	RateBurst  int
}

type Historian struct {
	BatchSize  int
	FlushDelay time.Duration
}

// Config is the full server configuration.
type Config struct {
	Port      string
	PublicURL string
	Store     string
	LogLevel  logrus.Level

	Postgres  Postgres
	Redis     Redis
	Game      Game
	Auth      Auth
	WebSocket WebSocket
	Historian Historian
}

// Load reads the configuration. Malformed numeric values fall back to their defaults;
// an unknown store backend or log level is an error.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),
		Store:     getEnv("STORE", StorePostgres),
		Postgres: Postgres{
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Database: getEnv("PG_DATABASE", "manhunt"),
		},
		Redis: Redis{
			Addr:      os.Getenv("REDIS_ADDR"),
			DB:        getEnvInt("REDIS_DB", 0),
			QueueName: getEnv("ACTION_QUEUE_NAME", "manhunt_actions"),
		},
		Game: Game{
			MinPlayers:          getEnvInt("MIN_PLAYERS", 3),
			CatchRadiusMeters:   getEnvFloat("CATCH_RADIUS_METERS", 10),
			AreaShrinkFactor:    getEnvFloat("AREA_SHRINK_FACTOR", 0.8),
			AreaShrinkInterval:  getEnvDuration("AREA_SHRINK_INTERVAL", 25*time.Minute),
			SchedulerResolution: getEnvDuration("SCHEDULER_RESOLUTION", 30*time.Second),
		},
		Auth: Auth{
			PrivateKeyPath: os.Getenv("JWT_PRIVATE_KEY_PATH"),
			PublicKeyPath:  os.Getenv("JWT_PUBLIC_KEY_PATH"),
			TokenExpire:    getEnv("TOKEN_EXPIRE_TIME", "72h"),
		},
		WebSocket: WebSocket{
			SendBuffer: getEnvInt("WS_SEND_BUFFER", 64),
			RatePerSec: getEnvFloat("WS_RATE_PER_SEC", 5),
			RateBurst:  getEnvInt("WS_RATE_BURST", 10),
		},
		Historian: Historian{
			BatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
			FlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		},
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}
	return cfg, nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}

func getEnvFloat(key string, defVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defVal
	}
	return f
}

func getEnvDuration(key string, defVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defVal
	}
	return d
}
