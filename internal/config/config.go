package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const envPrefix = "TWOGETHER_"

// Storage backends accepted by StorageBackend.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
)

// Notification sinks accepted by NotifySinks.
const (
	SinkLog       = "log"
	SinkTelegram  = "telegram"
	SinkWebSocket = "websocket"
)

type Config struct {
	Mode Mode

	Port     string
	LogLevel string

	GCPProjectID string
	GCPLocation  string
	ModelName    string
	UseMockLLM   bool // true = use mock even on GCP

	StorageBackend string
	MongoURI       string
	MongoDatabase  string
	PostgresDSN    string
	SQLitePath     string

	JWTSecret     string // empty disables partner-role tokens
	TelegramToken string
	NotifySinks   []string

	IcebreakerDelay  time.Duration
	GeneratorTimeout time.Duration
	NotifyTimeout    time.Duration
	StoreTimeout     time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s%s must be positive, got %s", envPrefix, key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads a .env file when present, then all env vars, and validates the result.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (*Config, error) {
	var mode Mode
	switch getEnv("MODE", "local") {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GCPProjectID: getEnv("GCP_PROJECT", ""),
		GCPLocation:  getEnv("GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("MODEL_NAME", "gemini-2.5-flash-lite"),
		UseMockLLM:   getBoolEnv("USE_MOCK_LLM", mode == ModeLocal),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "twogether"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "./twogether.db"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		NotifySinks:   splitList(getEnv("NOTIFY_SINKS", SinkLog)),
	}

	var errs []error
	var err error
	if cfg.IcebreakerDelay, err = getDurationEnv("ICEBREAKER_DELAY", 2*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.GeneratorTimeout, err = getDurationEnv("GENERATOR_TIMEOUT", 20*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.NotifyTimeout, err = getDurationEnv("NOTIFY_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.StoreTimeout, err = getDurationEnv("STORE_TIMEOUT", 5*time.Second); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error

	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		errs = append(errs, errors.New(envPrefix+"GCP_PROJECT must be set in gcp mode"))
	}
	if !c.UseMockLLM && c.GCPProjectID == "" {
		errs = append(errs, errors.New(envPrefix+"GCP_PROJECT is required for the Vertex LLM client"))
	}

	switch c.StorageBackend {
	case BackendMemory, BackendMongo, BackendSQLite:
	case BackendFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New(envPrefix+"GCP_PROJECT is required for Firestore storage backend"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New(envPrefix+"POSTGRES_DSN is required for postgres storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}

	for _, sink := range c.NotifySinks {
		switch sink {
		case SinkLog, SinkWebSocket:
		case SinkTelegram:
			if c.TelegramToken == "" {
				errs = append(errs, errors.New(envPrefix+"TELEGRAM_BOT_TOKEN is required for the telegram sink"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown notification sink %q", sink))
		}
	}
	return errs
}

// HasSink reports whether the named sink is enabled.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.NotifySinks {
		if s == name {
			return true
		}
	}
	return false
}

// AuthEnabled reports whether partner-role tokens are issued and enforced.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}
