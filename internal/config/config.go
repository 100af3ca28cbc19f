package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sink backends understood by the store package.
const (
	BackendPostgres  = "postgres"
	BackendSurrealDB = "surrealdb"
	BackendMemory    = "memory"
)

// Config contains runtime configuration required by the service and the CLI.
type Config struct {
	HTTP      HTTPConfig        `mapstructure:"http"`
	APIKeys   map[string]string `mapstructure:"-"` // apiKey -> operator name
	Source    SourceConfig      `mapstructure:"source"`
	Sink      SinkConfig        `mapstructure:"sink"`
	Migration MigrationConfig   `mapstructure:"migration"`
	Retry     RetryConfig       `mapstructure:"retry"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Lock      LockConfig        `mapstructure:"lock"`
	Purge     PurgeConfig       `mapstructure:"purge"`
	Log       LogConfig         `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// SourceConfig points at the local SQLite attendance database.
type SourceConfig struct {
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

// SinkConfig describes the remote table store.
type SinkConfig struct {
	Backend     string `mapstructure:"backend"`
	URL         string `mapstructure:"url"`
	Key         string `mapstructure:"key"`
	Table       string `mapstructure:"table"`
	Namespace   string `mapstructure:"namespace"`
	Database    string `mapstructure:"database"`
	Username    string `mapstructure:"username"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// MigrationConfig drives the paged full migration.
type MigrationConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	Pace      time.Duration `mapstructure:"pace"`
}

// RetryConfig drives retry-only runs.
type RetryConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	BatchAttempts int           `mapstructure:"batch_attempts"`
	ItemAttempts  int           `mapstructure:"item_attempts"`
	BatchPace     time.Duration `mapstructure:"batch_pace"`
	ItemPace      time.Duration `mapstructure:"item_pace"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LockConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type PurgeConfig struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads and validates configuration. See Read.
func Load(configPath string) (Config, error) {
	cfg, err := Read(configPath)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read reads configuration from an optional file, a .env file and the
// environment without validating it. Environment variables win; "sink.url"
// is read from SINK_URL.
// API_KEYS format: "name1:key1,name2:key2"
func Read(configPath string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by the deployment this service replaced.
	_ = v.BindEnv("source.path", "SOURCE_PATH", "SQLITE_DB_PATH")
	_ = v.BindEnv("sink.url", "SINK_URL", "SUPABASE_DB_URL")
	_ = v.BindEnv("sink.key", "SINK_KEY", "SUPABASE_SERVICE_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	apiKeys, err := parseAPIKeys(v.GetString("api_keys"))
	if err != nil {
		return Config{}, err
	}
	cfg.APIKeys = apiKeys
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("api_keys", "")

	v.SetDefault("source.path", "biodb.db")
	v.SetDefault("source.table", "ATT_TABLE")

	v.SetDefault("sink.backend", BackendPostgres)
	v.SetDefault("sink.url", "")
	v.SetDefault("sink.key", "")
	v.SetDefault("sink.table", "att_table")
	v.SetDefault("sink.namespace", "attendance")
	v.SetDefault("sink.database", "attendance")
	v.SetDefault("sink.username", "root")
	v.SetDefault("sink.auto_migrate", true)

	v.SetDefault("migration.batch_size", 100)
	v.SetDefault("migration.pace", "500ms")

	v.SetDefault("retry.batch_size", 50)
	v.SetDefault("retry.batch_attempts", 1)
	v.SetDefault("retry.item_attempts", 1)
	v.SetDefault("retry.batch_pace", "500ms")
	v.SetDefault("retry.item_pace", "100ms")

	v.SetDefault("redis.url", "")
	v.SetDefault("lock.ttl", "2h")
	v.SetDefault("purge.token_ttl", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func parseAPIKeys(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	apiKeys := map[string]string{}

	if raw != "" {
		pairs := strings.Split(raw, ",")
		for _, p := range pairs {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				return nil, errors.New(`API_KEYS must be "name:key,name:key"`)
			}
			name := strings.TrimSpace(parts[0])
			key := strings.TrimSpace(parts[1])
			if name == "" || key == "" {
				return nil, errors.New(`API_KEYS must be "name:key,name:key"`)
			}
			apiKeys[key] = name
		}
	}

	// Local dev fallback so the service runs out-of-the-box.
	if len(apiKeys) == 0 {
		apiKeys["dev-key-123"] = "operator"
	}
	return apiKeys, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	switch c.Sink.Backend {
	case BackendPostgres, BackendSurrealDB:
		if strings.TrimSpace(c.Sink.URL) == "" {
			return errors.New("SINK_URL required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown SINK_BACKEND %q", c.Sink.Backend)
	}
	if c.Sink.Table == "" {
		return errors.New("SINK_TABLE must not be empty")
	}
	if c.Source.Table == "" {
		return errors.New("SOURCE_TABLE must not be empty")
	}
	if c.Migration.BatchSize <= 0 {
		return errors.New("MIGRATION_BATCH_SIZE must be positive")
	}
	if c.Retry.BatchSize <= 0 {
		return errors.New("RETRY_BATCH_SIZE must be positive")
	}
	if c.Retry.BatchAttempts < 1 || c.Retry.ItemAttempts < 1 {
		return errors.New("RETRY_BATCH_ATTEMPTS and RETRY_ITEM_ATTEMPTS must be at least 1")
	}
	if c.Migration.Pace < 0 || c.Retry.BatchPace < 0 || c.Retry.ItemPace < 0 {
		return errors.New("pacing intervals must not be negative")
	}
	return nil
}
