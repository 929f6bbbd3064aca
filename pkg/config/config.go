package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			Burst     float64 `yaml:"burst" default:"20" validate:"gte=0"`
			PerSecond float64 `yaml:"per_second" default:"5" validate:"gte=0"`
		} `yaml:"rate_limit"` // burst 0 disables
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Storage struct {
		Type   string `yaml:"type" default:"sqlite" validate:"oneof=memory sqlite redis"`
		SQLite struct {
			Path string `yaml:"path" default:"marketsync.db"`
		} `yaml:"sqlite"`
		Redis struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"marketsync"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Auth struct {
		Historical struct {
			URL      string `yaml:"url" validate:"required,url"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"historical"`
		Live struct {
			URL    string `yaml:"url" validate:"required,url"`
			APIKey string `yaml:"api_key"`
		} `yaml:"live"`
	} `yaml:"auth"`
	API struct {
		HistoricalBaseURL string        `yaml:"historical_base_url" validate:"required,url"`
		LiveDataURL       string        `yaml:"live_data_url" validate:"required,url"`
		MarketStatusURL   string        `yaml:"market_status_url" validate:"required,url"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
		DetailCacheTTL    time.Duration `yaml:"detail_cache_ttl" default:"30s"`
		UserAgent         string        `yaml:"user_agent" default:"marketsync/1.0"`
	} `yaml:"api"`
	Polling struct {
		QuotesInterval time.Duration `yaml:"quotes_interval" default:"5s"`
		StatusInterval time.Duration `yaml:"status_interval" default:"60s"`
	} `yaml:"polling"`
	Preferences struct {
		ThemeTTLDays     int `yaml:"theme_ttl_days" default:"7" validate:"gte=0"`
		WatchlistTTLDays int `yaml:"watchlist_ttl_days" validate:"gte=0"` // 0 keeps the watchlist forever
	} `yaml:"preferences"`
	Sink struct {
		Type           string        `yaml:"type" default:"none" validate:"oneof=none kafka clickhouse"`
		QueueSize      int           `yaml:"queue_size" default:"16" validate:"gte=1"`
		PublishTimeout time.Duration `yaml:"publish_timeout" default:"10s"`
		Kafka          struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic" default:"marketsync.snapshots"`
			LogTopic     string        `yaml:"log_topic" default:"marketsync.errors"`
			RequiredAcks int           `yaml:"required_acks" default:"-1"`
			Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
		} `yaml:"kafka"`
		ClickHouse struct {
			Host        string        `yaml:"host" default:"localhost"`
			Port        int           `yaml:"port" default:"9000"`
			Database    string        `yaml:"database" default:"marketsync"`
			User        string        `yaml:"user" default:"default"`
			Password    string        `yaml:"password"`
			UseHTTP     bool          `yaml:"use_http"`
			AsyncInsert bool          `yaml:"async_insert"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"clickhouse"`
	} `yaml:"sink"`
}

var validate = validator.New()

// Load reads a YAML file on top of the struct-tag defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file system.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HISTORICAL_USERNAME"); v != "" {
		c.Auth.Historical.Username = v
	}
	if v := os.Getenv("HISTORICAL_PASSWORD"); v != "" {
		c.Auth.Historical.Password = v
	}
	if v := os.Getenv("LIVE_API_KEY"); v != "" {
		c.Auth.Live.APIKey = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("SINK_TYPE"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Sink.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate runs the struct-tag rules plus the cross-field checks tags can't express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Polling.QuotesInterval <= 0 {
		return fmt.Errorf("polling.quotes_interval must be positive")
	}
	if c.Polling.StatusInterval <= 0 {
		return fmt.Errorf("polling.status_interval must be positive")
	}
	if c.Sink.Type == "kafka" && len(c.Sink.Kafka.Brokers) == 0 {
		return fmt.Errorf("sink.kafka.brokers cannot be empty when sink.type is kafka")
	}
	if c.Storage.Type == "sqlite" && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path is required")
	}
	return nil
}
