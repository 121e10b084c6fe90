package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SinkType identifies the document store backend
type SinkType string

const (
	SinkTypeBolt  SinkType = "bolt"
	SinkTypeMongo SinkType = "mongo"
)

// Config holds all application configuration
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CatalogConfig locates the product catalog
type CatalogConfig struct {
	Driver      string `mapstructure:"driver"` // "mysql", "pgx" or "sqlite"
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	IDColumn    string `mapstructure:"id_column"`
	CountColumn string `mapstructure:"count_column"`
}

// RemoteConfig describes the comment endpoint and its page format
type RemoteConfig struct {
	URLTemplate   string            `mapstructure:"url_template"` // {item}, {page}, {size}
	PageSize      int               `mapstructure:"page_size"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	UserAgent     string            `mapstructure:"user_agent"`
	Headers       map[string]string `mapstructure:"headers"`
	Encoding      string            `mapstructure:"encoding"` // Source charset, e.g. "gbk"
	RecordsField  string            `mapstructure:"records_field"`
	IdentityField string            `mapstructure:"identity_field"`
}

// SinkConfig selects and configures the document store
type SinkConfig struct {
	Type  SinkType        `mapstructure:"type"`
	Bolt  BoltSinkConfig  `mapstructure:"bolt"`
	Mongo MongoSinkConfig `mapstructure:"mongo"`
}

// BoltSinkConfig holds the local BoltDB sink settings
type BoltSinkConfig struct {
	Path   string `mapstructure:"path"`
	Bucket string `mapstructure:"bucket"`
}

// MongoSinkConfig holds MongoDB sink settings
type MongoSinkConfig struct {
	URI        string `mapstructure:"uri"` // Overrides host/port
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Database   string `mapstructure:"db"`
	Collection string `mapstructure:"collection"`
}

// HarvestConfig controls catalog enumeration
type HarvestConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	Workers   int `mapstructure:"workers"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"` // Empty logs to stderr
	Level string `mapstructure:"level"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // Empty disables the endpoint
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Driver:      "mysql",
			Table:       "jd_goods",
			IDColumn:    "ID",
			CountColumn: "comment_num",
		},
		Remote: RemoteConfig{
			URLTemplate:   "https://club.jd.com/productpage/p-{item}-s-0-t-6-p-{page}.html",
			PageSize:      10,
			Timeout:       30 * time.Second,
			Encoding:      "gbk",
			RecordsField:  "comments",
			IdentityField: "id",
		},
		Sink: SinkConfig{
			Type: SinkTypeBolt,
			Bolt: BoltSinkConfig{
				Path:   filepath.Join(defaultDataPath(), "harvest.db"),
				Bucket: "comments",
			},
			Mongo: MongoSinkConfig{
				Host:       "localhost",
				Port:       27017,
				Database:   "jd",
				Collection: "comments",
			},
		},
		Harvest: HarvestConfig{
			BatchSize: 100,
			Workers:   1,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "harvester")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "harvester")
	}
}

// DefaultLogPath returns the log file used when output must stay off the terminal
func DefaultLogPath() string {
	return filepath.Join(defaultDataPath(), "harvester.log")
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "harvester")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "harvester")
	}
}

// flagKeys maps command-line flags onto config keys
var flagKeys = map[string]string{
	"batch-size":   "harvest.batch_size",
	"workers":      "harvest.workers",
	"metrics-addr": "metrics.addr",
	"log-level":    "logging.level",
	"log-file":     "logging.file",
}

// LoadConfig loads configuration from defaults, file, environment and flags,
// in increasing order of precedence. An empty path searches ./config,
// the user config directory and the working directory for config.yaml.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides: HARVESTER_CATALOG_DSN, ...
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every default so env overrides apply to unset keys
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("catalog.driver", d.Catalog.Driver)
	v.SetDefault("catalog.dsn", d.Catalog.DSN)
	v.SetDefault("catalog.table", d.Catalog.Table)
	v.SetDefault("catalog.id_column", d.Catalog.IDColumn)
	v.SetDefault("catalog.count_column", d.Catalog.CountColumn)

	v.SetDefault("remote.url_template", d.Remote.URLTemplate)
	v.SetDefault("remote.page_size", d.Remote.PageSize)
	v.SetDefault("remote.timeout", d.Remote.Timeout)
	v.SetDefault("remote.user_agent", d.Remote.UserAgent)
	v.SetDefault("remote.encoding", d.Remote.Encoding)
	v.SetDefault("remote.records_field", d.Remote.RecordsField)
	v.SetDefault("remote.identity_field", d.Remote.IdentityField)

	v.SetDefault("sink.type", string(d.Sink.Type))
	v.SetDefault("sink.bolt.path", d.Sink.Bolt.Path)
	v.SetDefault("sink.bolt.bucket", d.Sink.Bolt.Bucket)
	v.SetDefault("sink.mongo.uri", d.Sink.Mongo.URI)
	v.SetDefault("sink.mongo.host", d.Sink.Mongo.Host)
	v.SetDefault("sink.mongo.port", d.Sink.Mongo.Port)
	v.SetDefault("sink.mongo.db", d.Sink.Mongo.Database)
	v.SetDefault("sink.mongo.collection", d.Sink.Mongo.Collection)

	v.SetDefault("harvest.batch_size", d.Harvest.BatchSize)
	v.SetDefault("harvest.workers", d.Harvest.Workers)

	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// Validate reports the first configuration problem that would stop a harvest
func (c *Config) Validate() error {
	switch c.Catalog.Driver {
	case "mysql", "pgx", "sqlite":
	default:
		return fmt.Errorf("catalog.driver must be mysql, pgx or sqlite, got %q", c.Catalog.Driver)
	}
	if c.Catalog.DSN == "" {
		return fmt.Errorf("catalog.dsn is required")
	}

	switch c.Sink.Type {
	case SinkTypeBolt:
		if c.Sink.Bolt.Path == "" {
			return fmt.Errorf("sink.bolt.path is required")
		}
	case SinkTypeMongo:
		if c.Sink.Mongo.Database == "" || c.Sink.Mongo.Collection == "" {
			return fmt.Errorf("sink.mongo.db and sink.mongo.collection are required")
		}
	default:
		return fmt.Errorf("sink.type must be bolt or mongo, got %q", c.Sink.Type)
	}

	if c.Harvest.BatchSize <= 0 {
		return fmt.Errorf("harvest.batch_size must be positive, got %d", c.Harvest.BatchSize)
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be positive, got %d", c.Harvest.Workers)
	}
	return nil
}
