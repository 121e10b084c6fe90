package adapter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Catalog.Table != "jd_goods" || cfg.Catalog.CountColumn != "comment_num" {
		t.Errorf("catalog defaults = %+v", cfg.Catalog)
	}
	if cfg.Remote.PageSize != 10 || cfg.Remote.Encoding != "gbk" {
		t.Errorf("remote defaults = %+v", cfg.Remote)
	}
	if cfg.Remote.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Sink.Type != SinkTypeBolt {
		t.Errorf("sink type = %q", cfg.Sink.Type)
	}
	if cfg.Harvest.BatchSize != 100 || cfg.Harvest.Workers != 1 {
		t.Errorf("harvest defaults = %+v", cfg.Harvest)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
catalog:
  driver: sqlite
  dsn: /tmp/catalog.db
remote:
  page_size: 20
  timeout: 5s
  headers:
    Referer: https://item.jd.com/
sink:
  type: mongo
  mongo:
    host: mongo.internal
    port: 27018
    db: shop
    collection: reviews
harvest:
  batch_size: 50
`)

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Catalog.Driver != "sqlite" || cfg.Catalog.DSN != "/tmp/catalog.db" {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	// Unset keys keep their defaults
	if cfg.Catalog.Table != "jd_goods" {
		t.Errorf("table = %q, want default", cfg.Catalog.Table)
	}
	if cfg.Remote.PageSize != 20 || cfg.Remote.Timeout != 5*time.Second {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	if got := cfg.Remote.Headers["referer"]; got != "https://item.jd.com/" {
		t.Errorf("referer header = %q (headers %v)", got, cfg.Remote.Headers)
	}
	if cfg.Sink.Type != SinkTypeMongo || cfg.Sink.Mongo.Port != 27018 || cfg.Sink.Mongo.Collection != "reviews" {
		t.Errorf("sink = %+v", cfg.Sink)
	}
	if cfg.Harvest.BatchSize != 50 {
		t.Errorf("batch size = %d", cfg.Harvest.BatchSize)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
catalog:
  dsn: from-file
harvest:
  batch_size: 50
  workers: 2
`)
	t.Setenv("HARVESTER_CATALOG_DSN", "from-env")
	t.Setenv("HARVESTER_HARVEST_WORKERS", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("batch-size", 100, "")
	flags.Int("workers", 1, "")
	if err := flags.Parse([]string{"--workers", "8"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadConfig(path, flags)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Catalog.DSN != "from-env" {
		t.Errorf("dsn = %q, env should beat file", cfg.Catalog.DSN)
	}
	if cfg.Harvest.Workers != 8 {
		t.Errorf("workers = %d, flag should beat env", cfg.Harvest.Workers)
	}
	if cfg.Harvest.BatchSize != 50 {
		t.Errorf("batch size = %d, unchanged flag should not beat file", cfg.Harvest.BatchSize)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Catalog.DSN = "user:pass@/shop"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing dsn", func(c *Config) { c.Catalog.DSN = "" }, "catalog.dsn"},
		{"bad driver", func(c *Config) { c.Catalog.Driver = "oracle" }, "catalog.driver"},
		{"bad sink", func(c *Config) { c.Sink.Type = "s3" }, "sink.type"},
		{"bolt without path", func(c *Config) { c.Sink.Bolt.Path = "" }, "sink.bolt.path"},
		{"mongo without collection", func(c *Config) {
			c.Sink.Type = SinkTypeMongo
			c.Sink.Mongo.Collection = ""
		}, "sink.mongo"},
		{"zero batch", func(c *Config) { c.Harvest.BatchSize = 0 }, "harvest.batch_size"},
		{"zero workers", func(c *Config) { c.Harvest.Workers = 0 }, "harvest.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
