package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/franz/bcr-index/internal/scan"
	"github.com/franz/bcr-index/internal/storage"
)

// envReplacer maps nested keys to environment names (s3.endpoint -> BCRX_S3_ENDPOINT)
var envReplacer = strings.NewReplacer(".", "_")

// Config is the merged configuration: flags override BCRX_* environment
// variables, which override the config file, which overrides the defaults
// in the struct tags
type Config struct {
	Directory      string   `mapstructure:"directory"`
	Backend        string   `mapstructure:"backend" default:"fs"`
	Settings       string   `mapstructure:"settings"`
	SupportedTypes []string `mapstructure:"supported_types"`
	Exclude        []string `mapstructure:"exclude"`
	MetadataExt    string   `mapstructure:"metadata_ext" default:".json"`
	Concurrency    int      `mapstructure:"concurrency" default:"4"`
	ReadTags       bool     `mapstructure:"read_tags" default:"false"`
	HistoryDB      string   `mapstructure:"history_db"`
	Artifacts      string   `mapstructure:"artifacts"`
	EventLevel     string   `mapstructure:"event_level" default:"info"`

	Retry RetryConfig           `mapstructure:"retry"`
	S3    storage.ObjectConfig `mapstructure:"s3"`

	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
}

// RetryConfig tunes retries of transient storage failures.
// Zero values pick the local or network profile automatically.
type RetryConfig struct {
	Attempts    int           `mapstructure:"attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
}

// LoadConfig unmarshals the global viper instance
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(cfg.Exclude) == 0 {
		cfg.Exclude = scan.DefaultExclude
	}
	switch cfg.Backend {
	case "fs", "s3":
	default:
		return nil, fmt.Errorf("unknown backend %q (use fs or s3)", cfg.Backend)
	}
	return &cfg, nil
}

// setDefaults registers every mapstructure key of iface with viper, using
// the default tag when present, so AutomaticEnv can resolve nested keys
func setDefaults(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			setDefaults(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		if def, ok := field.Tag.Lookup("default"); ok {
			v.SetDefault(key, def)
		} else {
			v.SetDefault(key, reflect.Zero(field.Type).Interface())
		}
	}
}
