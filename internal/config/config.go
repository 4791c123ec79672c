package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/zombodb/zdbkit/internal/config/storage"
)

const defaultLocation = "/etc/zdbkit/config.hcl"

var Loaded *Config

type Config struct {
	Postgres      *PostgresConfig      `hcl:"postgres,block"`
	Elasticsearch *ElasticsearchConfig `hcl:"elasticsearch,block"`
	Storage       *storage.Storage     `hcl:"storage,block"`
	Compress      *CompressConfig      `hcl:"compress,block"`

	// Dumps are the scheduled index dumps run by `zdbkit schedule run`.
	Dumps []DumpSchedule `hcl:"dump,block"`

	Verbose *bool `hcl:"verbose"`
}

// DumpSchedule binds an index name to a cron expression.
type DumpSchedule struct {
	Index string `hcl:"index,label"`
	Cron  string `hcl:"cron"`
}

func (c Config) IsVerbose() bool {
	if c.Verbose == nil {
		return false
	}

	return *c.Verbose
}

func (c Config) Validate() error {
	if c.Elasticsearch != nil {
		if err := c.Elasticsearch.Validate(); err != nil {
			return err
		}
	}

	if c.Compress != nil {
		if err := c.Compress.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func resolveLocation(location string) string {
	if location != "" {
		return location
	}

	if env, ok := os.LookupEnv("CONFIG_LOCATION"); ok {
		return env
	}

	return defaultLocation
}

func LoadConfig(location string) error {
	var cfg Config

	if err := hclsimple.DecodeFile(resolveLocation(location), nil, &cfg); err != nil {
		return err
	}

	Loaded = &cfg

	return cfg.Validate()
}

// LoadConfigIfPresent loads the default configuration when the file
// exists and does nothing when it does not. `zdbkit setup` has to run on
// freshly provisioned hosts that never had a config written.
func LoadConfigIfPresent() error {
	if _, err := os.Stat(resolveLocation("")); os.IsNotExist(err) {
		return nil
	}

	return LoadConfig("")
}
