package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const ConfigFilepathEnv = "CONFIG_FILEPATH"
const DatabaseFilepathEnv = "DATABASE_FILEPATH"

// Config holds the process settings, loaded from an optional TOML file with
// environment overrides for deployment.
type Config struct {
	Listen         string `toml:"listen"`
	DatabasePath   string `toml:"database_path"`
	WebhookWorkers int    `toml:"webhook_workers"`
	BatchThreshold int    `toml:"batch_threshold"`
}

func DefaultConfig() Config {
	return Config{
		Listen:         ":8080",
		DatabasePath:   "sheets.db",
		WebhookWorkers: 3,
		BatchThreshold: 64,
	}
}

// LoadConfig reads settings from path when it is non-empty. Missing keys keep
// their defaults; DATABASE_FILEPATH overrides the file either way.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("cannot read %s: %w", path, err)
		}
		if err = toml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parse error in %s: %w", path, err)
		}
	}

	if databasePath := os.Getenv(DatabaseFilepathEnv); databasePath != "" {
		config.DatabasePath = databasePath
	}

	if config.WebhookWorkers < 1 {
		config.WebhookWorkers = 1
	}
	if config.BatchThreshold < 2 {
		config.BatchThreshold = 2
	}

	return config, nil
}
