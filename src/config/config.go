package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath = "config.local.yaml"
	EnvPrefix         = "PAPERTRADER"
)

var defaults = map[string]any{
	"engine.scan_interval":       time.Minute,
	"engine.slippage_enabled":    true,
	"engine.random_seed":         0,
	"store.path":                 "data/portfolios.json",
	"store.lock_timeout":         5 * time.Second,
	"store.poll_interval":        100 * time.Millisecond,
	"archive.driver":             "",
	"archive.sqlite_path":        "data/archive.db",
	"archive.postgres.uri":       "",
	"archive.postgres.host":      "",
	"archive.postgres.port":      5432,
	"archive.postgres.user":      "",
	"archive.postgres.password":  "",
	"archive.postgres.database":  "",
	"archive.postgres.ssl.mode":  "disable",
	"archive.postgres.ssl.ca":    "",
	"archive.postgres.ssl.cert":  "",
	"archive.postgres.ssl.key":   "",
	"metrics_writer.ws_writer":   false,
	"metrics_writer.file_writer": false,
	"metrics_writer.file_path":   "data/metrics",
	"metrics_writer.file_format": "csv",
	"metrics_writer.db_writer":   false,
	"server.enabled":             false,
	"server.port":                "8080",
	"provider.kind":              "http",
	"provider.base_url":          "http://localhost:8000",
	"provider.timeout":           10 * time.Second,
	"provider.csv_path":          "",
	"backup.bucket":              "",
	"backup.prefix":              "papertrader",
	"candidates.file_path":       "",
	"strategies_file":            "",
}

// Load reads .env, then the YAML config, then PAPERTRADER_* environment
// overrides (PAPERTRADER_ARCHIVE_POSTGRES_URI for archive.postgres.uri).
// path wins over CONFIG_PATH; a missing default file falls back to defaults.
func Load(path string) (*datamodels.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultConfigPath
		explicit = false
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(path) {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
		slog.Warn("Config file not found, using defaults", "path", path)
	} else {
		slog.Info("Loaded config", "path", v.ConfigFileUsed())
	}

	var appConfig datamodels.AppConfig
	if err := v.Unmarshal(&appConfig); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := appConfig.Validate(); err != nil {
		return nil, err
	}
	return &appConfig, nil
}

func isNotExist(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}
