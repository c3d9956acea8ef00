package datamodels

import (
	"time"

	"github.com/gorilla/websocket"

	"papertrader/src/utils/errors"
)

type AppConfig struct {
	Engine        EngineConfig        `mapstructure:"engine"`
	Store         StoreConfig         `mapstructure:"store"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	MetricsWriter MetricsWriterConfig `mapstructure:"metrics_writer"`
	Server        ServerConfig        `mapstructure:"server"`
	Provider      ProviderConfig      `mapstructure:"provider"`
	Backup        StorageConfig       `mapstructure:"backup"`
	Candidates    CandidatesConfig    `mapstructure:"candidates"`
	// optional yaml file overriding registry entries
	StrategiesFile string `mapstructure:"strategies_file"`
}

func (c *AppConfig) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	return c.Provider.Validate()
}

type EngineConfig struct {
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	SlippageEnabled bool          `mapstructure:"slippage_enabled"`
	// fixed seed for reproducible fills; zero seeds from the clock
	RandomSeed int64 `mapstructure:"random_seed"`
}

func (c *EngineConfig) Validate() error {
	if c.ScanInterval < 0 {
		return errors.New("engine.scan_interval must not be negative")
	}
	return nil
}

type StoreConfig struct {
	Path         string        `mapstructure:"path"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func (c *StoreConfig) Validate() error {
	if c.Path == "" {
		return errors.New("store.path is required")
	}
	return nil
}

type ArchiveDriver string

const (
	ArchiveDriverNone     ArchiveDriver = ""
	ArchiveDriverPostgres ArchiveDriver = "postgres"
	ArchiveDriverSqlite   ArchiveDriver = "sqlite"
)

type ArchiveConfig struct {
	Driver     ArchiveDriver  `mapstructure:"driver"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
	SqlitePath string         `mapstructure:"sqlite_path"`
}

func (c *ArchiveConfig) Validate() error {
	switch c.Driver {
	case ArchiveDriverNone:
		return nil
	case ArchiveDriverSqlite:
		if c.SqlitePath == "" {
			return errors.New("archive.sqlite_path is required for the sqlite driver")
		}
		return nil
	case ArchiveDriverPostgres:
		if c.Postgres.URI == "" && c.Postgres.Host == "" {
			return errors.New("archive.postgres needs a uri or a host")
		}
		return nil
	default:
		return errors.Newf("unknown archive driver %q", c.Driver)
	}
}

type PostgresConfig struct {
	Database string `mapstructure:"database"`
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	Port     int    `mapstructure:"port"`
	SSL      struct {
		CA   string `mapstructure:"ca"`
		Cert string `mapstructure:"cert"`
		Key  string `mapstructure:"key"`
		Mode string `mapstructure:"mode"`
	} `mapstructure:"ssl"`
	URI  string `mapstructure:"uri"`
	User string `mapstructure:"user"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Enabled bool   `mapstructure:"enabled"`
}

type WSConfig struct {
	Upgrader websocket.Upgrader
}

type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

func (c *StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

type ProviderKind string

const (
	ProviderKindHTTP ProviderKind = "http"
	ProviderKindCSV  ProviderKind = "csv"
)

type ProviderConfig struct {
	Kind    ProviderKind  `mapstructure:"kind"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	CsvPath string        `mapstructure:"csv_path"`
}

func (c *ProviderConfig) Validate() error {
	switch c.Kind {
	case ProviderKindHTTP:
		if c.BaseURL == "" {
			return errors.New("provider.base_url is required for the http provider")
		}
	case ProviderKindCSV:
		if c.CsvPath == "" {
			return errors.New("provider.csv_path is required for the csv provider")
		}
	default:
		return errors.Newf("unknown provider kind %q", c.Kind)
	}
	return nil
}

type CandidatesConfig struct {
	FilePath string `mapstructure:"file_path"`
}

type MetricsWriterConfig struct {
	WsWriter   bool   `mapstructure:"ws_writer"`
	FileWriter bool   `mapstructure:"file_writer"`
	FilePath   string `mapstructure:"file_path"`
	// csv or json, csv when empty
	FileFormat string `mapstructure:"file_format"`
	DbWriter   bool   `mapstructure:"db_writer"`
}
