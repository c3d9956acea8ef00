package database

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"strconv"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ArchiveDatabase keeps the full trade and decision history that portfolios
// trim from the store, plus the metric snapshots written each scan.
type ArchiveDatabase interface {
	TradeArchive
	MetricsDatabase
	Close() error
}

// TradeNotifier streams archived trades as they land.
type TradeNotifier interface {
	SubscribeTrades(ctx context.Context, portfolioIDs ...string) (<-chan string, func(), error)
}

type databaseImplementation struct {
	gormDb              *gorm.DB
	notificationManager *NotificationManager
}

// BuildArchive opens the archive selected by config. A config without a
// driver yields a nil archive and no error.
func BuildArchive(ctx context.Context, config datamodels.ArchiveConfig) (ArchiveDatabase, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Driver {
	case datamodels.ArchiveDriverPostgres:
		db, err := NewDBConnection(config.Postgres)
		if err != nil {
			return nil, err
		}
		return db, nil
	case datamodels.ArchiveDriverSqlite:
		db, err := NewSqliteArchive(ctx, config.SqlitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, nil
}

func NewDBConnection(dbConfig datamodels.PostgresConfig) (*databaseImplementation, error) {
	var err error

	dbConnString := MakeConnectionString(&dbConfig)

	gormConfig := &gorm.Config{
		Logger: slogGorm.New(),
	}

	gormDb, err := gorm.Open(postgres.Open(dbConnString), gormConfig)
	if err != nil {
		return nil, errors.WrapE(err, errors.New("cannot create gorm engine"))
	}

	if err := gormDb.AutoMigrate(DbTables...); err != nil {
		return nil, errors.WrapE(err, errors.New("cannot migrate archive tables"))
	}

	slog.Info("Connected to database", "host", dbConfig.Host, "database", dbConfig.Database, "user", dbConfig.User)

	notifyManager, err := NewNotificationManager(gormDb)
	if err != nil {
		return nil, errors.WrapE(err, errors.New("cannot create notify manager"))
	}

	return &databaseImplementation{
		gormDb:              gormDb,
		notificationManager: notifyManager,
	}, nil
}

func (d *databaseImplementation) Close() error {
	if d.notificationManager != nil {
		if err := d.notificationManager.Close(); err != nil {
			slog.Warn("Error closing notification listener", "error", err)
		}
	}
	sqlDb, err := d.gormDb.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

func MakeConnectionString(dbConfig *datamodels.PostgresConfig) string {
	if dbConfig.URI != "" { // If url is provided, use it
		return dbConfig.URI
	}

	mode := dbConfig.SSL.Mode
	if mode == "" {
		mode = "disable"
	}
	ssl := "sslmode=" + mode

	if mode != "disable" {
		sslFiles := map[string]string{
			"sslcert":     dbConfig.SSL.Cert,
			"sslkey":      dbConfig.SSL.Key,
			"sslrootcert": dbConfig.SSL.CA,
		}

		for param, content := range sslFiles {
			if content != "" {
				file, err := writeCertificate(content, param+".pem")
				if err != nil {
					slog.Error("Error writing " + param + " to file: " + err.Error())
				}

				ssl += "&" + param + "=" + file
			}
		}
	}

	port := dbConfig.Port
	if port == 0 {
		port = 5432
	}
	hostPort := net.JoinHostPort(dbConfig.Host, strconv.Itoa(port))

	if dbConfig.Password == "" {
		slog.Warn("No password provided for database connection, using empty password")
		return fmt.Sprintf("postgres://%s@%s/%s?search_path=public&%s",
			dbConfig.User,
			hostPort,
			dbConfig.Database,
			ssl,
		)
	}

	return fmt.Sprintf("postgres://%s:%s@%s/%s?search_path=public&%s",
		dbConfig.User,
		dbConfig.Password,
		hostPort,
		dbConfig.Database,
		ssl,
	)
}

func writeCertificate(content string, outFile string) (string, error) {
	tempFile, err := os.CreateTemp("", outFile)
	if err != nil {
		return "", err
	}

	_, err = tempFile.WriteString(content)
	if err != nil {
		tempFile.Close()

		return "", err
	}

	err = tempFile.Close()
	if err != nil {
		log.Printf("Error closing %s: %v\n", outFile, err)
	}

	return tempFile.Name(), nil
}
