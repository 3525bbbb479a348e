package sql

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// DefaultMigrationsTable records the applied schema versions.
const DefaultMigrationsTable = "batch_schema_migrations"

func databaseDriver(db *gorm.DB, dbType, table string) (database.Driver, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	switch dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: table})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: table})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: table})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
	}
}

// Migrate applies the embedded schema migrations of dbType that are not applied yet.
// The migrate instance is not closed since closing it would close db.
func Migrate(db *gorm.DB, dbType, table string) error {
	if table == "" {
		table = DefaultMigrationsTable
	}
	logger.Infof("Applying job repository migrations (DB: %s, Table: %s).", dbType, table)

	source, err := iofs.New(migrationsFS, "migrations/"+dbType)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver for %s: %w", dbType, err)
	}
	driver, err := databaseDriver(db, dbType, table)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed (DB: %s): %w", dbType, err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		logger.Debugf("Job repository schema at version %d (dirty: %t).", version, dirty)
	}
	return nil
}
