package sql

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// DialectorFactory creates a gorm.Dialector from the database configuration.
type DialectorFactory func(cfg config.DatabaseConfig) (gorm.Dialector, error)

var dialectors = map[string]DialectorFactory{
	"sqlite": func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("SQLite database path cannot be empty")
		}
		return sqlite.Open(cfg.Path), nil
	},
	// lib/pq is the driver so that constraint violations surface as *pq.Error.
	"postgres": func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.New(postgres.Config{DriverName: "postgres", DSN: PostgresDSN(cfg)}), nil
	},
	"mysql": func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(MySQLDSN(cfg)), nil
	},
}

// PostgresDSN builds a key/value connection string.
func PostgresDSN(c config.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
}

// MySQLDSN builds a go-sql-driver DSN. parseTime is required for the time columns and
// multiStatements for the migrations.
func MySQLDSN(c config.DatabaseConfig) string {
	mc := gomysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.MultiStatements = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

// Open connects to the configured database and applies the pool settings.
//
// Parameters:
//
//	cfg: The database section of the job repository configuration.
//
// Returns:
//
//	*gorm.DB: The connection.
//	error: An error if the type is unsupported or the connection cannot be opened.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	factory, ok := dialectors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	dialector, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", cfg.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Type == "sqlite" && cfg.Path == ":memory:" {
		// every connection of the pool would open its own empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	logger.Infof("Established DB connection for the job repository (%s).", cfg.Type)
	return db, nil
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// gormWriter redirects GORM output to the batch logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if strings.Contains(msg, "SLOW SQL") {
		logger.Warnf("[GORM] %s", msg)
		return
	}
	logger.Debugf("[GORM] %s", msg)
}
