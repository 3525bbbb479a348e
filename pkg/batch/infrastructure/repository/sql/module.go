package sql

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
)

// NewJobRepositoryFromConfig opens the configured database, migrates it when auto_migrate is set,
// and closes the connection when the application stops.
func NewJobRepositoryFromConfig(lc fx.Lifecycle, cfg *config.Config) (repository.JobRepository, error) {
	dbCfg := cfg.Surfin.Infrastructure.JobRepository.Database
	db, err := Open(dbCfg)
	if err != nil {
		return nil, err
	}
	if dbCfg.AutoMigrate {
		if err := Migrate(db, dbCfg.Type, dbCfg.MigrationsTable); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, err
		}
	}
	repo := NewSQLJobRepository(db)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return repo.Close()
		},
	})
	return repo, nil
}

// Module provides the SQL job repository as repository.JobRepository.
var Module = fx.Options(
	fx.Provide(NewJobRepositoryFromConfig),
)
