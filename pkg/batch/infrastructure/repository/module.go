// Package repository selects the job repository implementation from the configuration.
package repository

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	domain "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/sql"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// NewJobRepository returns the repository named by infrastructure.job_repository.type.
func NewJobRepository(lc fx.Lifecycle, cfg *config.Config) (domain.JobRepository, error) {
	kind := cfg.Surfin.Infrastructure.JobRepository.Type
	switch kind {
	case "", config.RepositoryInMemory:
		logger.Debugf("Using the in-memory job repository.")
		return inmemory.NewInMemoryJobRepository(), nil
	case config.RepositorySQL:
		return sql.NewJobRepositoryFromConfig(lc, cfg)
	default:
		return nil, fmt.Errorf("unknown job repository type: %s", kind)
	}
}

// Module provides domain.JobRepository according to the configuration.
var Module = fx.Options(
	fx.Provide(NewJobRepository),
)
