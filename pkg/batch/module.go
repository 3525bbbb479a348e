// Package batch assembles the flow engine, its repositories, listeners and generic components
// into a single fx module.
package batch

import (
	"go.uber.org/fx"

	flowcomponent "github.com/tigerroll/surfin-flow/pkg/batch/component/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/component/tasklet/generic"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	support "github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/job/runner"
	coremetrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/support/expression"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/task"
	inframetrics "github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/telemetry"
	"github.com/tigerroll/surfin-flow/pkg/batch/listener"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// Module wires the whole framework. The application supplies a config.EmbeddedConfig and
// contributes JSL documents to the "jobDefinitions" group.
var Module = fx.Options(
	logger.Module,
	config.Module,
	coremetrics.Module,
	telemetry.Module,
	inframetrics.Module,
	repository.Module,
	task.Module,
	support.Module,
	runner.Module,
	expression.Module,
	listener.Module,
	generic.Module,
	flowcomponent.Module,
)
