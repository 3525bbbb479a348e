package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-flow/pkg/batch/listener/logging"
	"github.com/tigerroll/surfin-flow/pkg/batch/listener/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/listener/notification"
	"github.com/tigerroll/surfin-flow/pkg/batch/listener/tracing"
)

// Module aggregates all listener modules of the batch framework.
var Module = fx.Options(
	metrics.Module,
	tracing.Module,
	logging.Module,
	notification.Module,
)
