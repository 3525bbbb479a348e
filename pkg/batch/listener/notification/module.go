package notification

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// JobListenerName is the name referenced in JSL.
const JobListenerName = "notificationJobListener"

// NewNotificationJobListenerBuilder creates a ComponentBuilder for NotificationJobListener.
func NewNotificationJobListenerBuilder(notifier Notifier) jsl.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		properties map[string]interface{},
	) (port.JobExecutionListener, error) {
		var props Properties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewNotificationJobListener(notifier, props), nil
	}
}

// NotificationListenerParams defines the dependencies that RegisterNotificationListener receives from Fx.
type NotificationListenerParams struct {
	fx.In
	JobFactory *support.JobFactory
	Builder    jsl.JobExecutionListenerBuilder `name:"notificationJobListener"`
}

// RegisterNotificationListener registers the notification listener builder with the JobFactory.
func RegisterNotificationListener(p NotificationListenerParams) {
	p.JobFactory.RegisterJobListenerBuilder(JobListenerName, p.Builder)
	logger.Debugf("Notification listener registered with JobFactory.")
}

// Module provides notification-related components.
var Module = fx.Options(
	// 1. Provides a concrete implementation of Notifier.
	fx.Provide(fx.Annotate(
		NewLogNotifier,
		fx.As(new(Notifier)),
	)),

	// 2. Provides listener builders.
	fx.Provide(fx.Annotate(NewNotificationJobListenerBuilder, fx.ResultTags(`name:"notificationJobListener"`))),

	// 3. Registers listeners with JobFactory.
	fx.Invoke(RegisterNotificationListener),
)
