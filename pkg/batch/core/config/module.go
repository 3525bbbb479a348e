package config

import "go.uber.org/fx"

// Module provides *Config built from the application's EmbeddedConfig, with
// environment placeholders expanded by the OS expander unless another
// EnvironmentExpander is supplied.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewOsEnvironmentExpander, fx.As(new(EnvironmentExpander))),
		NewConfigProvider,
	),
)
