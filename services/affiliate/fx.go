package affiliate

import "go.uber.org/fx"

var Module = fx.Module("affiliate.service",
	fx.Provide(
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
