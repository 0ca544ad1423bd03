package user

import (
	"go.uber.org/fx"

	"aurelia-commerce/internal/middleware"
)

var Module = fx.Module("user.service",
	fx.Provide(
		NewService,
		NewHandler,
		func(s *Service) middleware.TokenVerifier { return s },
	),
	fx.Invoke(RegisterRoutes),
)
