package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"aurelia-commerce/internal/httpapi"
	"aurelia-commerce/internal/server"
	"aurelia-commerce/pkg/authz"
	"aurelia-commerce/pkg/config"
	"aurelia-commerce/pkg/db"
	"aurelia-commerce/pkg/gen"
	"aurelia-commerce/pkg/logger"
	"aurelia-commerce/services/affiliate"
	"aurelia-commerce/services/catalog"
	"aurelia-commerce/services/order"
	"aurelia-commerce/services/user"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		config.Module,
		logger.Module,
		gen.Module,
		db.Module,
		authz.Module,
		server.Module,
		httpapi.Module,

		user.Module,
		catalog.Module,
		affiliate.Module,
		order.Module,

		// The order service prices carts through the catalog.
		fx.Provide(func(s *catalog.Service) order.Pricer { return s }),
	)
	app.Run()
}
