// Command migrate applies the schema. It is run on deploy, before the API
// starts; the API itself never migrates.
package main

import (
	"go.uber.org/zap"

	"aurelia-commerce/pkg/config"
	"aurelia-commerce/pkg/db"
	"aurelia-commerce/pkg/logger"
	"aurelia-commerce/services/affiliate"
	"aurelia-commerce/services/catalog"
	"aurelia-commerce/services/order"
	"aurelia-commerce/services/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("failed to load config", zap.Error(err))
	}
	log := logger.New(logger.Params{Cfg: cfg})
	defer log.Sync()

	dialector, err := db.Dialect(cfg)
	if err != nil {
		log.Fatal("unsupported database type", zap.Error(err))
	}
	conn, err := db.New(cfg, dialector)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	err = conn.AutoMigrate(
		&user.User{},
		&catalog.Category{},
		&catalog.Product{},
		&affiliate.Code{},
		&affiliate.Click{},
		&order.Order{},
		&order.Item{},
	)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("migration complete")
}
