package db

import (
	"context"
	"fmt"
	"time"

	"aurelia-commerce/pkg/config"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/prometheus"
)

var Module = fx.Module("database",
	fx.Provide(
		Dialect,
		New,
	),
	fx.Invoke(
		RegisterConnectionPool,
		RegisterPlugins,
	),
)

// Dialect picks the gorm dialector from DATABASE.TYPE. sqlite is used by the
// test suite and local development; postgres is the production store.
func Dialect(cfg *config.Config) (gorm.Dialector, error) {
	d := cfg.Database
	switch d.Type {
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
		if d.Timezone != "" {
			dsn += " TimeZone=" + d.Timezone
		}
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True",
			d.User, d.Password, d.Host, d.Port, d.DBName)
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(d.DBName), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", d.Type)
	}
}

// New opens the database connection, retrying while the store comes up.
func New(cfg *config.Config, dialector gorm.Dialector) (*gorm.DB, error) {
	logLevel := logger.Info
	showSQL := true
	if cfg.AppEnv == "production" {
		logLevel = logger.Warn
		showSQL = false
	}

	gormLogger := NewZapGormLogger(zap.L(), logLevel, showSQL)

	var db *gorm.DB
	var err error
	for i := 0; i < 5; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger, TranslateError: true})
		if err == nil {
			break
		}
		zap.L().Warn("database not ready, retrying in 3s", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	zap.L().Info("database connection established", zap.String("type", cfg.Database.Type))
	return db, nil
}

type poolParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Config    *config.Config
}

// RegisterConnectionPool applies pool limits and closes the pool on shutdown.
func RegisterConnectionPool(p poolParams) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	cp := p.Config.Database.ConnectionPool
	if cp.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cp.MaxIdleConn)
	}
	if cp.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cp.MaxOpenConn)
	}
	if cp.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cp.ConnMaxLifetime)
	}
	if cp.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cp.ConnMaxIdleTime)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			zap.L().Info("closing database connection pool")
			return sqlDB.Close()
		},
	})
	return nil
}

// RegisterPlugins wires the optional observability plugins behind config
// flags so a minimal deployment carries no collector requirements.
func RegisterPlugins(cfg *config.Config, db *gorm.DB) error {
	if cfg.Tracing.Enable {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return fmt.Errorf("register db tracing: %w", err)
		}
	}
	if cfg.Metrics.Enable {
		if err := db.Use(prometheus.New(prometheus.Config{
			DBName:          cfg.Database.DBName,
			RefreshInterval: 15,
		})); err != nil {
			return fmt.Errorf("register db metrics: %w", err)
		}
	}
	return nil
}
