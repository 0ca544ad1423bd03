package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// ZapGormLogger routes gorm's log output through zap so query logs share the
// structured encoding of the rest of the service.
type ZapGormLogger struct {
	zap           *zap.Logger
	slowThreshold time.Duration
	logLevel      logger.LogLevel
	showSQL       bool
}

func NewZapGormLogger(z *zap.Logger, level logger.LogLevel, showSQL bool) *ZapGormLogger {
	return &ZapGormLogger{
		zap:           z,
		logLevel:      level,
		showSQL:       showSQL,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (l *ZapGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *ZapGormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zap.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *ZapGormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zap.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *ZapGormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zap.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *ZapGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.String("file", utils.FileWithLineNum()),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
	}

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		l.zap.Error("gorm.query", append(fields, zap.Error(err))...)
	case l.slowThreshold != 0 && elapsed > l.slowThreshold:
		l.zap.Warn("gorm.slow_query", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	case l.logLevel == logger.Info && l.showSQL:
		l.zap.Info("gorm.query", fields...)
	}
}
