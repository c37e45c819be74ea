package db

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// queryLogger adapts zap to gorm's logger.Interface. Errors and slow
// queries always land in the log; full statements only when asked.
type queryLogger struct {
	log           *zap.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
	logStatements bool
}

func newQueryLogger(log *zap.Logger, level logger.LogLevel, logStatements bool) *queryLogger {
	return &queryLogger{
		log:           log,
		level:         level,
		slowThreshold: 250 * time.Millisecond,
		logStatements: logStatements,
	}
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.log.Sugar().Infof(msg, args...)
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Sugar().Warnf(msg, args...)
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.log.Sugar().Errorf(msg, args...)
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	stmt, rows := fc()

	fields := []zap.Field{
		zap.String("source", utils.FileWithLineNum()),
		zap.String("statement", stmt),
		zap.Int64("rows_affected", rows),
		zap.Duration("took", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		l.log.Error("query failed", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		l.log.Warn("slow query", fields...)
	case l.level >= logger.Info && l.logStatements:
		l.log.Debug("query", fields...)
	}
}
