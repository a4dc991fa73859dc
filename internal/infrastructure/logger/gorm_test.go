package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func traceQuery(l *GormLogger, ctx context.Context, elapsed time.Duration, rows int64, err error) {
	l.Trace(ctx, time.Now().Add(-elapsed), func() (string, int64) {
		return "SELECT * FROM labo_invoices WHERE tenant_id = $1", rows
	}, err)
}

func TestGormLoggerTrace(t *testing.T) {
	ctx := context.Background()

	t.Run("query logged at debug with sql and rows", func(t *testing.T) {
		l, recorded := newObservedGormLogger(gormlogger.Info)
		traceQuery(l, ctx, 5*time.Millisecond, 12, nil)

		entries := recorded.FilterMessage("SQL Query").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Contains(t, fields["sql"], "labo_invoices")
		assert.EqualValues(t, 12, fields["rows"])
	})

	t.Run("slow query warned", func(t *testing.T) {
		l, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		traceQuery(l, ctx, 50*time.Millisecond, 1, nil)

		require.Len(t, recorded.All(), 1)
		assert.Equal(t, zapcore.WarnLevel, recorded.All()[0].Level)
		assert.Contains(t, recorded.All()[0].Message, "SLOW SQL")
	})

	t.Run("error logged with the failure", func(t *testing.T) {
		l, recorded := newObservedGormLogger(gormlogger.Error)
		traceQuery(l, ctx, time.Millisecond, 0, errors.New("duplicate key"))

		entries := recorded.FilterMessage("SQL Error").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	})

	t.Run("record not found suppressed", func(t *testing.T) {
		l, recorded := newObservedGormLogger(gormlogger.Error)
		traceQuery(l, ctx, time.Millisecond, 0, gormlogger.ErrRecordNotFound)

		assert.Empty(t, recorded.All())
	})

	t.Run("silent level drops everything", func(t *testing.T) {
		l, recorded := newObservedGormLogger(gormlogger.Silent)
		traceQuery(l, ctx, 500*time.Millisecond, 0, errors.New("ignored"))

		assert.Empty(t, recorded.All())
	})

	t.Run("request id carried from context", func(t *testing.T) {
		l, recorded := newObservedGormLogger(gormlogger.Info)
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-7")
		traceQuery(l, ctx, time.Millisecond, 1, nil)

		entries := recorded.FilterMessage("SQL Query").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-7", entries[0].ContextMap()["request_id"])
	})
}

func TestGormLoggerLogMode(t *testing.T) {
	l, _ := newObservedGormLogger(gormlogger.Info)

	quieter := l.LogMode(gormlogger.Error)
	assert.Equal(t, gormlogger.Error, quieter.(*GormLogger).logLevel)
	assert.Equal(t, gormlogger.Info, l.logLevel)
}

func TestGormLoggerLevelGates(t *testing.T) {
	l, recorded := newObservedGormLogger(gormlogger.Warn)

	l.Info(context.Background(), "skipped %s", "info")
	l.Warn(context.Background(), "kept %s", "warn")
	l.Error(context.Background(), "kept %s", "error")

	assert.Len(t, recorded.All(), 2)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("info"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("other"))
}
