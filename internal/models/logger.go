package models

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gorm_logger "gorm.io/gorm/logger"
)

// slowQuery is the duration after which queries are logged as warnings.
const slowQuery = 200 * time.Millisecond

// queryLogger writes the logs of gorm to zerolog.
type queryLogger struct {
	logger zerolog.Logger
	level  gorm_logger.LogLevel
}

func newQueryLogger(l zerolog.Logger) *queryLogger {
	return &queryLogger{
		logger: l.With().Str("component", "gorm").Logger(),
		level:  gorm_logger.Warn,
	}
}

func (l *queryLogger) LogMode(level gorm_logger.LogLevel) gorm_logger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *queryLogger) Info(_ context.Context, s string, args ...any) {
	if l.level >= gorm_logger.Info {
		l.logger.Info().Msgf(s, args...)
	}
}

func (l *queryLogger) Warn(_ context.Context, s string, args ...any) {
	if l.level >= gorm_logger.Warn {
		l.logger.Warn().Msgf(s, args...)
	}
}

func (l *queryLogger) Error(_ context.Context, s string, args ...any) {
	if l.level >= gorm_logger.Error {
		l.logger.Error().Msgf(s, args...)
	}
}

// Trace logs a finished statement.
//
// Errors the callers translate and handle, like missing rows or order key
// conflicts, are only logged at debug level.
func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gorm_logger.Silent {
		return
	}

	elapsed := time.Since(begin)

	var event *zerolog.Event
	msg := "query"

	switch {
	case err != nil && handled(err):
		event = l.logger.Debug().Err(err)
		msg = "query conflict"
	case err != nil:
		event = l.logger.Error().Err(err)
		msg = "query error"
	case elapsed > slowQuery:
		event = l.logger.Warn()
		msg = "slow query"
	default:
		event = l.logger.Debug()
	}

	if event == nil {
		return
	}

	sql, rows := fc()
	event.Str("sql", sql).Int64("rows", rows).Dur("duration", elapsed).Msg(msg)
}

// handled reports if err is translated into a client error by the
// callbacks.
func handled(err error) bool {
	for _, target := range []error{ErrResourceNotFound, ErrOrderNotUnique, ErrFringeNameNotUnique, ErrIntegrity} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
