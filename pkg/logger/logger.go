package logger

import "github.com/rs/zerolog"

// SetLevel sets the global minimum level ("debug", "info", "warn", "error").
// Unknown values fall back to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Info printf 스타일 info 로그
func Info(format string, args ...interface{}) {
	zlog.Info().Msgf(format, args...)
}

// Warn printf 스타일 warn 로그
func Warn(format string, args ...interface{}) {
	zlog.Warn().Msgf(format, args...)
}

// Error printf 스타일 error 로그
func Error(format string, args ...interface{}) {
	zlog.Error().Msgf(format, args...)
}

// Debug printf 스타일 debug 로그
func Debug(format string, args ...interface{}) {
	zlog.Debug().Msgf(format, args...)
}
