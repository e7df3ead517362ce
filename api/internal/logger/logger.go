package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Logger is a key/value logger over zap's sugared logger. Values under keys
// that look like credentials are replaced before they reach any sink.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a logger for mode "prod" (JSON, info and up) or anything else
// (console, debug and up).
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{s: zl.Sugar()}, nil
}

// Nop discards everything; handy in tests.
func Nop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() { _ = l.s.Sync() }

func (l *Logger) Debug(msg string, kv ...any) { l.s.Debugw(msg, redact(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { l.s.Infow(msg, redact(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, redact(kv)...) }
func (l *Logger) Error(msg string, kv ...any) { l.s.Errorw(msg, redact(kv)...) }
func (l *Logger) Fatal(msg string, kv ...any) { l.s.Fatalw(msg, redact(kv)...) }

func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(redact(kv)...)}
}

const redacted = "[REDACTED]"

func redact(kv []any) []any {
	if len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := fmt.Sprint(kv[i])
		val := kv[i+1]
		if secretKey(key) {
			val = redacted
		}
		out = append(out, key, val)
	}
	return out
}

func secretKey(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range []string{"token", "api_key", "apikey", "password", "secret", "authorization", "dsn"} {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}
