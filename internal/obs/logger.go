package obs

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Env    string
	Ver    string
}

// NewLogger builds the process logger and installs it as the zap global so
// packages that fall back to zap.L() share its fields.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fields := []zap.Field{zap.String("service", c.App)}
	if c.Env != "" {
		fields = append(fields, zap.String("env", c.Env))
	}
	if c.Ver != "" {
		fields = append(fields, zap.String("version", c.Ver))
	}
	l, err := cfg.Build(zap.Fields(fields...))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}

// Component names the emitting subsystem. A nil logger yields a no-op one.
func Component(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.With(zap.String("component", name))
}

// Email logs an address with the local part masked: jane@x.io -> j***@x.io.
func Email(key, addr string) zap.Field {
	return zap.String(key, MaskEmail(addr))
}

func MaskEmail(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 1 {
		return addr
	}
	return addr[:1] + strings.Repeat("*", at-1) + addr[at:]
}
