// Package logsvc provides the core.Logger sinks.
package logsvc

import (
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/scope"
)

type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger builds a development logger in debug mode and a JSON production logger otherwise.
// `name` tells the apps apart, eg. "api".
func NewZapLogger(conf *core.Config, name string) (*ZapLogger, error) {
	var cfg zap.Config
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.InitialFields = map[string]interface{}{"app": conf.AppName, "build": conf.Build}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return NewZapLoggerFrom(logger.Named(name)), nil
}

// NewZapLoggerFrom wraps an existing zap logger, eg. zaptest or zap.NewNop.
func NewZapLoggerFrom(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

// fields turns the args accepted by core.Logger into key/value pairs.
func fields(args []interface{}) []interface{} {
	kv := make([]interface{}, 0, 2*len(args))
	var extras int
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			kv = append(kv, zap.Error(v))
		case scope.User:
			kv = append(kv, "user_id", v.ID, "user_role", v.Role)
			if v.SecteurAssigne != "" {
				kv = append(kv, "user_secteur", v.SecteurAssigne)
			}
		case map[string]interface{}:
			for k, val := range v {
				kv = append(kv, k, val)
			}
		default:
			key := "extra"
			if extras > 0 {
				key += "_" + strconv.Itoa(extras)
			}
			kv = append(kv, zap.Any(key, v))
			extras++
		}
	}
	return kv
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugw(msg, fields(args)...)
}

func (l *ZapLogger) Info(msg string, args ...interface{}) {
	l.sugar.Infow(msg, fields(args)...)
}

func (l *ZapLogger) Warn(msg string, args ...interface{}) {
	l.sugar.Warnw(msg, fields(args)...)
}

func (l *ZapLogger) Error(msg string, args ...interface{}) {
	l.sugar.Errorw(msg, fields(args)...)
}

func (l *ZapLogger) Fatal(msg string, args ...interface{}) {
	l.sugar.Fatalw(msg, fields(args)...)
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
