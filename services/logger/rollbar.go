package logsvc

import (
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/scope"
)

// RollbarLogger reports every entry to rollbar and forwards it to a local sink.
type RollbarLogger struct {
	local core.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(conf *core.Config, local core.Logger) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{local: local}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// item builds the rollbar arguments: the message, the first error and one map of custom data.
// The first scope.User becomes the rollbar person.
func item(msg string, args []interface{}) (items []interface{}, usr *scope.User) {
	items = []interface{}{msg}
	custom := make(map[string]interface{})
	var errSet bool
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			if !errSet {
				items = append(items, v)
				errSet = true
			} else {
				custom["error_"+strconv.Itoa(i)] = v.Error()
			}
		case scope.User:
			if usr == nil {
				usr = &v
			}
		case map[string]interface{}:
			for k, val := range v {
				custom[k] = val
			}
		default:
			custom["extra_"+strconv.Itoa(i)] = v
		}
	}
	if len(custom) > 0 {
		items = append(items, custom)
	}
	return items, usr
}

func (l RollbarLogger) report(level, msg string, args []interface{}) {
	items, usr := item(msg, args)
	if usr != nil {
		rollbar.SetPerson(usr.ID, usr.Role, usr.SecteurAssigne)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, items...)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.report(rollbar.DEBUG, msg, args)
	l.local.Debug(msg, args...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.report(rollbar.INFO, msg, args)
	l.local.Info(msg, args...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.report(rollbar.WARN, msg, args)
	l.local.Warn(msg, args...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.report(rollbar.ERR, msg, args)
	l.local.Error(msg, args...)
}

// Fatal flushes the rollbar queue before the local sink exits.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.local.Fatal(msg, args...)
}
