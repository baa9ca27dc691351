package core

// Logger is implemented by the services/logger sinks.
// args may carry an error, a map[string]interface{} of extras, or the acting scope.User.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
