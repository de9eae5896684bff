package depcache

// Fields carries structured context for a log line.
type Fields map[string]any

// Logger receives the cache's diagnostic output. Implementations for zap,
// logrus, slog and ctxd live under log/; a nil Options.Logger disables logging.
//
// Calls happen on the request path, so implementations should not block.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

func errFields(key string, err error) Fields {
	return Fields{"key": key, "err": err}
}
