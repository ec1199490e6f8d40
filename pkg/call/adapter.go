package call

import "github.com/dbehnke/p25bridge/pkg/logger"

// LoggerAdapter wraps the teacher's structured *logger.Logger, whose
// methods take typed Field values, so it satisfies Logger's looser
// alternating key/value signature.
type LoggerAdapter struct {
	L *logger.Logger
}

// NewLoggerAdapter wraps l for use as a call.Logger.
func NewLoggerAdapter(l *logger.Logger) LoggerAdapter {
	return LoggerAdapter{L: l}
}

func (a LoggerAdapter) Info(msg string, fields ...any)  { a.L.Info(msg, toFields(fields)...) }
func (a LoggerAdapter) Warn(msg string, fields ...any)  { a.L.Warn(msg, toFields(fields)...) }
func (a LoggerAdapter) Error(msg string, fields ...any) { a.L.Error(msg, toFields(fields)...) }

// toFields converts alternating key/value pairs into typed logger
// fields, tolerating an odd trailing argument by logging it under "arg".
func toFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2+1)
	i := 0
	for ; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = "arg"
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	if i < len(kv) {
		fields = append(fields, logger.Any("arg", kv[i]))
	}
	return fields
}
