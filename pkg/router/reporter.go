package router

import "go.uber.org/zap"

// Reporter is the sink for non-fatal dispatch diagnostics: parse failures,
// unresolved recipients and recipient delivery failures. It is a capability
// supplied at construction so tests can capture reported conditions instead
// of scraping output streams.
type Reporter interface {
	Report(msg string, fields ...zap.Field)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(msg string, fields ...zap.Field)

func (f ReporterFunc) Report(msg string, fields ...zap.Field) { f(msg, fields...) }

// ZapReporter reports through the global zap logger at Warn level.
func ZapReporter() Reporter {
	return ReporterFunc(func(msg string, fields ...zap.Field) {
		zap.L().Warn(msg, fields...)
	})
}
