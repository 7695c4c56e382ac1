package logger

import (
	"github.com/maxaizer/shiftmatch/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// errorsHook counts failures by error type and level. Warnings only count when they carry an error type,
// which is how lost races and blocked offers are reported.
type errorsHook struct{}

func (h *errorsHook) Fire(entry *log.Entry) error {
	errorType, typed := entry.Data[ErrorTypeField].(string)
	if !typed {
		if entry.Level == log.WarnLevel {
			return nil
		}
		errorType = "unknown"
	}

	metrics.ErrorsCounter.WithLabelValues(errorType, entry.Level.String()).Inc()
	return nil
}

func (h *errorsHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel}
}
