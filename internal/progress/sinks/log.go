package sinks

import (
	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/onboarding"
)

// LogSink mirrors every progress event into the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink. A nil logger disables output.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logging.OrNop(logger)}
}

// Observe implements progress.Sink.
func (s *LogSink) Observe(evt onboarding.ProgressEvent) {
	fields := []zap.Field{
		zap.String("job_id", evt.JobID),
		zap.Int64("seq", evt.Seq),
		zap.String("type", string(evt.Type)),
	}
	if evt.Category != "" {
		fields = append(fields, zap.String("category", string(evt.Category)))
	}
	if evt.Message != "" {
		fields = append(fields, zap.String("message", evt.Message))
	}
	switch evt.Type {
	case onboarding.EventNodeFailed, onboarding.EventJobFailed:
		s.logger.Warn("pipeline event", fields...)
	default:
		s.logger.Info("pipeline event", fields...)
	}
}
