package progress

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/onboarding"
)

// Sink observes stored progress events. Implementations must not block;
// the recorder calls them inline on the pipeline path.
type Sink interface {
	Observe(evt onboarding.ProgressEvent)
}

// Recorder appends events to the job store and fans them out to sinks. The
// store's event log is the canonical record; sinks are best-effort
// observers.
type Recorder struct {
	store  onboarding.JobStore
	clock  onboarding.Clock
	sinks  []Sink
	logger *zap.Logger
}

// NewRecorder wires a recorder. A nil logger disables logging.
func NewRecorder(store onboarding.JobStore, clock onboarding.Clock, logger *zap.Logger, sinks ...Sink) *Recorder {
	return &Recorder{
		store:  store,
		clock:  clock,
		sinks:  sinks,
		logger: logging.OrNop(logger),
	}
}

// Record stamps, appends, and fans out one event. Append failures other than
// a sealed log are logged and swallowed so progress reporting never fails
// the pipeline.
func (r *Recorder) Record(ctx context.Context, jobID string, evt onboarding.ProgressEvent) {
	if evt.TS.IsZero() && r.clock != nil {
		evt.TS = r.clock.Now()
	}
	stored, err := r.store.AppendEvent(ctx, jobID, evt)
	if err != nil {
		if !errors.Is(err, onboarding.ErrLogSealed) {
			r.logger.Warn("append progress event",
				zap.String("job_id", jobID),
				zap.String("type", string(evt.Type)),
				zap.Error(err),
			)
		}
		return
	}
	for _, sink := range r.sinks {
		sink.Observe(stored)
	}
}
