package onboarding

import (
	"context"
	"encoding/json"
	"time"
)

// JobStore persists jobs, their node runs, and the per-job event log.
// Implementations serialize mutations per job id; independent jobs proceed
// fully concurrently.
type JobStore interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	// Update applies fn to the stored job under the job's writer lock.
	// Returning an error from fn aborts the mutation.
	Update(ctx context.Context, id string, fn func(*Job) error) error
	// AppendEvent assigns the next sequence number for the job and appends
	// the event. Appending after a terminal event is rejected.
	AppendEvent(ctx context.Context, id string, evt ProgressEvent) (ProgressEvent, error)
	// ListEvents returns events with Seq > sinceSeq in ascending order.
	ListEvents(ctx context.Context, id string, sinceSeq int64) ([]ProgressEvent, error)
}

// Fetcher retrieves a page over plain HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer retrieves a page through a JS-capable headless browser.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
}

// RenderDetector decides whether a fetched page needs a headless re-fetch.
type RenderDetector interface {
	NeedsRender(ctx context.Context, page Page) bool
}

// ExtractionHints carries cross-node context into an extraction call. The
// tenancy node injects the configuration node's identifiers so the model can
// align tenancy options to configurations by name.
type ExtractionHints struct {
	ConfigurationIDs   []string
	ConfigurationNames []string
}

// ExtractionResult is the raw structured output of one extraction call.
type ExtractionResult struct {
	Data       json.RawMessage
	Confidence float64
}

// Extractor wraps the opaque text-to-structured-data capability. Failures are
// typed: transient ones (timeout, rate limit, 5xx, malformed JSON) carry
// KindTransient and are retried by the node runner.
type Extractor interface {
	Extract(ctx context.Context, category Category, contextText string, hints ExtractionHints) (ExtractionResult, error)
}

// ContextBuilder produces the bounded extraction context for one node run.
type ContextBuilder interface {
	Build(ctx context.Context, seedURL string, category Category) (ContextBundle, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Sleeper blocks for the given duration or until the context ends. The node
// runner's backoff waits go through this so tests never sleep.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
