package node

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/onboarding"
)

// Runner executes one category node: build the page context, run the
// extraction call, decode and post-process the payload, and score it.
// Transient failures retry on the configured schedule; fatal failures and
// cancellation end the node immediately.
type Runner struct {
	builder   onboarding.ContextBuilder
	extractor onboarding.Extractor
	schedule  onboarding.RetrySchedule
	sleeper   onboarding.Sleeper
	logger    *zap.Logger
}

// NewRunner wires a node runner. A nil logger disables logging.
func NewRunner(
	builder onboarding.ContextBuilder,
	extractor onboarding.Extractor,
	schedule onboarding.RetrySchedule,
	sleeper onboarding.Sleeper,
	logger *zap.Logger,
) *Runner {
	if schedule.MaxAttempts <= 0 {
		schedule = onboarding.DefaultRetrySchedule()
	}
	if sleeper == nil {
		sleeper = contextSleeper{}
	}
	return &Runner{
		builder:   builder,
		extractor: extractor,
		schedule:  schedule,
		sleeper:   sleeper,
		logger:    logging.OrNop(logger),
	}
}

// Options tunes a single node run.
type Options struct {
	// Hints carry configuration identifiers into the tenancy extraction.
	Hints onboarding.ExtractionHints
	// Degraded marks a tenancy run whose configuration dependency failed;
	// the run proceeds without linkage and its output is flagged.
	Degraded bool
	// OnRetry, when set, observes each scheduled retry before its backoff
	// wait. attempt is the 1-based number of the attempt that just failed.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Result is the outcome of a successful node run.
type Result struct {
	Category     onboarding.Category
	Payload      *onboarding.NodePayload
	Confidence   float64
	Completeness float64
	Relevance    float64
	PagesVisited int
	Attempts     int
	Degraded     bool
}

// Run executes the node to completion or final failure. The returned attempt
// count is valid on both paths.
func (r *Runner) Run(
	ctx context.Context,
	seedURL string,
	category onboarding.Category,
	opts Options,
) (Result, error) {
	var lastErr error
	attempt := 0
	for r.schedule.Allows(attempt) {
		if attempt > 0 {
			wait := r.schedule.Backoff(attempt - 1)
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, wait, lastErr)
			}
			r.logger.Info("node retrying",
				zap.String("category", string(category)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			if err := r.sleeper.Sleep(ctx, wait); err != nil {
				return Result{Category: category, Attempts: attempt},
					fmt.Errorf("%w: %v", onboarding.ErrCancelled, err)
			}
		}
		attempt++

		res, err := r.attempt(ctx, seedURL, category, opts)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		lastErr = err
		if onboarding.IsCancelled(err) {
			return Result{Category: category, Attempts: attempt}, err
		}
		if !onboarding.IsTransient(err) {
			r.logger.Warn("node failed fatally",
				zap.String("category", string(category)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return Result{Category: category, Attempts: attempt}, err
		}
	}
	return Result{Category: category, Attempts: attempt},
		fmt.Errorf("node %s exhausted %d attempts: %w", category, attempt, lastErr)
}

func (r *Runner) attempt(
	ctx context.Context,
	seedURL string,
	category onboarding.Category,
	opts Options,
) (Result, error) {
	bundle, err := r.builder.Build(ctx, seedURL, category)
	if err != nil {
		return Result{}, err
	}

	extracted, err := r.extractor.Extract(ctx, category, bundle.Context, opts.Hints)
	if err != nil {
		return Result{}, err
	}

	payload, err := onboarding.DecodeNodePayload(category, extracted.Data)
	if err != nil {
		// The model produced valid JSON in the wrong shape; a retry with the
		// same prompt frequently recovers.
		return Result{}, onboarding.Transient("decode payload", err)
	}
	applyHooks(category, payload, opts.Hints)

	return Result{
		Category:     category,
		Payload:      payload,
		Confidence:   clamp01(extracted.Confidence),
		Completeness: Completeness(category, payload),
		Relevance:    clamp01(bundle.MeanFragmentScore() / relevanceScale),
		PagesVisited: bundle.PagesVisited,
		Degraded:     opts.Degraded,
	}, nil
}

// relevanceScale normalizes mean fragment link scores to [0,1]. Seed page
// fragments score 100, so a bundle drawn mostly from the seed approaches 1.
const relevanceScale = 100

// Completeness is the fraction of the category's required fields that hold a
// non-empty value.
func Completeness(category onboarding.Category, payload *onboarding.NodePayload) float64 {
	if payload == nil {
		return 0
	}
	switch category {
	case onboarding.CategoryBasicInfo:
		p := payload.BasicInfo
		if p == nil {
			return 0
		}
		return fractionPresent(
			p.Name != "",
			p.PropertyType != "",
			p.Location != (onboarding.Location{}),
			len(p.Features) > 0,
		)
	case onboarding.CategoryDescription:
		p := payload.Description
		if p == nil {
			return 0
		}
		return fractionPresent(p.Summary != "", p.FullDescription != "")
	case onboarding.CategoryConfiguration:
		p := payload.Configuration
		if p == nil || len(p.Configurations) == 0 {
			return 0
		}
		// Scored per configuration: a named entry with at least one known
		// price is complete.
		var sum float64
		for _, cfg := range p.Configurations {
			sum += fractionPresent(cfg.Name != "", cfg.PriceMin.Known || cfg.PriceMax.Known)
		}
		return sum / float64(len(p.Configurations))
	case onboarding.CategoryTenancy:
		p := payload.Tenancy
		if p == nil || len(p.Tenancies) == 0 {
			return 0
		}
		var sum float64
		for _, opt := range p.Tenancies {
			sum += fractionPresent(
				opt.Duration.Known,
				opt.PricePerWeek.Known || opt.PriceTotal.Known,
			)
		}
		return sum / float64(len(p.Tenancies))
	default:
		return 0
	}
}

func fractionPresent(fields ...bool) float64 {
	if len(fields) == 0 {
		return 0
	}
	present := 0
	for _, ok := range fields {
		if ok {
			present++
		}
	}
	return float64(present) / float64(len(fields))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// contextSleeper is the production Sleeper: a timer that also honors context
// cancellation.
type contextSleeper struct{}

func (contextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
