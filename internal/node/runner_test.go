package node

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomsage/onboarder/internal/onboarding"
)

type fakeBuilder struct {
	bundle onboarding.ContextBundle
	err    error
	calls  int
}

func (b *fakeBuilder) Build(ctx context.Context, seedURL string, category onboarding.Category) (onboarding.ContextBundle, error) {
	b.calls++
	if b.err != nil {
		return onboarding.ContextBundle{}, b.err
	}
	return b.bundle, nil
}

// fakeExtractor replays a scripted sequence of replies; the last entry
// repeats once the script runs out.
type fakeExtractor struct {
	script []extractReply
	calls  int
	hints  onboarding.ExtractionHints
}

type extractReply struct {
	data json.RawMessage
	conf float64
	err  error
}

func (e *fakeExtractor) Extract(ctx context.Context, category onboarding.Category, contextText string, hints onboarding.ExtractionHints) (onboarding.ExtractionResult, error) {
	e.hints = hints
	idx := e.calls
	if idx >= len(e.script) {
		idx = len(e.script) - 1
	}
	e.calls++
	reply := e.script[idx]
	if reply.err != nil {
		return onboarding.ExtractionResult{}, reply.err
	}
	return onboarding.ExtractionResult{Data: reply.data, Confidence: reply.conf}, nil
}

type recordingSleeper struct {
	waits []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return s.err
}

func testBundle() onboarding.ContextBundle {
	return onboarding.ContextBundle{
		Context: "=== PRICING ===\nStudio Plus from £210 per week",
		Fragments: []onboarding.Fragment{
			{Bucket: "pricing", Text: "Studio Plus from £210 per week", Score: 100},
		},
		PagesVisited: 1,
	}
}

func testSchedule() onboarding.RetrySchedule {
	return onboarding.RetrySchedule{MaxAttempts: 3, BaseDelay: 5 * time.Second, MaxDelay: 30 * time.Second}
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	builder := &fakeBuilder{bundle: testBundle()}
	extractor := &fakeExtractor{script: []extractReply{
		{data: json.RawMessage(`{"name": "Lumis House", "property_type": "pbsa"}`), conf: 0.8},
	}}
	sleeper := &recordingSleeper{}
	runner := NewRunner(builder, extractor, testSchedule(), sleeper, nil)

	res, err := runner.Run(context.Background(), "https://example.com", onboarding.CategoryBasicInfo, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, "Lumis House", res.Payload.BasicInfo.Name)
	require.InDelta(t, 0.8, res.Confidence, 0.001)
	require.InDelta(t, 0.5, res.Completeness, 0.001)
	require.InDelta(t, 1.0, res.Relevance, 0.001)
	require.Empty(t, sleeper.waits)
}

func TestRunRetriesTransientThenSucceeds(t *testing.T) {
	builder := &fakeBuilder{bundle: testBundle()}
	extractor := &fakeExtractor{script: []extractReply{
		{err: onboarding.Transient("extraction call", errors.New("429"))},
		{err: onboarding.Transient("extraction call", errors.New("502"))},
		{data: json.RawMessage(`{"summary": "Modern studios"}`), conf: 0.5},
	}}
	sleeper := &recordingSleeper{}
	runner := NewRunner(builder, extractor, testSchedule(), sleeper, nil)

	var retries []int
	res, err := runner.Run(context.Background(), "https://example.com", onboarding.CategoryDescription, Options{
		OnRetry: func(attempt int, wait time.Duration, err error) {
			retries = append(retries, attempt)
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, []int{1, 2}, retries)
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeper.waits)
}

func TestRunExhaustsAttempts(t *testing.T) {
	builder := &fakeBuilder{bundle: testBundle()}
	extractor := &fakeExtractor{script: []extractReply{
		{err: onboarding.Transient("extraction call", errors.New("timeout"))},
	}}
	sleeper := &recordingSleeper{}
	runner := NewRunner(builder, extractor, testSchedule(), sleeper, nil)

	res, err := runner.Run(context.Background(), "https://example.com", onboarding.CategoryDescription, Options{})
	require.Error(t, err)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, 3, extractor.calls)
	require.Len(t, sleeper.waits, 2)
}

func TestRunFatalShortCircuits(t *testing.T) {
	builder := &fakeBuilder{err: onboarding.Fatal("fetch", errors.New("404 not found"))}
	extractor := &fakeExtractor{script: []extractReply{{data: json.RawMessage(`{}`)}}}
	runner := NewRunner(builder, extractor, testSchedule(), &recordingSleeper{}, nil)

	res, err := runner.Run(context.Background(), "https://example.com/missing", onboarding.CategoryBasicInfo, Options{})
	require.Error(t, err)
	require.False(t, onboarding.IsTransient(err))
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, 1, builder.calls)
	require.Zero(t, extractor.calls)
}

func TestRunCancellationStopsRetries(t *testing.T) {
	builder := &fakeBuilder{bundle: testBundle()}
	extractor := &fakeExtractor{script: []extractReply{
		{err: onboarding.Transient("extraction call", errors.New("flaky"))},
	}}
	sleeper := &recordingSleeper{err: context.Canceled}
	runner := NewRunner(builder, extractor, testSchedule(), sleeper, nil)

	_, err := runner.Run(context.Background(), "https://example.com", onboarding.CategoryDescription, Options{})
	require.Error(t, err)
	require.True(t, onboarding.IsCancelled(err))
	require.Equal(t, 1, extractor.calls)
}

func TestRunRetriesMalformedPayload(t *testing.T) {
	builder := &fakeBuilder{bundle: testBundle()}
	extractor := &fakeExtractor{script: []extractReply{
		{data: json.RawMessage(`{"tenancies": "not an array of objects", "bad": [}`)},
		{data: json.RawMessage(`{"tenancies": [{"duration": "51 weeks", "price_per_week": "£210"}]}`), conf: 0.9},
	}}
	sleeper := &recordingSleeper{}
	runner := NewRunner(builder, extractor, testSchedule(), sleeper, nil)

	res, err := runner.Run(context.Background(), "https://example.com", onboarding.CategoryTenancy, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Attempts)
	require.Len(t, res.Payload.Tenancy.Tenancies, 1)
}

func TestRunPassesHintsAndDegradedFlag(t *testing.T) {
	builder := &fakeBuilder{bundle: testBundle()}
	extractor := &fakeExtractor{script: []extractReply{
		{data: json.RawMessage(`{"tenancies": [{"configuration_name": "Studio Plus", "duration": "44 weeks", "price_per_week": "£210 per week"}]}`), conf: 1},
	}}
	runner := NewRunner(builder, extractor, testSchedule(), &recordingSleeper{}, nil)

	hints := onboarding.ExtractionHints{
		ConfigurationNames: []string{"Studio Plus"},
		ConfigurationIDs:   []string{"cfg-studio-plus"},
	}
	res, err := runner.Run(context.Background(), "https://example.com", onboarding.CategoryTenancy, Options{
		Hints:    hints,
		Degraded: true,
	})
	require.NoError(t, err)
	require.Equal(t, hints, extractor.hints)
	require.True(t, res.Degraded)
	require.Equal(t, "cfg-studio-plus", res.Payload.Tenancy.Tenancies[0].ConfigurationID)
}

func TestCompleteness(t *testing.T) {
	tests := []struct {
		name     string
		category onboarding.Category
		payload  *onboarding.NodePayload
		want     float64
	}{
		{
			name:     "nil payload",
			category: onboarding.CategoryBasicInfo,
			want:     0,
		},
		{
			name:     "basic info full",
			category: onboarding.CategoryBasicInfo,
			payload: &onboarding.NodePayload{BasicInfo: &onboarding.BasicInfoPayload{
				Name:         "Lumis House",
				PropertyType: "pbsa",
				Location:     onboarding.Location{City: "Leeds"},
				Features:     onboarding.StringList{"wifi"},
			}},
			want: 1,
		},
		{
			name:     "basic info partial",
			category: onboarding.CategoryBasicInfo,
			payload: &onboarding.NodePayload{BasicInfo: &onboarding.BasicInfoPayload{
				Name: "Lumis House",
			}},
			want: 0.25,
		},
		{
			name:     "description half",
			category: onboarding.CategoryDescription,
			payload: &onboarding.NodePayload{Description: &onboarding.DescriptionPayload{
				Summary: "Modern studios",
			}},
			want: 0.5,
		},
		{
			name:     "configurations mixed",
			category: onboarding.CategoryConfiguration,
			payload: &onboarding.NodePayload{Configuration: &onboarding.ConfigurationPayload{
				Configurations: []onboarding.Configuration{
					{Name: "Studio Plus", PriceMin: onboarding.Money{Amount: 210, Known: true}},
					{Name: "Classic Ensuite"},
				},
			}},
			want: 0.75,
		},
		{
			name:     "tenancies empty",
			category: onboarding.CategoryTenancy,
			payload:  &onboarding.NodePayload{Tenancy: &onboarding.TenancyPayload{}},
			want:     0,
		},
		{
			name:     "tenancies full",
			category: onboarding.CategoryTenancy,
			payload: &onboarding.NodePayload{Tenancy: &onboarding.TenancyPayload{
				Tenancies: []onboarding.TenancyOption{
					{
						Duration:     onboarding.Stay{Weeks: 51, Known: true},
						PricePerWeek: onboarding.Money{Amount: 210, Known: true},
					},
				},
			}},
			want: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, Completeness(tc.category, tc.payload), 0.001)
		})
	}
}
