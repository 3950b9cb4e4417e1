package fetch

import (
	"bytes"
	"context"
	"strings"

	"github.com/roomsage/onboarder/internal/onboarding"
)

// HeuristicDetector decides whether a fetched page needs a headless re-fetch
// using simple HTML signals: a body below the size threshold or known SPA
// framework markers in the markup.
type HeuristicDetector struct {
	minHTMLBytes int
	keywords     [][]byte
}

// NewHeuristicDetector constructs a detector with the configured thresholds.
func NewHeuristicDetector(minBytes int, keywords []string) *HeuristicDetector {
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &HeuristicDetector{
		minHTMLBytes: minBytes,
		keywords:     lowered,
	}
}

// NeedsRender inspects the page for signals that a JS render is required.
// Pages that already came from the renderer are never promoted again.
func (d *HeuristicDetector) NeedsRender(_ context.Context, page onboarding.Page) bool {
	if d == nil || page.Rendered {
		return false
	}
	if d.minHTMLBytes > 0 && len(page.Body) < d.minHTMLBytes {
		return true
	}
	return d.containsKeywords(page.Body)
}

func (d *HeuristicDetector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}
