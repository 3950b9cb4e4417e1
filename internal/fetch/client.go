package fetch

import (
	"context"

	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/onboarding"
)

// Client combines the plain fetcher with optional headless promotion: fetch
// first, then re-fetch through the renderer when the detector flags the page
// as JS-dependent. With no renderer wired, the plain page stands.
type Client struct {
	fetcher  onboarding.Fetcher
	renderer onboarding.Renderer
	detector onboarding.RenderDetector
	logger   *zap.Logger
}

// NewClient wires the fetcher, detector, and renderer. Renderer and detector
// may be nil, disabling promotion.
func NewClient(fetcher onboarding.Fetcher, detector onboarding.RenderDetector, renderer onboarding.Renderer, logger *zap.Logger) *Client {
	return &Client{
		fetcher:  fetcher,
		renderer: renderer,
		detector: detector,
		logger:   logging.OrNop(logger),
	}
}

// Fetch retrieves the page, promoting to a headless render when warranted.
// A failed render falls back to the plain page rather than failing the fetch.
func (c *Client) Fetch(ctx context.Context, rawURL string) (onboarding.Page, error) {
	page, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return onboarding.Page{}, err
	}
	if c.renderer == nil || c.detector == nil || !c.detector.NeedsRender(ctx, page) {
		return page, nil
	}
	rendered, err := c.renderer.Render(ctx, rawURL)
	if err != nil {
		c.logger.Warn("headless render failed, using plain fetch",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return page, nil
	}
	return rendered, nil
}
