package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/config"
	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/onboarding"
)

// CollyFetcher implements onboarding.Fetcher using the Colly collector.
type CollyFetcher struct {
	baseCollector *colly.Collector
	maxPageBytes  int
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based fetcher.
func NewCollyFetcher(cfg config.CrawlerConfig, logger *zap.Logger) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       cfg.Concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	perDomain := cfg.RateLimitPerDomain
	if perDomain < 1 {
		perDomain = 1
	}
	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency,
		Delay:       time.Second / time.Duration(perDomain),
	}); err != nil {
		return nil, fmt.Errorf("configure rate limit: %w", err)
	}

	return &CollyFetcher{
		baseCollector: base,
		maxPageBytes:  cfg.MaxPageBytes,
		logger:        logging.OrNop(logger),
	}, nil
}

// Fetch retrieves a page via the configured Colly collector. HTTP errors are
// classified for the retry decision: timeouts, 429s, and 5xx responses come
// back transient, 4xx responses fatal.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (onboarding.Page, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		body := r.Body
		if f.maxPageBytes > 0 && len(body) > f.maxPageBytes {
			body = body[:f.maxPageBytes]
		}
		page := onboarding.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte{}, body...),
			Duration:   time.Since(start),
		}
		send(fetchResult{page: page})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{err: classifyFetchError(status, err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		return onboarding.Page{}, onboarding.Fatal("visit url", err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return onboarding.Page{}, err
		}
		if res.err != nil {
			return onboarding.Page{}, res.err
		}
		f.logger.Debug("fetched page",
			zap.String("url", rawURL),
			zap.Int("status", res.page.StatusCode),
			zap.Int("bytes", len(res.page.Body)),
		)
		return res.page, nil
	default:
		return onboarding.Page{}, onboarding.Transient("fetch page", errors.New("colly fetch produced no result"))
	}
}

type fetchResult struct {
	page onboarding.Page
	err  error
}

func classifyFetchError(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return onboarding.Transient("fetch page", fmt.Errorf("rate limited (status %d): %w", status, err))
	case status >= 500:
		return onboarding.Transient("fetch page", fmt.Errorf("server error (status %d): %w", status, err))
	case status >= 400:
		return onboarding.Fatal("fetch page", fmt.Errorf("client error (status %d): %w", status, err))
	default:
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return onboarding.Fatal("fetch page", fmt.Errorf("no such host: %w", err))
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return onboarding.Fatal("fetch page", fmt.Errorf("connection refused: %w", err))
		}
		// Timeouts, resets, and transient DNS trouble are worth a bounded
		// retry.
		return onboarding.Transient("fetch page", err)
	}
}
