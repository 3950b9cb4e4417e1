package crawler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/digest"
	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/onboarding"
)

// seedScore is the fragment score assigned to the seed page's own content;
// it outranks any discovered link so seed fragments survive truncation first.
const seedScore = 100

// Builder implements onboarding.ContextBuilder: breadth-first, link-scored
// traversal from a seed URL into one bounded ContextBundle.
type Builder struct {
	fetcher  onboarding.Fetcher
	profiles map[onboarding.Category]Profile
	logger   *zap.Logger
}

// NewBuilder constructs a Builder with default per-category profiles.
func NewBuilder(fetcher onboarding.Fetcher, logger *zap.Logger) *Builder {
	profiles := make(map[onboarding.Category]Profile, 4)
	for _, cat := range onboarding.Categories() {
		profiles[cat] = ProfileFor(cat)
	}
	return &Builder{
		fetcher:  fetcher,
		profiles: profiles,
		logger:   logging.OrNop(logger),
	}
}

// SetProfile overrides the crawl profile for one category.
func (b *Builder) SetProfile(category onboarding.Category, profile Profile) {
	b.profiles[category] = profile
}

type crawlItem struct {
	url   string
	depth int
	score float64
}

// Build fetches the seed page and its best-scored sub-pages, classifies every
// content block into a bucket, and assembles the budgeted context string.
// Cancellation is observed at each page-fetch boundary. With MaxTotalPages=0
// the bundle is built solely from the seed page's own blocks.
func (b *Builder) Build(ctx context.Context, seedURL string, category onboarding.Category) (onboarding.ContextBundle, error) {
	profile, ok := b.profiles[category]
	if !ok {
		profile = ProfileFor(category)
	}

	if err := ctx.Err(); err != nil {
		return onboarding.ContextBundle{}, fmt.Errorf("%w: %s", onboarding.ErrCancelled, err)
	}

	seedPage, err := b.fetcher.Fetch(ctx, seedURL)
	if err != nil {
		return onboarding.ContextBundle{}, fmt.Errorf("fetch seed page: %w", err)
	}

	var fragments []onboarding.Fragment
	collect := func(pageURL string, body []byte, score float64) []Link {
		blocks, links, parseErr := ParsePage(pageURL, body)
		if parseErr != nil {
			b.logger.Warn("parse page failed", zap.String("url", pageURL), zap.Error(parseErr))
			return nil
		}
		for _, block := range blocks {
			fragments = append(fragments, onboarding.Fragment{
				Bucket:    ClassifyFragment(block),
				Text:      block,
				SourceURL: pageURL,
				Score:     score,
			})
		}
		return links
	}

	seedLinks := collect(seedURL, seedPage.Body, seedScore)

	visited := map[string]struct{}{}
	if norm, normErr := NormalizeURL(seedURL); normErr == nil {
		visited[norm] = struct{}{}
	}
	seenBodies := map[string]struct{}{digest.Body(seedPage.Body): {}}

	frontier := make([]crawlItem, 0, profile.MaxLinksPage)
	for _, link := range selectLinks(seedURL, seedLinks, profile) {
		frontier = append(frontier, crawlItem{url: link.URL, depth: 1, score: link.Score})
	}

	pagesVisited := 0
	for len(frontier) > 0 && pagesVisited < profile.MaxTotalPages {
		item := frontier[0]
		frontier = frontier[1:]
		if item.depth > profile.Depth {
			continue
		}
		norm, normErr := NormalizeURL(item.url)
		if normErr != nil {
			continue
		}
		if _, seen := visited[norm]; seen {
			continue
		}
		visited[norm] = struct{}{}

		// Cancellation checkpoint: one per page fetch.
		if err := ctx.Err(); err != nil {
			return onboarding.ContextBundle{}, fmt.Errorf("%w: %s", onboarding.ErrCancelled, err)
		}

		page, fetchErr := b.fetcher.Fetch(ctx, item.url)
		if fetchErr != nil {
			// Sub-page failures degrade coverage, never the node.
			b.logger.Debug("sub-page fetch failed",
				zap.String("url", item.url),
				zap.Error(fetchErr),
			)
			continue
		}
		pagesVisited++

		// Aliased URLs often serve the same document; identical bodies
		// have already contributed their fragments and links.
		sum := digest.Body(page.Body)
		if _, dup := seenBodies[sum]; dup {
			b.logger.Debug("duplicate page body skipped", zap.String("url", item.url))
			continue
		}
		seenBodies[sum] = struct{}{}

		links := collect(item.url, page.Body, item.score)
		if item.depth < profile.Depth {
			for _, link := range selectLinks(item.url, links, profile) {
				frontier = append(frontier, crawlItem{url: link.URL, depth: item.depth + 1, score: link.Score})
			}
		}
	}

	bundle := assembleBundle(category, fragments, profile)
	bundle.PagesVisited = pagesVisited
	b.logger.Info("context bundle built",
		zap.String("category", string(category)),
		zap.Int("pages_visited", pagesVisited),
		zap.Int("fragments", len(bundle.Fragments)),
		zap.Int("context_chars", len(bundle.Context)),
	)
	return bundle, nil
}

// assembleBundle allocates the character budget across buckets and
// concatenates them in priority order. Within a bucket, higher-scored
// fragments are kept preferentially; discovery order breaks ties so the
// result is deterministic for identical input.
func assembleBundle(category onboarding.Category, fragments []onboarding.Fragment, profile Profile) onboarding.ContextBundle {
	byBucket := make(map[string][]int)
	for i, frag := range fragments {
		byBucket[frag.Bucket] = append(byBucket[frag.Bucket], i)
	}

	var (
		sections  []string
		kept      []onboarding.Fragment
		truncated bool
	)
	for _, spec := range bucketSpecs {
		indices := byBucket[spec.Name]
		if len(indices) == 0 {
			continue
		}
		sort.SliceStable(indices, func(a, b int) bool {
			return fragments[indices[a]].Score > fragments[indices[b]].Score
		})

		budget := bucketBudget(spec.Name, profile.MaxChars)
		var parts []string
		used := 0
		for _, idx := range indices {
			frag := fragments[idx]
			remaining := budget - used
			if remaining <= 0 {
				truncated = true
				break
			}
			text := frag.Text
			if len(text) > remaining {
				text = text[:remaining]
				truncated = true
			}
			frag.Text = text
			parts = append(parts, text)
			kept = append(kept, frag)
			used += len(text)
		}
		if len(parts) == 0 {
			continue
		}
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", strings.ToUpper(spec.Name), strings.Join(parts, "\n---\n")))
	}

	contextText := strings.Join(sections, "\n\n")
	if profile.MaxChars > 0 && len(contextText) > profile.MaxChars {
		contextText = contextText[:profile.MaxChars]
		truncated = true
	}
	return onboarding.ContextBundle{
		Category:  category,
		Context:   contextText,
		Fragments: kept,
		Truncated: truncated,
	}
}
