package crawler

import "strings"

// Link is a scored candidate discovered on a page.
type Link struct {
	URL        string
	AnchorText string
	Score      float64
}

// Co-occurrence bonuses: links whose URL carries both halves of a high-value
// pair are disproportionately likely to hold the data we need.
var coOccurrencePairs = []struct {
	a, b  string
	bonus float64
}{
	{a: "configuration", b: "detail", bonus: 8},
	{a: "room", b: "detail", bonus: 8},
	{a: "tenancy", b: "price", bonus: 6},
	{a: "booking", b: "price", bonus: 6},
}

// ScoreLink rates a candidate link against a profile's keyword weights.
// URL matches count at full weight, anchor text at half. Shallow paths (one
// to three segments) get a small bonus; very deep paths are penalized.
func ScoreLink(rawURL, anchorText string, profile Profile) float64 {
	lowerURL := strings.ToLower(rawURL)
	lowerAnchor := strings.ToLower(anchorText)

	var score float64
	for keyword, weight := range profile.Keywords {
		if strings.Contains(lowerURL, keyword) {
			score += float64(weight)
		}
		if lowerAnchor != "" && strings.Contains(lowerAnchor, keyword) {
			score += float64(weight) / 2
		}
	}

	for _, pair := range coOccurrencePairs {
		if strings.Contains(lowerURL, pair.a) && strings.Contains(lowerURL, pair.b) {
			score += pair.bonus
		}
	}

	switch segments := pathSegments(rawURL); {
	case segments >= 1 && segments <= 3:
		score += 4
	case segments > 5:
		score -= 3
	}
	return score
}

// selectLinks scores, filters, and ranks a page's candidate links, returning
// at most profile.MaxLinksPage of them. Ordering is deterministic: score
// descending, then URL ascending as the tie break.
func selectLinks(pageURL string, candidates []Link, profile Profile) []Link {
	scored := make([]Link, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		resolved, ok := ResolveLink(pageURL, cand.URL)
		if !ok {
			continue
		}
		norm, err := NormalizeURL(resolved)
		if err != nil {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		score := ScoreLink(resolved, cand.AnchorText, profile)
		if score < profile.MinLinkScore {
			continue
		}
		scored = append(scored, Link{URL: resolved, AnchorText: cand.AnchorText, Score: score})
	}

	// Insertion sort keeps this dependency-free and stable for the small
	// slices involved.
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && less(scored[j], scored[j-1]); j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	if profile.MaxLinksPage > 0 && len(scored) > profile.MaxLinksPage {
		scored = scored[:profile.MaxLinksPage]
	}
	return scored
}

func less(a, b Link) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.URL < b.URL
}
