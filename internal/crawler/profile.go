package crawler

import "github.com/roomsage/onboarder/internal/onboarding"

// Profile bounds one category's crawl: how deep to follow links, how many
// pages to visit, and how large the assembled context may grow.
type Profile struct {
	Depth         int
	MaxLinksPage  int
	MaxTotalPages int
	MaxChars      int
	// Keywords maps lowercase terms to their link-scoring weight. Anchor
	// text matches count at half weight.
	Keywords map[string]int
	// MinLinkScore discards candidate links scoring below it.
	MinLinkScore float64
}

// ProfileFor returns the default crawl profile for a category. Configuration
// and tenancy dig deeper because their data hides behind room-detail and
// booking pages.
func ProfileFor(category onboarding.Category) Profile {
	switch category {
	case onboarding.CategoryConfiguration:
		return Profile{
			Depth:         2,
			MaxLinksPage:  8,
			MaxTotalPages: 6,
			MaxChars:      30000,
			MinLinkScore:  5,
			Keywords: map[string]int{
				"configuration": 10,
				"ensuite":       9,
				"en-suite":      9,
				"room":          8,
				"studio":        8,
				"apartment":     7,
				"flat":          7,
				"floorplan":     7,
				"detail":        6,
				"type":          5,
				"bedroom":       5,
			},
		}
	case onboarding.CategoryTenancy:
		return Profile{
			Depth:         2,
			MaxLinksPage:  8,
			MaxTotalPages: 6,
			MaxChars:      30000,
			MinLinkScore:  5,
			Keywords: map[string]int{
				"tenancy":      10,
				"contract":     10,
				"lease":        10,
				"price":        9,
				"pricing":      9,
				"booking":      8,
				"book":         7,
				"fees":         7,
				"duration":     7,
				"availability": 6,
				"rent":         6,
			},
		}
	case onboarding.CategoryDescription:
		return Profile{
			Depth:         1,
			MaxLinksPage:  4,
			MaxTotalPages: 2,
			MaxChars:      15000,
			MinLinkScore:  5,
			Keywords: map[string]int{
				"about":       8,
				"overview":    7,
				"description": 7,
				"property":    5,
				"gallery":     4,
			},
		}
	default: // basic_info
		return Profile{
			Depth:         1,
			MaxLinksPage:  5,
			MaxTotalPages: 3,
			MaxChars:      20000,
			MinLinkScore:  5,
			Keywords: map[string]int{
				"about":      8,
				"location":   8,
				"contact":    7,
				"facilities": 7,
				"amenities":  7,
				"features":   6,
				"safety":     6,
				"security":   5,
				"faq":        4,
			},
		}
	}
}
