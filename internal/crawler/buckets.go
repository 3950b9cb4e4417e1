package crawler

import "strings"

// Bucket names, in priority order. Every content fragment lands in exactly
// one bucket; unmatched text falls through to general.
const (
	BucketRoomConfigDetail = "room_config_detail"
	BucketPricing          = "pricing"
	BucketTenancyTerms     = "tenancy_terms"
	BucketAvailability     = "availability"
	BucketLocation         = "location"
	BucketAmenities        = "amenities"
	BucketDescription      = "description"
	BucketPolicies         = "policies"
	BucketSafety           = "safety"
	BucketContact          = "contact"
	BucketGeneral          = "general"
)

// bucketSpec fixes a bucket's rank and its fractional share of the context
// budget (MaxChars / ShareDivisor).
type bucketSpec struct {
	Name         string
	ShareDivisor int
	Keywords     []string
}

// bucketSpecs lists the eleven buckets from highest to lowest priority.
// Higher-priority buckets get the larger budget share.
var bucketSpecs = []bucketSpec{
	{
		Name:         BucketRoomConfigDetail,
		ShareDivisor: 5,
		Keywords:     []string{"studio", "ensuite", "en-suite", "room type", "configuration", "floorplan", "sqm", "m²", "bedroom", "twin", "apartment type"},
	},
	{
		Name:         BucketPricing,
		ShareDivisor: 6,
		Keywords:     []string{"price", "per week", "pw", "pcm", "per month", "from £", "from $", "from €", "rent", "deposit", "total cost"},
	},
	{
		Name:         BucketTenancyTerms,
		ShareDivisor: 6,
		Keywords:     []string{"tenancy", "contract", "lease", "weeks", "duration", "term dates", "academic year", "semester"},
	},
	{
		Name:         BucketAvailability,
		ShareDivisor: 8,
		Keywords:     []string{"availability", "available", "sold out", "move in", "move-in", "start date", "book now"},
	},
	{
		Name:         BucketLocation,
		ShareDivisor: 8,
		Keywords:     []string{"location", "address", "postcode", "city centre", "campus", "distance", "minutes walk", "transport"},
	},
	{
		Name:         BucketAmenities,
		ShareDivisor: 10,
		Keywords:     []string{"amenities", "facilities", "wifi", "gym", "laundry", "cinema", "study", "common room", "bills included"},
	},
	{
		Name:         BucketDescription,
		ShareDivisor: 10,
		Keywords:     []string{"about", "overview", "welcome", "lifestyle", "experience", "community"},
	},
	{
		Name:         BucketPolicies,
		ShareDivisor: 12,
		Keywords:     []string{"policy", "policies", "rules", "cancellation", "guarantor", "no smoking", "pets", "terms and conditions"},
	},
	{
		Name:         BucketSafety,
		ShareDivisor: 12,
		Keywords:     []string{"safety", "security", "cctv", "secure entry", "fob", "24/7", "fire", "emergency"},
	},
	{
		Name:         BucketContact,
		ShareDivisor: 15,
		Keywords:     []string{"contact", "phone", "email", "enquiry", "enquire", "get in touch", "opening hours"},
	},
	{
		Name:         BucketGeneral,
		ShareDivisor: 15,
		Keywords:     nil,
	},
}

// ClassifyFragment assigns text to the highest-priority bucket whose keyword
// set it matches; scoring ties break toward the higher-priority bucket.
func ClassifyFragment(text string) string {
	lower := strings.ToLower(text)
	best := BucketGeneral
	bestHits := 0
	for _, spec := range bucketSpecs {
		if len(spec.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = spec.Name
			bestHits = hits
		}
	}
	return best
}

// bucketBudget returns a bucket's character allocation out of maxChars.
func bucketBudget(name string, maxChars int) int {
	for _, spec := range bucketSpecs {
		if spec.Name == name {
			return maxChars / spec.ShareDivisor
		}
	}
	return maxChars / 15
}
