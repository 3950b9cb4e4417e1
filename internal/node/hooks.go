package node

import (
	"fmt"
	"strings"

	"github.com/roomsage/onboarder/internal/onboarding"
)

// applyHooks runs the category-specific post-processing over a decoded
// payload: deterministic IDs, unit normalization, derived prices, and
// deduplication. Hooks mutate the payload in place.
func applyHooks(category onboarding.Category, payload *onboarding.NodePayload, hints onboarding.ExtractionHints) {
	switch category {
	case onboarding.CategoryBasicInfo:
		if payload.BasicInfo != nil {
			hookBasicInfo(payload.BasicInfo)
		}
	case onboarding.CategoryDescription:
		if payload.Description != nil {
			hookDescription(payload.Description)
		}
	case onboarding.CategoryConfiguration:
		if payload.Configuration != nil {
			hookConfigurations(payload.Configuration)
		}
	case onboarding.CategoryTenancy:
		if payload.Tenancy != nil {
			hookTenancies(payload.Tenancy, hints)
		}
	}
}

func hookBasicInfo(p *onboarding.BasicInfoPayload) {
	p.Name = strings.TrimSpace(p.Name)
	p.PropertyType = strings.TrimSpace(p.PropertyType)
	p.Features = dedupeList(p.Features)
	p.PropertyRules = dedupeList(p.PropertyRules)
	p.SafetyAndSecurity = dedupeList(p.SafetyAndSecurity)
}

func hookDescription(p *onboarding.DescriptionPayload) {
	p.Summary = strings.TrimSpace(p.Summary)
	p.FullDescription = strings.TrimSpace(p.FullDescription)
	p.Highlights = dedupeList(p.Highlights)
}

// hookConfigurations assigns deterministic IDs and orders price bounds.
func hookConfigurations(p *onboarding.ConfigurationPayload) {
	for i := range p.Configurations {
		cfg := &p.Configurations[i]
		cfg.Name = strings.TrimSpace(cfg.Name)
		if cfg.ConfigurationID == "" {
			cfg.ConfigurationID = onboarding.ConfigurationSlug(cfg.Name, cfg.Area, cfg.Occupancy)
		}
		if cfg.PriceMin.Known && cfg.PriceMax.Known && cfg.PriceMin.Amount > cfg.PriceMax.Amount {
			cfg.PriceMin, cfg.PriceMax = cfg.PriceMax, cfg.PriceMin
		}
		if cfg.PriceMin.Known && !cfg.PriceMax.Known {
			cfg.PriceMax = cfg.PriceMin
		}
	}
}

// hookTenancies normalizes durations to weeks, derives the missing one of
// per-week/total price, links options to known configurations by normalized
// name, and drops duplicate (duration, price) rows.
func hookTenancies(p *onboarding.TenancyPayload, hints onboarding.ExtractionHints) {
	idByName := make(map[string]string, len(hints.ConfigurationNames))
	for i, name := range hints.ConfigurationNames {
		if i < len(hints.ConfigurationIDs) {
			idByName[onboarding.NormalizeName(name)] = hints.ConfigurationIDs[i]
		}
	}

	seen := make(map[string]struct{}, len(p.Tenancies))
	kept := p.Tenancies[:0]
	for _, opt := range p.Tenancies {
		opt.ConfigurationName = strings.TrimSpace(opt.ConfigurationName)
		if opt.ConfigurationID == "" {
			opt.ConfigurationID = idByName[onboarding.NormalizeName(opt.ConfigurationName)]
		}
		derivePrices(&opt)

		key := tenancyKey(opt)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, opt)
	}
	p.Tenancies = kept
}

// derivePrices fills whichever of per-week and total is missing when the
// duration is known.
func derivePrices(opt *onboarding.TenancyOption) {
	if !opt.Duration.Known || opt.Duration.Weeks <= 0 {
		return
	}
	switch {
	case opt.PricePerWeek.Known && !opt.PriceTotal.Known:
		opt.PriceTotal = onboarding.Money{
			Amount:   roundPence(opt.PricePerWeek.Amount * opt.Duration.Weeks),
			Currency: opt.PricePerWeek.Currency,
			Period:   onboarding.PriceTotal,
			Known:    true,
		}
	case opt.PriceTotal.Known && !opt.PricePerWeek.Known:
		opt.PricePerWeek = onboarding.Money{
			Amount:   roundPence(opt.PriceTotal.Amount / opt.Duration.Weeks),
			Currency: opt.PriceTotal.Currency,
			Period:   onboarding.PricePerWeek,
			Known:    true,
		}
	}
}

// tenancyKey identifies a tenancy row for deduplication: same room, same
// duration, same weekly price means the same offer.
func tenancyKey(opt onboarding.TenancyOption) string {
	name := opt.ConfigurationID
	if name == "" {
		name = onboarding.NormalizeName(opt.ConfigurationName)
	}
	return fmt.Sprintf("%s|%.2f|%.2f", name, opt.Duration.Weeks, opt.PricePerWeek.Amount)
}

func dedupeList(in onboarding.StringList) onboarding.StringList {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, item := range in {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func roundPence(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
