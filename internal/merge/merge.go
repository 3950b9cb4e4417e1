package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roomsage/onboarder/internal/onboarding"
)

// Source annotations recorded on joined tenancy options and conflicts.
const (
	sourceConfiguration = "configuration"
	sourceTenancy       = "tenancy"
)

// Record merges the node outputs of one pipeline run into the canonical
// record. Missing or failed nodes contribute empty sections; tenancy options
// join to configurations by configuration id first, normalized name second,
// and land in OrphanTenancies when neither matches.
func Record(sourceURL string, nodes map[onboarding.Category]onboarding.NodeRun) onboarding.MergedRecord {
	record := onboarding.MergedRecord{SourceURL: sourceURL}

	if p := basicInfoOf(nodes); p != nil {
		record.Name = p.Name
		record.PropertyType = p.PropertyType
		record.Location = p.Location
		record.Features = sortedSet(p.Features)
		record.PropertyRules = sortedSet(p.PropertyRules)
		record.SafetyAndSecurity = sortedSet(p.SafetyAndSecurity)
		record.ContactEmail = p.ContactEmail
		record.ContactPhone = p.ContactPhone
	}
	if p := descriptionOf(nodes); p != nil {
		record.Description = *p
	}

	configs := configurationsOf(nodes)
	tenancies := tenanciesOf(nodes)
	record.Configurations, record.OrphanTenancies, record.Conflicts = joinTenancies(configs, tenancies)
	return record
}

// joinTenancies attaches tenancy options to their configurations and
// recomputes each configuration's price bounds from the joined options. When
// a configuration and its tenancy options disagree on price, the tenancy
// value wins and the disagreement is recorded as a conflict.
func joinTenancies(
	configs []onboarding.Configuration,
	tenancies []onboarding.TenancyOption,
) ([]onboarding.MergedConfiguration, []onboarding.TenancyOption, []onboarding.ValueConflict) {
	merged := make([]onboarding.MergedConfiguration, len(configs))
	byID := make(map[string]int, len(configs))
	byName := make(map[string]int, len(configs))
	for i, cfg := range configs {
		merged[i] = onboarding.MergedConfiguration{Configuration: cfg}
		if cfg.ConfigurationID != "" {
			byID[cfg.ConfigurationID] = i
		}
		if key := onboarding.NormalizeName(cfg.Name); key != "" {
			if _, dup := byName[key]; !dup {
				byName[key] = i
			}
		}
	}

	var orphans []onboarding.TenancyOption
	for _, opt := range tenancies {
		opt.Source = sourceTenancy
		idx, ok := byID[opt.ConfigurationID]
		if !ok {
			idx, ok = byName[onboarding.NormalizeName(opt.ConfigurationName)]
		}
		if !ok {
			orphans = append(orphans, opt)
			continue
		}
		opt.ConfigurationID = merged[idx].ConfigurationID
		merged[idx].Tenancies = append(merged[idx].Tenancies, opt)
	}

	var conflicts []onboarding.ValueConflict
	for i := range merged {
		dedupeTenancies(&merged[i])
		sortTenancies(merged[i].Tenancies)
		conflicts = append(conflicts, reconcilePrices(&merged[i])...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := onboarding.NormalizeName(merged[i].Name), onboarding.NormalizeName(merged[j].Name)
		if a != b {
			return a < b
		}
		return merged[i].ConfigurationID < merged[j].ConfigurationID
	})
	sortTenancies(orphans)
	sort.SliceStable(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })
	return merged, orphans, conflicts
}

// reconcilePrices recomputes a configuration's min/max weekly price from its
// joined tenancy options and records any disagreement with the values the
// configuration node reported.
func reconcilePrices(cfg *onboarding.MergedConfiguration) []onboarding.ValueConflict {
	var low, high onboarding.Money
	for _, opt := range cfg.Tenancies {
		if !opt.PricePerWeek.Known {
			continue
		}
		if !low.Known || opt.PricePerWeek.Amount < low.Amount {
			low = opt.PricePerWeek
		}
		if !high.Known || opt.PricePerWeek.Amount > high.Amount {
			high = opt.PricePerWeek
		}
	}
	if !low.Known {
		return nil
	}

	var conflicts []onboarding.ValueConflict
	if cfg.PriceMin.Known && !sameAmount(cfg.PriceMin, low) {
		conflicts = append(conflicts, priceConflict(cfg.ConfigurationID, "price_min", low, cfg.PriceMin))
	}
	if cfg.PriceMax.Known && !sameAmount(cfg.PriceMax, high) {
		conflicts = append(conflicts, priceConflict(cfg.ConfigurationID, "price_max", high, cfg.PriceMax))
	}
	cfg.PriceMin = low
	cfg.PriceMax = high
	return conflicts
}

func priceConflict(configID, field string, kept, dropped onboarding.Money) onboarding.ValueConflict {
	return onboarding.ValueConflict{
		Path:          fmt.Sprintf("configurations.%s.%s", configID, field),
		Kept:          kept.String(),
		KeptSource:    sourceTenancy,
		Dropped:       dropped.String(),
		DroppedSource: sourceConfiguration,
	}
}

func sameAmount(a, b onboarding.Money) bool {
	diff := a.Amount - b.Amount
	return diff > -0.005 && diff < 0.005
}

func dedupeTenancies(cfg *onboarding.MergedConfiguration) {
	seen := make(map[string]struct{}, len(cfg.Tenancies))
	kept := cfg.Tenancies[:0]
	for _, opt := range cfg.Tenancies {
		key := fmt.Sprintf("%.2f|%.2f|%.2f", opt.Duration.Weeks, opt.PricePerWeek.Amount, opt.PriceTotal.Amount)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, opt)
	}
	cfg.Tenancies = kept
}

func sortTenancies(opts []onboarding.TenancyOption) {
	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].Duration.Weeks != opts[j].Duration.Weeks {
			return opts[i].Duration.Weeks < opts[j].Duration.Weeks
		}
		return opts[i].PricePerWeek.Amount < opts[j].PricePerWeek.Amount
	})
}

// sortedSet lowercase-dedupes and sorts a list; the first spelling seen wins.
func sortedSet(in onboarding.StringList) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
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
	sort.Strings(out)
	return out
}

func basicInfoOf(nodes map[onboarding.Category]onboarding.NodeRun) *onboarding.BasicInfoPayload {
	if run, ok := nodes[onboarding.CategoryBasicInfo]; ok && run.Output != nil {
		return run.Output.BasicInfo
	}
	return nil
}

func descriptionOf(nodes map[onboarding.Category]onboarding.NodeRun) *onboarding.DescriptionPayload {
	if run, ok := nodes[onboarding.CategoryDescription]; ok && run.Output != nil {
		return run.Output.Description
	}
	return nil
}

func configurationsOf(nodes map[onboarding.Category]onboarding.NodeRun) []onboarding.Configuration {
	if run, ok := nodes[onboarding.CategoryConfiguration]; ok && run.Output != nil && run.Output.Configuration != nil {
		return run.Output.Configuration.Configurations
	}
	return nil
}

func tenanciesOf(nodes map[onboarding.Category]onboarding.NodeRun) []onboarding.TenancyOption {
	if run, ok := nodes[onboarding.CategoryTenancy]; ok && run.Output != nil && run.Output.Tenancy != nil {
		return run.Output.Tenancy.Tenancies
	}
	return nil
}
