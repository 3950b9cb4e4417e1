package merge

import (
	"sort"

	"github.com/roomsage/onboarder/internal/onboarding"
)

// Compare diffs two merged records. Configurations join across properties by
// normalized name; the report carries one row per matched pair plus the
// names present on only one side.
func Compare(source, competitor onboarding.MergedRecord) onboarding.ComparisonReport {
	compByName := make(map[string]onboarding.MergedConfiguration, len(competitor.Configurations))
	for _, cfg := range competitor.Configurations {
		key := onboarding.NormalizeName(cfg.Name)
		if _, dup := compByName[key]; key != "" && !dup {
			compByName[key] = cfg
		}
	}

	report := onboarding.ComparisonReport{
		AmenityOverlapPct: jaccardPct(source.Features, competitor.Features),
	}
	matchedComp := make(map[string]bool, len(compByName))
	var durationSum float64
	durationRows := 0

	for _, src := range source.Configurations {
		key := onboarding.NormalizeName(src.Name)
		comp, ok := compByName[key]
		if !ok {
			report.OnlyInSource = append(report.OnlyInSource, src.Name)
			continue
		}
		matchedComp[key] = true

		row := onboarding.ComparisonRow{
			Name:                src.Name,
			SourcePriceMin:      src.PriceMin,
			CompetitorPriceMin:  comp.PriceMin,
			SourceTenancies:     len(src.Tenancies),
			CompetitorTenancies: len(comp.Tenancies),
			DurationMatchRatio:  durationOverlap(src.Tenancies, comp.Tenancies),
		}
		if src.PriceMin.Known && comp.PriceMin.Known && comp.PriceMin.Amount > 0 {
			row.PriceComparable = true
			row.PriceDeviationPct = round2(100 * (src.PriceMin.Amount - comp.PriceMin.Amount) / comp.PriceMin.Amount)
		}
		report.Rows = append(report.Rows, row)
		durationSum += row.DurationMatchRatio
		durationRows++
	}

	for _, cfg := range competitor.Configurations {
		if !matchedComp[onboarding.NormalizeName(cfg.Name)] {
			report.OnlyInCompetitor = append(report.OnlyInCompetitor, cfg.Name)
		}
	}

	if wider := maxInt(len(source.Configurations), len(competitor.Configurations)); wider > 0 {
		report.ConfigurationMatchRate = float64(len(report.Rows)) / float64(wider)
	}
	if durationRows > 0 {
		report.DurationMatchRatio = durationSum / float64(durationRows)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		return onboarding.NormalizeName(report.Rows[i].Name) < onboarding.NormalizeName(report.Rows[j].Name)
	})
	sort.Strings(report.OnlyInSource)
	sort.Strings(report.OnlyInCompetitor)
	return report
}

// durationOverlap is the Jaccard overlap of the whole-week duration sets
// offered by two configurations.
func durationOverlap(a, b []onboarding.TenancyOption) float64 {
	setA, setB := weekSet(a), weekSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	shared := 0
	for w := range setA {
		if setB[w] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

func weekSet(opts []onboarding.TenancyOption) map[int]bool {
	set := make(map[int]bool, len(opts))
	for _, opt := range opts {
		if opt.Duration.Known {
			set[int(opt.Duration.Weeks+0.5)] = true
		}
	}
	return set
}

func jaccardPct(a, b []string) float64 {
	setA, setB := nameSet(a), nameSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	shared := 0
	for item := range setA {
		if setB[item] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return round2(100 * float64(shared) / float64(union))
}

func nameSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		if key := onboarding.NormalizeName(item); key != "" {
			set[key] = true
		}
	}
	return set
}

func round2(v float64) float64 {
	if v < 0 {
		return -round2(-v)
	}
	return float64(int(v*100+0.5)) / 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
