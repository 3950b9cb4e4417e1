package merge

import "github.com/roomsage/onboarder/internal/onboarding"

// Quality score term weights.
const (
	weightCompleteness = 0.4
	weightConsistency  = 0.3
	weightSchema       = 0.2
	weightRelevance    = 0.1
)

// Score grades a merged record against its node runs. Every term and the
// weighted overall lie in [0,1].
func Score(record onboarding.MergedRecord, nodes map[onboarding.Category]onboarding.NodeRun) onboarding.QualityReport {
	report := onboarding.QualityReport{
		Completeness:     completenessTerm(nodes),
		Consistency:      consistencyTerm(record),
		SchemaValidity:   schemaTerm(nodes),
		ContentRelevance: relevanceTerm(nodes),
	}
	report.Overall = clamp01(weightCompleteness*report.Completeness +
		weightConsistency*report.Consistency +
		weightSchema*report.SchemaValidity +
		weightRelevance*report.ContentRelevance)
	return report
}

// completenessTerm averages per-node required-field coverage over all four
// categories; a node that never produced output counts as zero.
func completenessTerm(nodes map[onboarding.Category]onboarding.NodeRun) float64 {
	cats := onboarding.Categories()
	var sum float64
	for _, cat := range cats {
		if run, ok := nodes[cat]; ok {
			sum += clamp01(run.Completeness)
		}
	}
	return sum / float64(len(cats))
}

// consistencyTerm measures how much of the record's numeric data parsed and
// how much of the tenancy data linked to a configuration. Unparsed prices,
// unparsed durations, and orphaned tenancies all pull it down.
func consistencyTerm(record onboarding.MergedRecord) float64 {
	parsed, total := 0, 0
	countMoney := func(m onboarding.Money) {
		if m.IsZero() {
			return
		}
		total++
		if m.Known {
			parsed++
		}
	}
	countStay := func(s onboarding.Stay) {
		if !s.Known && s.Raw == "" {
			return
		}
		total++
		if s.Known {
			parsed++
		}
	}

	linked := 0
	for _, cfg := range record.Configurations {
		countMoney(cfg.PriceMin)
		countMoney(cfg.PriceMax)
		for _, opt := range cfg.Tenancies {
			linked++
			countMoney(opt.PricePerWeek)
			countMoney(opt.PriceTotal)
			countStay(opt.Duration)
		}
	}
	for _, opt := range record.OrphanTenancies {
		countMoney(opt.PricePerWeek)
		countMoney(opt.PriceTotal)
		countStay(opt.Duration)
	}

	parseRate := 1.0
	if total > 0 {
		parseRate = float64(parsed) / float64(total)
	}
	linkRate := 1.0
	if n := linked + len(record.OrphanTenancies); n > 0 {
		linkRate = float64(linked) / float64(n)
	}
	return clamp01(0.5*parseRate + 0.5*linkRate)
}

// schemaTerm is the fraction of category nodes whose output decoded into its
// typed payload.
func schemaTerm(nodes map[onboarding.Category]onboarding.NodeRun) float64 {
	cats := onboarding.Categories()
	valid := 0
	for _, cat := range cats {
		if run, ok := nodes[cat]; ok && run.Output != nil {
			valid++
		}
	}
	return float64(valid) / float64(len(cats))
}

// relevanceTerm averages the crawl-derived content relevance of the nodes
// that produced output.
func relevanceTerm(nodes map[onboarding.Category]onboarding.NodeRun) float64 {
	var sum float64
	n := 0
	for _, cat := range onboarding.Categories() {
		if run, ok := nodes[cat]; ok && run.Output != nil {
			sum += clamp01(run.Relevance)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
