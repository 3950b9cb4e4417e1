package onboarding

// ValueConflict records a field reported differently by two nodes. The merge
// keeps one value and annotates the other here for audit.
type ValueConflict struct {
	Path          string `json:"path"`
	Kept          string `json:"kept"`
	KeptSource    string `json:"kept_source"`
	Dropped       string `json:"dropped"`
	DroppedSource string `json:"dropped_source"`
}

// MergedConfiguration is a configuration with its joined tenancy options.
type MergedConfiguration struct {
	Configuration
	Tenancies []TenancyOption `json:"tenancies,omitempty"`
}

// MergedRecord is the canonical projection combining the four node outputs.
// It carries no timestamps so that merging identical inputs is byte-identical.
type MergedRecord struct {
	SourceURL         string                `json:"source_url"`
	Name              string                `json:"name,omitempty"`
	PropertyType      string                `json:"property_type,omitempty"`
	Location          Location              `json:"location"`
	Description       DescriptionPayload    `json:"description"`
	Features          []string              `json:"features,omitempty"`
	PropertyRules     []string              `json:"property_rules,omitempty"`
	SafetyAndSecurity []string              `json:"safety_and_security,omitempty"`
	ContactEmail      string                `json:"contact_email,omitempty"`
	ContactPhone      string                `json:"contact_phone,omitempty"`
	Configurations    []MergedConfiguration `json:"configurations"`
	OrphanTenancies   []TenancyOption       `json:"orphan_tenancies,omitempty"`
	Conflicts         []ValueConflict       `json:"conflicts,omitempty"`
}

// QualityReport breaks the overall quality score into its weighted terms.
// Each term and the overall score lie in [0,1].
type QualityReport struct {
	Completeness     float64 `json:"completeness"`
	Consistency      float64 `json:"consistency"`
	SchemaValidity   float64 `json:"schema_validity"`
	ContentRelevance float64 `json:"content_relevance"`
	Overall          float64 `json:"overall"`
}

// ComparisonRow is one matched configuration pair in a competitor diff.
type ComparisonRow struct {
	Name                string  `json:"name"`
	SourcePriceMin      Money   `json:"source_price_min"`
	CompetitorPriceMin  Money   `json:"competitor_price_min"`
	PriceDeviationPct   float64 `json:"price_deviation_pct"`
	PriceComparable     bool    `json:"price_comparable"`
	DurationMatchRatio  float64 `json:"duration_match_ratio"`
	SourceTenancies     int     `json:"source_tenancies"`
	CompetitorTenancies int     `json:"competitor_tenancies"`
}

// ComparisonReport diffs the merged records of a property and a competitor.
type ComparisonReport struct {
	ConfigurationMatchRate float64         `json:"configuration_match_rate"`
	AmenityOverlapPct      float64         `json:"amenity_overlap_pct"`
	DurationMatchRatio     float64         `json:"duration_match_ratio"`
	Rows                   []ComparisonRow `json:"rows"`
	OnlyInSource           []string        `json:"only_in_source,omitempty"`
	OnlyInCompetitor       []string        `json:"only_in_competitor,omitempty"`
}
