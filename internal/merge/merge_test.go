package merge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roomsage/onboarder/internal/onboarding"
)

func nodesFixture() map[onboarding.Category]onboarding.NodeRun {
	return map[onboarding.Category]onboarding.NodeRun{
		onboarding.CategoryBasicInfo: {
			Category:     onboarding.CategoryBasicInfo,
			Status:       onboarding.NodeStatusCompleted,
			Completeness: 1,
			Relevance:    0.9,
			Output: &onboarding.NodePayload{BasicInfo: &onboarding.BasicInfoPayload{
				Name:         "Lumis House",
				PropertyType: "pbsa",
				Location:     onboarding.Location{City: "Leeds", Postcode: "LS1 4AP"},
				Features:     onboarding.StringList{"Gym", "WiFi", "gym"},
				ContactEmail: "hello@lumishouse.example",
			}},
		},
		onboarding.CategoryDescription: {
			Category:     onboarding.CategoryDescription,
			Status:       onboarding.NodeStatusCompleted,
			Completeness: 1,
			Relevance:    0.8,
			Output: &onboarding.NodePayload{Description: &onboarding.DescriptionPayload{
				Summary: "Modern studios in central Leeds",
			}},
		},
		onboarding.CategoryConfiguration: {
			Category:     onboarding.CategoryConfiguration,
			Status:       onboarding.NodeStatusCompleted,
			Completeness: 1,
			Relevance:    0.7,
			Output: &onboarding.NodePayload{Configuration: &onboarding.ConfigurationPayload{
				Configurations: []onboarding.Configuration{
					{
						ConfigurationID: "cfg-studio-plus",
						Name:            "Studio Plus",
						PriceMin:        onboarding.Money{Amount: 220, Currency: "GBP", Known: true},
						PriceMax:        onboarding.Money{Amount: 220, Currency: "GBP", Known: true},
					},
					{
						ConfigurationID: "cfg-classic-ensuite",
						Name:            "Classic Ensuite",
						PriceMin:        onboarding.Money{Amount: 180, Currency: "GBP", Known: true},
					},
				},
			}},
		},
		onboarding.CategoryTenancy: {
			Category:     onboarding.CategoryTenancy,
			Status:       onboarding.NodeStatusCompleted,
			Completeness: 1,
			Relevance:    0.6,
			Output: &onboarding.NodePayload{Tenancy: &onboarding.TenancyPayload{
				Tenancies: []onboarding.TenancyOption{
					{
						ConfigurationID: "cfg-studio-plus",
						Duration:        onboarding.Stay{Weeks: 51, Known: true},
						PricePerWeek:    onboarding.Money{Amount: 210, Currency: "GBP", Known: true},
					},
					{
						ConfigurationName: "studio plus",
						Duration:          onboarding.Stay{Weeks: 44, Known: true},
						PricePerWeek:      onboarding.Money{Amount: 215, Currency: "GBP", Known: true},
					},
					{
						ConfigurationName: "Penthouse Suite",
						Duration:          onboarding.Stay{Weeks: 51, Known: true},
						PricePerWeek:      onboarding.Money{Amount: 400, Currency: "GBP", Known: true},
					},
				},
			}},
		},
	}
}

func TestRecordJoinsAndSorts(t *testing.T) {
	record := Record("https://lumishouse.example", nodesFixture())

	require.Equal(t, "Lumis House", record.Name)
	require.Equal(t, []string{"Gym", "WiFi"}, record.Features)
	require.Equal(t, "Modern studios in central Leeds", record.Description.Summary)

	require.Len(t, record.Configurations, 2)
	// Sorted by normalized name: classic ensuite before studio plus.
	require.Equal(t, "Classic Ensuite", record.Configurations[0].Name)
	require.Equal(t, "Studio Plus", record.Configurations[1].Name)

	studio := record.Configurations[1]
	require.Len(t, studio.Tenancies, 2)
	// Tenancies sorted by duration: 44 weeks before 51.
	require.InDelta(t, 44, studio.Tenancies[0].Duration.Weeks, 0.001)
	require.InDelta(t, 51, studio.Tenancies[1].Duration.Weeks, 0.001)
	// Name-joined option inherits the configuration id.
	require.Equal(t, "cfg-studio-plus", studio.Tenancies[0].ConfigurationID)
	require.Equal(t, sourceTenancy, studio.Tenancies[0].Source)

	require.Len(t, record.OrphanTenancies, 1)
	require.Equal(t, "Penthouse Suite", record.OrphanTenancies[0].ConfigurationName)
}

func TestRecordRecomputesPricesAndRecordsConflicts(t *testing.T) {
	record := Record("https://lumishouse.example", nodesFixture())

	studio := record.Configurations[1]
	// Tenancy-derived bounds replace the configuration node's 220.
	require.InDelta(t, 210, studio.PriceMin.Amount, 0.001)
	require.InDelta(t, 215, studio.PriceMax.Amount, 0.001)

	require.Len(t, record.Conflicts, 2)
	require.Equal(t, "configurations.cfg-studio-plus.price_max", record.Conflicts[0].Path)
	require.Equal(t, "configurations.cfg-studio-plus.price_min", record.Conflicts[1].Path)
	require.Equal(t, sourceTenancy, record.Conflicts[1].KeptSource)
	require.Equal(t, sourceConfiguration, record.Conflicts[1].DroppedSource)
}

func TestRecordIdempotent(t *testing.T) {
	first, err := json.Marshal(Record("https://lumishouse.example", nodesFixture()))
	require.NoError(t, err)
	second, err := json.Marshal(Record("https://lumishouse.example", nodesFixture()))
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestRecordWithMissingNodes(t *testing.T) {
	nodes := nodesFixture()
	delete(nodes, onboarding.CategoryConfiguration)

	record := Record("https://lumishouse.example", nodes)
	require.Empty(t, record.Configurations)
	// Every tenancy option orphans when no configurations exist.
	require.Len(t, record.OrphanTenancies, 3)
	require.Equal(t, "Lumis House", record.Name)
}

func TestScoreWeighting(t *testing.T) {
	nodes := nodesFixture()
	record := Record("https://lumishouse.example", nodes)
	report := Score(record, nodes)

	require.InDelta(t, 1.0, report.Completeness, 0.001)
	require.InDelta(t, 1.0, report.SchemaValidity, 0.001)
	require.InDelta(t, 0.75, report.ContentRelevance, 0.001)
	// One of three tenancy options orphaned: link rate 2/3, parse rate 1.
	require.InDelta(t, 0.8333, report.Consistency, 0.01)
	require.Greater(t, report.Overall, 0.9)
	require.LessOrEqual(t, report.Overall, 1.0)
}

func TestScoreDegradedRun(t *testing.T) {
	nodes := nodesFixture()
	delete(nodes, onboarding.CategoryConfiguration)
	record := Record("https://lumishouse.example", nodes)
	full := Score(Record("https://lumishouse.example", nodesFixture()), nodesFixture())
	degraded := Score(record, nodes)

	require.Less(t, degraded.Consistency, full.Consistency)
	require.InDelta(t, 0.75, degraded.SchemaValidity, 0.001)
	require.Less(t, degraded.Overall, full.Overall)
}

func TestScoreEmptyJob(t *testing.T) {
	report := Score(onboarding.MergedRecord{}, map[onboarding.Category]onboarding.NodeRun{})
	require.Zero(t, report.Completeness)
	require.Zero(t, report.SchemaValidity)
	require.Zero(t, report.ContentRelevance)
	// Nothing to parse and nothing to link counts as consistent.
	require.InDelta(t, 1.0, report.Consistency, 0.001)
	require.InDelta(t, 0.3, report.Overall, 0.001)
}
