package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roomsage/onboarder/internal/onboarding"
)

func TestBuildPromptContainsSchemaAndContext(t *testing.T) {
	schema := SchemaFor(onboarding.CategoryConfiguration)
	prompt := BuildPrompt(schema, "Studio Plus from £210 per week", onboarding.ExtractionHints{})

	require.Contains(t, prompt, schema.JSONTemplate)
	require.Contains(t, prompt, "Studio Plus from £210 per week")
	for _, rule := range schema.Rules {
		require.Contains(t, prompt, rule)
	}
	require.NotContains(t, prompt, "Known room configurations")
}

func TestBuildPromptInjectsConfigurationHints(t *testing.T) {
	schema := SchemaFor(onboarding.CategoryTenancy)
	hints := onboarding.ExtractionHints{
		ConfigurationNames: []string{"Studio Plus", "Classic Ensuite"},
		ConfigurationIDs:   []string{"cfg-studio-plus", "cfg-classic-ensuite"},
	}
	prompt := BuildPrompt(schema, "page text", hints)

	require.Contains(t, prompt, "Known room configurations")
	require.Contains(t, prompt, "Studio Plus (configuration_id: cfg-studio-plus)")
	require.Contains(t, prompt, "Classic Ensuite (configuration_id: cfg-classic-ensuite)")
}

func TestBuildPromptHintsWithoutIDs(t *testing.T) {
	schema := SchemaFor(onboarding.CategoryTenancy)
	prompt := BuildPrompt(schema, "page text", onboarding.ExtractionHints{
		ConfigurationNames: []string{"Studio Plus"},
	})
	require.Contains(t, prompt, "- Studio Plus\n")
	require.NotContains(t, prompt, "configuration_id: )")
}

func TestSchemaForCoversAllCategories(t *testing.T) {
	for _, cat := range onboarding.Categories() {
		schema := SchemaFor(cat)
		require.Equal(t, cat, schema.Category)
		require.NotEmpty(t, schema.JSONTemplate)
		require.NotEmpty(t, schema.RequiredFields)
		require.Positive(t, RequiredFieldCount(cat))
	}
}

func TestConfidenceForRequiredFieldCoverage(t *testing.T) {
	schema := SchemaFor(onboarding.CategoryBasicInfo)
	full := `{"name": "x", "property_type": "pbsa", "location": {}, "features": ["wifi"]}`
	half := `{"name": "x", "features": []}`
	require.InDelta(t, 1.0, confidenceFor([]byte(full), schema), 0.001)
	require.InDelta(t, 0.5, confidenceFor([]byte(half), schema), 0.001)
	require.InDelta(t, 0.0, confidenceFor([]byte(`{}`), schema), 0.001)
}
