package extractor

import (
	"fmt"
	"strings"

	"github.com/roomsage/onboarder/internal/onboarding"
)

const systemPrompt = `You are a meticulous data-extraction engine for student
accommodation listings. You read page content and emit exactly one JSON
object matching the requested template. You never invent values, never add
keys, and never wrap the JSON in commentary.`

// BuildPrompt renders the user prompt for one extraction call. For the
// tenancy category the configuration hints are injected so the model aligns
// tenancy options to the already-extracted room types by name.
func BuildPrompt(schema Schema, contextText string, hints onboarding.ExtractionHints) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract %s from the page content below.\n\n", schema.Description)

	b.WriteString("Respond with one JSON object in exactly this shape:\n")
	b.WriteString(schema.JSONTemplate)
	b.WriteString("\n\nRules:\n")
	for _, rule := range schema.Rules {
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteString("\n")
	}

	if len(hints.ConfigurationNames) > 0 {
		b.WriteString("\nKnown room configurations for this property:\n")
		for i, name := range hints.ConfigurationNames {
			id := ""
			if i < len(hints.ConfigurationIDs) {
				id = hints.ConfigurationIDs[i]
			}
			if id != "" {
				fmt.Fprintf(&b, "- %s (configuration_id: %s)\n", name, id)
			} else {
				fmt.Fprintf(&b, "- %s\n", name)
			}
		}
		b.WriteString("Match each tenancy to one of these by configuration_name, and carry its configuration_id when given.\n")
	}

	b.WriteString("\nPage content:\n")
	b.WriteString(contextText)
	return b.String()
}
