package extractor

import "github.com/roomsage/onboarder/internal/onboarding"

// Schema declares one category's output contract: the JSON shape the model
// must produce and the fields that count toward completeness.
type Schema struct {
	Category       onboarding.Category
	Description    string
	JSONTemplate   string
	RequiredFields []string
	Rules          []string
}

// SchemaFor returns the extraction schema for a category.
func SchemaFor(category onboarding.Category) Schema {
	switch category {
	case onboarding.CategoryBasicInfo:
		return Schema{
			Category:    category,
			Description: "core property facts: identity, location, amenities, rules, safety",
			JSONTemplate: `{
  "name": "",
  "property_type": "",
  "location": {"address": "", "city": "", "postcode": "", "country": ""},
  "features": [],
  "property_rules": [],
  "safety_and_security": [],
  "contact_email": "",
  "contact_phone": ""
}`,
			RequiredFields: []string{"name", "property_type", "location", "features"},
			Rules: []string{
				"Use only facts present in the supplied content.",
				"Leave a field empty rather than guessing.",
				"features, property_rules and safety_and_security are arrays of short phrases.",
			},
		}
	case onboarding.CategoryDescription:
		return Schema{
			Category:    category,
			Description: "marketing copy: summary, full description, highlights",
			JSONTemplate: `{
  "summary": "",
  "full_description": "",
  "highlights": []
}`,
			RequiredFields: []string{"summary", "full_description"},
			Rules: []string{
				"summary is at most three sentences.",
				"full_description preserves the property's own wording where possible.",
			},
		}
	case onboarding.CategoryConfiguration:
		return Schema{
			Category:    category,
			Description: "room/unit types with size, occupancy and price range",
			JSONTemplate: `{
  "configurations": [
    {
      "name": "",
      "room_type": "",
      "area": "",
      "occupancy": "",
      "bathroom": "",
      "kitchen": "",
      "price_min": "",
      "price_max": "",
      "features": []
    }
  ]
}`,
			RequiredFields: []string{"configurations"},
			Rules: []string{
				"One entry per distinct room or unit type.",
				"Prices may be quoted as strings exactly as the page shows them.",
				"Do not merge distinct room types even when similarly named.",
			},
		}
	default: // tenancy
		return Schema{
			Category:    category,
			Description: "priced contract terms per room type",
			JSONTemplate: `{
  "tenancies": [
    {
      "configuration_name": "",
      "duration": "",
      "price_per_week": "",
      "price_total": "",
      "start_date": "",
      "end_date": "",
      "availability": ""
    }
  ]
}`,
			RequiredFields: []string{"tenancies"},
			Rules: []string{
				"One entry per (room type, duration) combination.",
				"duration keeps the site's own wording, e.g. \"44 weeks\" or \"full year\".",
				"configuration_name must echo the room type name the page uses.",
			},
		}
	}
}

// RequiredFieldCount reports how many required fields a category declares;
// the node runner uses it to turn populated-field counts into completeness.
func RequiredFieldCount(category onboarding.Category) int {
	return len(SchemaFor(category).RequiredFields)
}
