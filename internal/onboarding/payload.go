package onboarding

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PricePeriod tags how a quoted price is denominated.
type PricePeriod string

// Price periods inferred from raw price text.
const (
	PricePerWeek  PricePeriod = "per_week"
	PricePerMonth PricePeriod = "per_month"
	PriceTotal    PricePeriod = "total"
)

// Money is the tagged form of a price field. Sources report prices either as
// bare strings ("£120 per week"), numbers, or objects; UnmarshalJSON resolves
// all three shapes into this one form so nothing downstream probes types.
type Money struct {
	Raw      string      `json:"raw,omitempty"`
	Amount   float64     `json:"amount,omitempty"`
	Currency string      `json:"currency,omitempty"`
	Period   PricePeriod `json:"period,omitempty"`
	Known    bool        `json:"known"`
}

// IsZero reports whether no value was extracted at all.
func (m Money) IsZero() bool {
	return !m.Known && m.Raw == ""
}

// String renders the money for messages and CSV cells.
func (m Money) String() string {
	if !m.Known {
		return m.Raw
	}
	out := fmt.Sprintf("%s%.2f", currencySymbol(m.Currency), m.Amount)
	switch m.Period {
	case PricePerWeek:
		out += "/week"
	case PricePerMonth:
		out += "/month"
	}
	return out
}

// UnmarshalJSON accepts a JSON number, a price string, or an object with
// amount/currency/period keys.
func (m *Money) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*m = Money{}
		return nil
	}
	if len(trimmed) > 0 && (trimmed[0] == '-' || trimmed[0] == '.' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		amount, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return fmt.Errorf("parse money number: %w", err)
		}
		*m = Money{Raw: trimmed, Amount: amount, Known: true}
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse money string: %w", err)
		}
		*m = ParseMoney(raw)
		return nil
	}
	type moneyObject struct {
		Raw      string      `json:"raw"`
		Amount   *float64    `json:"amount"`
		Currency string      `json:"currency"`
		Period   PricePeriod `json:"period"`
		Value    *float64    `json:"value"`
	}
	var obj moneyObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parse money object: %w", err)
	}
	amount := obj.Amount
	if amount == nil {
		amount = obj.Value
	}
	if amount == nil {
		if obj.Raw != "" {
			*m = ParseMoney(obj.Raw)
			return nil
		}
		*m = Money{}
		return nil
	}
	*m = Money{
		Raw:      obj.Raw,
		Amount:   *amount,
		Currency: normalizeCurrency(obj.Currency),
		Period:   obj.Period,
		Known:    true,
	}
	return nil
}

var moneyAmountPattern = regexp.MustCompile(`([0-9][0-9,]*(?:\.[0-9]+)?)`)

// ParseMoney extracts amount, currency, and period from free-form price text.
// Unparseable text is preserved verbatim with Known=false.
func ParseMoney(raw string) Money {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Money{}
	}
	m := Money{Raw: raw}
	match := moneyAmountPattern.FindString(raw)
	if match == "" {
		return m
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return m
	}
	m.Amount = amount
	m.Known = true
	switch {
	case strings.Contains(raw, "£"), strings.Contains(strings.ToUpper(raw), "GBP"):
		m.Currency = "GBP"
	case strings.Contains(raw, "€"), strings.Contains(strings.ToUpper(raw), "EUR"):
		m.Currency = "EUR"
	case strings.Contains(raw, "$"), strings.Contains(strings.ToUpper(raw), "USD"):
		m.Currency = "USD"
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "week"), strings.Contains(lower, "/w"), strings.Contains(lower, "pw"):
		m.Period = PricePerWeek
	case strings.Contains(lower, "month"), strings.Contains(lower, "pcm"), strings.Contains(lower, "/m"):
		m.Period = PricePerMonth
	case strings.Contains(lower, "total"):
		m.Period = PriceTotal
	}
	return m
}

func normalizeCurrency(cur string) string {
	switch strings.TrimSpace(cur) {
	case "£":
		return "GBP"
	case "€":
		return "EUR"
	case "$":
		return "USD"
	default:
		return strings.ToUpper(strings.TrimSpace(cur))
	}
}

func currencySymbol(code string) string {
	switch code {
	case "GBP":
		return "£"
	case "EUR":
		return "€"
	case "USD":
		return "$"
	default:
		return ""
	}
}

// WeeksPerMonth converts between the two tenancy duration denominations.
const WeeksPerMonth = 4.33

// Stay is the tagged form of a tenancy duration. Sources quote durations in
// weeks, months, semesters, or academic years; ParseStay resolves them all to
// weeks (and derived months) once, at decode time.
type Stay struct {
	Raw    string  `json:"raw,omitempty"`
	Weeks  float64 `json:"weeks,omitempty"`
	Months float64 `json:"months,omitempty"`
	Known  bool    `json:"known"`
}

// UnmarshalJSON accepts a JSON number (weeks), a duration string, or an
// object with raw/weeks/months keys.
func (s *Stay) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*s = Stay{}
		return nil
	}
	if len(trimmed) > 0 && (trimmed[0] == '.' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		weeks, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return fmt.Errorf("parse stay number: %w", err)
		}
		*s = Stay{Raw: trimmed, Weeks: weeks, Months: round2(weeks / WeeksPerMonth), Known: true}
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse stay string: %w", err)
		}
		*s = ParseStay(raw)
		return nil
	}
	type stayObject struct {
		Raw    string   `json:"raw"`
		Weeks  *float64 `json:"weeks"`
		Months *float64 `json:"months"`
	}
	var obj stayObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parse stay object: %w", err)
	}
	switch {
	case obj.Weeks != nil:
		*s = Stay{Raw: obj.Raw, Weeks: *obj.Weeks, Months: round2(*obj.Weeks / WeeksPerMonth), Known: true}
	case obj.Months != nil:
		*s = Stay{Raw: obj.Raw, Weeks: round2(*obj.Months * WeeksPerMonth), Months: *obj.Months, Known: true}
	case obj.Raw != "":
		*s = ParseStay(obj.Raw)
	default:
		*s = Stay{}
	}
	return nil
}

var stayNumberPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)`)

// ParseStay converts free-form duration text to weeks. A semester is treated
// as 20 weeks and an academic year as 52.
func ParseStay(raw string) Stay {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Stay{}
	}
	s := Stay{Raw: raw}
	lower := strings.ToLower(raw)
	num := 0.0
	if match := stayNumberPattern.FindString(lower); match != "" {
		num, _ = strconv.ParseFloat(match, 64)
	}
	switch {
	case strings.Contains(lower, "week"):
		if num > 0 {
			s.Weeks = num
		}
	case strings.Contains(lower, "month"):
		if num > 0 {
			s.Weeks = round2(num * WeeksPerMonth)
		}
	case strings.Contains(lower, "semester"), strings.Contains(lower, "term"):
		s.Weeks = 20
	case strings.Contains(lower, "year"), strings.Contains(lower, "annual"):
		s.Weeks = 52
	default:
		if num > 0 {
			s.Weeks = num
		}
	}
	if s.Weeks > 0 {
		s.Months = round2(s.Weeks / WeeksPerMonth)
		s.Known = true
	}
	return s
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// StringList accepts either a single JSON string or an array of strings.
type StringList []string

// UnmarshalJSON resolves the string-vs-array shape at decode time.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("parse string list: %w", err)
		}
		if strings.TrimSpace(single) == "" {
			*l = nil
			return nil
		}
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("parse string list: %w", err)
	}
	*l = StringList(many)
	return nil
}

// Location groups the address fields reported by the basic info node.
type Location struct {
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// BasicInfoPayload is the structured output of the basic info node.
type BasicInfoPayload struct {
	Name              string     `json:"name,omitempty"`
	PropertyType      string     `json:"property_type,omitempty"`
	Location          Location   `json:"location,omitempty"`
	Features          StringList `json:"features,omitempty"`
	PropertyRules     StringList `json:"property_rules,omitempty"`
	SafetyAndSecurity StringList `json:"safety_and_security,omitempty"`
	ContactEmail      string     `json:"contact_email,omitempty"`
	ContactPhone      string     `json:"contact_phone,omitempty"`
}

// DescriptionPayload is the structured output of the description node.
type DescriptionPayload struct {
	Summary         string     `json:"summary,omitempty"`
	FullDescription string     `json:"full_description,omitempty"`
	Highlights      StringList `json:"highlights,omitempty"`
}

// Configuration is one room/unit type offered by a property.
type Configuration struct {
	ConfigurationID string     `json:"configuration_id,omitempty"`
	Name            string     `json:"name,omitempty"`
	RoomType        string     `json:"room_type,omitempty"`
	Area            string     `json:"area,omitempty"`
	Occupancy       string     `json:"occupancy,omitempty"`
	Bathroom        string     `json:"bathroom,omitempty"`
	Kitchen         string     `json:"kitchen,omitempty"`
	PriceMin        Money      `json:"price_min,omitempty"`
	PriceMax        Money      `json:"price_max,omitempty"`
	Features        StringList `json:"features,omitempty"`
}

// ConfigurationPayload is the structured output of the configuration node.
type ConfigurationPayload struct {
	Configurations []Configuration `json:"configurations"`
}

// TenancyOption is a priced, dated contract term attached to a configuration.
type TenancyOption struct {
	ConfigurationID   string `json:"configuration_id,omitempty"`
	ConfigurationName string `json:"configuration_name,omitempty"`
	Duration          Stay   `json:"duration,omitempty"`
	PricePerWeek      Money  `json:"price_per_week,omitempty"`
	PriceTotal        Money  `json:"price_total,omitempty"`
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
	Availability      string `json:"availability,omitempty"`
	Source            string `json:"source,omitempty"`
}

// TenancyPayload is the structured output of the tenancy node.
type TenancyPayload struct {
	Tenancies []TenancyOption `json:"tenancies"`
}

// NodePayload is the tagged union of the four category outputs; exactly one
// field is non-nil for a given node run.
type NodePayload struct {
	BasicInfo     *BasicInfoPayload     `json:"basic_info,omitempty"`
	Description   *DescriptionPayload   `json:"description,omitempty"`
	Configuration *ConfigurationPayload `json:"configuration,omitempty"`
	Tenancy       *TenancyPayload       `json:"tenancy,omitempty"`
}

// DecodeNodePayload parses a category's raw extraction output into its typed
// payload. All string-vs-object field variants are resolved here, once.
func DecodeNodePayload(category Category, raw json.RawMessage) (*NodePayload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode %s payload: empty output", category)
	}
	payload := &NodePayload{}
	var err error
	switch category {
	case CategoryBasicInfo:
		var p BasicInfoPayload
		err = json.Unmarshal(raw, &p)
		payload.BasicInfo = &p
	case CategoryDescription:
		var p DescriptionPayload
		err = json.Unmarshal(raw, &p)
		payload.Description = &p
	case CategoryConfiguration:
		var p ConfigurationPayload
		err = json.Unmarshal(raw, &p)
		payload.Configuration = &p
	case CategoryTenancy:
		var p TenancyPayload
		err = json.Unmarshal(raw, &p)
		payload.Tenancy = &p
	default:
		return nil, fmt.Errorf("decode payload: unknown category %q", category)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", category, err)
	}
	return payload, nil
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName is the join key for configuration-to-tenancy matching and
// cross-property comparison: lowercased, trimmed, runs of non-alphanumeric
// characters collapsed to single spaces.
func NormalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSpace(nonAlphanumeric.ReplaceAllString(lower, " "))
}

// ConfigurationSlug derives a deterministic configuration ID from the fields
// that identify a room type. Identical inputs always produce the same slug.
func ConfigurationSlug(name, area, occupancy string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{name, area, occupancy} {
		norm := NormalizeName(part)
		if norm == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(norm, " ", "-"))
	}
	if len(parts) == 0 {
		return ""
	}
	return "cfg-" + strings.Join(parts, "-")
}
