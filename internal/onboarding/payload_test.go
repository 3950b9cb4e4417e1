package onboarding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		amount   float64
		currency string
		period   PricePeriod
		known    bool
	}{
		{name: "pounds per week", raw: "£120 per week", amount: 120, currency: "GBP", period: PricePerWeek, known: true},
		{name: "pcm euros", raw: "€650 pcm", amount: 650, currency: "EUR", period: PricePerMonth, known: true},
		{name: "dollars total", raw: "$9,800 total", amount: 9800, currency: "USD", period: PriceTotal, known: true},
		{name: "bare number", raw: "145.50", amount: 145.5, known: true},
		{name: "pw suffix", raw: "189pw", amount: 189, period: PricePerWeek, known: true},
		{name: "no digits", raw: "contact us", known: false},
		{name: "empty", raw: "", known: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := ParseMoney(tc.raw)
			require.Equal(t, tc.known, m.Known)
			if !tc.known {
				return
			}
			require.InDelta(t, tc.amount, m.Amount, 0.001)
			require.Equal(t, tc.currency, m.Currency)
			require.Equal(t, tc.period, m.Period)
		})
	}
}

func TestMoneyUnmarshalShapes(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		amount float64
		known  bool
	}{
		{name: "number", input: `120.5`, amount: 120.5, known: true},
		{name: "string", input: `"£120 per week"`, amount: 120, known: true},
		{name: "object", input: `{"amount": 130, "currency": "£", "period": "per_week"}`, amount: 130, known: true},
		{name: "object raw only", input: `{"raw": "£99 pw"}`, amount: 99, known: true},
		{name: "null", input: `null`, known: false},
		{name: "empty string", input: `""`, known: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var m Money
			require.NoError(t, json.Unmarshal([]byte(tc.input), &m))
			require.Equal(t, tc.known, m.Known)
			if tc.known {
				require.InDelta(t, tc.amount, m.Amount, 0.001)
			}
		})
	}
}

func TestMoneyObjectCurrencyNormalized(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 130, "currency": "£"}`), &m))
	require.Equal(t, "GBP", m.Currency)
}

func TestParseStay(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		weeks float64
		known bool
	}{
		{name: "weeks", raw: "44 weeks", weeks: 44, known: true},
		{name: "months", raw: "3 months", weeks: 12.99, known: true},
		{name: "semester", raw: "semester stay", weeks: 20, known: true},
		{name: "academic year", raw: "full year", weeks: 52, known: true},
		{name: "bare number", raw: "51", weeks: 51, known: true},
		{name: "unparseable", raw: "flexible", known: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := ParseStay(tc.raw)
			require.Equal(t, tc.known, s.Known)
			if tc.known {
				require.InDelta(t, tc.weeks, s.Weeks, 0.01)
			}
		})
	}
}

func TestStayUnmarshalShapes(t *testing.T) {
	var fromNumber, fromString, fromObject Stay
	require.NoError(t, json.Unmarshal([]byte(`44`), &fromNumber))
	require.NoError(t, json.Unmarshal([]byte(`"44 weeks"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`{"months": 10.15}`), &fromObject))
	require.InDelta(t, 44, fromNumber.Weeks, 0.01)
	require.InDelta(t, 44, fromString.Weeks, 0.01)
	require.InDelta(t, 43.95, fromObject.Weeks, 0.01)
	require.True(t, fromObject.Known)
}

func TestStringListAcceptsBothShapes(t *testing.T) {
	var fromString, fromArray, fromNull StringList
	require.NoError(t, json.Unmarshal([]byte(`"wifi"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`["wifi", "gym"]`), &fromArray))
	require.NoError(t, json.Unmarshal([]byte(`null`), &fromNull))
	require.Equal(t, StringList{"wifi"}, fromString)
	require.Equal(t, StringList{"wifi", "gym"}, fromArray)
	require.Nil(t, fromNull)
}

func TestDecodeNodePayload(t *testing.T) {
	raw := json.RawMessage(`{
		"configurations": [
			{"name": "Studio Plus", "area": "22 sqm", "price_min": "£210 pw", "features": "ensuite"}
		]
	}`)
	payload, err := DecodeNodePayload(CategoryConfiguration, raw)
	require.NoError(t, err)
	require.NotNil(t, payload.Configuration)
	require.Len(t, payload.Configuration.Configurations, 1)
	cfg := payload.Configuration.Configurations[0]
	require.Equal(t, "Studio Plus", cfg.Name)
	require.True(t, cfg.PriceMin.Known)
	require.InDelta(t, 210, cfg.PriceMin.Amount, 0.001)
	require.Equal(t, StringList{"ensuite"}, cfg.Features)
}

func TestDecodeNodePayloadRejectsBadInput(t *testing.T) {
	_, err := DecodeNodePayload(CategoryTenancy, nil)
	require.Error(t, err)
	_, err = DecodeNodePayload(Category("bogus"), json.RawMessage(`{}`))
	require.Error(t, err)
	_, err = DecodeNodePayload(CategoryBasicInfo, json.RawMessage(`{not json`))
	require.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Studio ", want: "studio"},
		{in: "  STUDIO", want: "studio"},
		{in: "Deluxe En-Suite!", want: "deluxe en suite"},
		{in: "Twin / Shared", want: "twin shared"},
		{in: "", want: ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestConfigurationSlugDeterministic(t *testing.T) {
	a := ConfigurationSlug("Studio Plus", "22 sqm", "1 person")
	b := ConfigurationSlug("studio  plus", "22 SQM", "1 Person")
	require.Equal(t, a, b)
	require.Equal(t, "cfg-studio-plus-22-sqm-1-person", a)
	require.Empty(t, ConfigurationSlug("", "", ""))
}
