// Package export renders merged records for download: a JSON projection and
// a flattened CSV with one row per configuration and tenancy option pair.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/roomsage/onboarder/internal/onboarding"
)

// Formats accepted by the export endpoint.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var csvHeader = []string{
	"property_name",
	"property_type",
	"city",
	"configuration_id",
	"configuration_name",
	"room_type",
	"occupancy",
	"price_min",
	"price_max",
	"duration_weeks",
	"price_per_week",
	"price_total",
	"start_date",
	"end_date",
	"availability",
}

// WriteJSON streams the record as indented JSON.
func WriteJSON(w io.Writer, record onboarding.MergedRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// WriteCSV streams the flattened record. Configurations without tenancy
// options still produce one row; orphan tenancies produce rows with empty
// configuration columns.
func WriteCSV(w io.Writer, record onboarding.MergedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, cfg := range record.Configurations {
		if len(cfg.Tenancies) == 0 {
			if err := cw.Write(row(record, cfg.Configuration, onboarding.TenancyOption{})); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
			continue
		}
		for _, opt := range cfg.Tenancies {
			if err := cw.Write(row(record, cfg.Configuration, opt)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	for _, opt := range record.OrphanTenancies {
		if err := cw.Write(row(record, onboarding.Configuration{}, opt)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func row(record onboarding.MergedRecord, cfg onboarding.Configuration, opt onboarding.TenancyOption) []string {
	name := cfg.Name
	if name == "" {
		name = opt.ConfigurationName
	}
	return []string{
		record.Name,
		record.PropertyType,
		record.Location.City,
		cfg.ConfigurationID,
		name,
		cfg.RoomType,
		cfg.Occupancy,
		cfg.PriceMin.String(),
		cfg.PriceMax.String(),
		weeks(opt.Duration),
		opt.PricePerWeek.String(),
		opt.PriceTotal.String(),
		opt.StartDate,
		opt.EndDate,
		opt.Availability,
	}
}

func weeks(s onboarding.Stay) string {
	if !s.Known {
		return s.Raw
	}
	return strconv.FormatFloat(s.Weeks, 'f', -1, 64)
}
