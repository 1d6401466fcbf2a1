package normalizer

import (
	"testing"
	"time"

	"github.com/saviobatista/flight-insights/internal/types"
)

func TestNormalize(t *testing.T) {
	seen := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		records     []types.FlightRecord
		wantLen     int
		wantDropped int
	}{
		{
			name:    "empty table",
			records: nil,
			wantLen: 0,
		},
		{
			name: "all valid",
			records: []types.FlightRecord{
				{ICAO24: "a", OriginCountry: "France", LastSeen: seen},
				{ICAO24: "b", OriginCountry: "Spain", LastSeen: seen},
			},
			wantLen: 2,
		},
		{
			name: "missing country",
			records: []types.FlightRecord{
				{ICAO24: "a", OriginCountry: "", LastSeen: seen},
				{ICAO24: "b", OriginCountry: "Spain", LastSeen: seen},
			},
			wantLen:     1,
			wantDropped: 1,
		},
		{
			name: "blank country",
			records: []types.FlightRecord{
				{ICAO24: "a", OriginCountry: "   ", LastSeen: seen},
			},
			wantLen:     0,
			wantDropped: 1,
		},
		{
			name: "missing last seen",
			records: []types.FlightRecord{
				{ICAO24: "a", OriginCountry: "France"},
				{ICAO24: "b", OriginCountry: "France", LastSeen: seen},
			},
			wantLen:     1,
			wantDropped: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, dropped := NormalizeWithCount(types.NewFlightTable(tt.records))

			if table.Len() != tt.wantLen {
				t.Errorf("Expected %d records, got %d", tt.wantLen, table.Len())
			}
			if dropped != tt.wantDropped {
				t.Errorf("Expected %d dropped, got %d", tt.wantDropped, dropped)
			}
		})
	}
}

func TestNormalize_DerivesHour(t *testing.T) {
	table := types.NewFlightTable([]types.FlightRecord{
		{ICAO24: "a", OriginCountry: "France", LastSeen: time.Date(2024, 6, 15, 0, 5, 0, 0, time.UTC)},
		{ICAO24: "b", OriginCountry: "France", LastSeen: time.Date(2024, 6, 15, 23, 59, 59, 0, time.UTC)},
	})

	normalized := Normalize(table)

	if normalized.Records[0].Hour != 0 {
		t.Errorf("Expected hour 0, got %d", normalized.Records[0].Hour)
	}
	if normalized.Records[1].Hour != 23 {
		t.Errorf("Expected hour 23, got %d", normalized.Records[1].Hour)
	}
}

func TestNormalize_TrimsCountry(t *testing.T) {
	table := types.NewFlightTable([]types.FlightRecord{
		{ICAO24: "a", OriginCountry: " United States ", LastSeen: time.Unix(1718445600, 0).UTC()},
	})

	normalized := Normalize(table)

	if normalized.Records[0].OriginCountry != "United States" {
		t.Errorf("Expected trimmed country, got %q", normalized.Records[0].OriginCountry)
	}
	if table.Records[0].OriginCountry != " United States " {
		t.Error("Normalize must not modify the input table")
	}
}

func TestNormalize_NilTable(t *testing.T) {
	normalized := Normalize(nil)
	if normalized == nil || normalized.Len() != 0 {
		t.Errorf("Expected empty table, got %+v", normalized)
	}
}
