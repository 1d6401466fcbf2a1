package normalizer

import (
	"strings"

	"github.com/saviobatista/flight-insights/internal/types"
)

// Normalize drops records that cannot be grouped and derives the hour of day
func Normalize(table *types.FlightTable) *types.FlightTable {
	normalized, _ := NormalizeWithCount(table)
	return normalized
}

// NormalizeWithCount is Normalize that also reports how many records were dropped.
// The input table is never modified.
func NormalizeWithCount(table *types.FlightTable) (*types.FlightTable, int) {
	records := make([]types.FlightRecord, 0, table.Len())
	if table == nil {
		return types.NewFlightTable(records), 0
	}

	for _, r := range table.Records {
		r.OriginCountry = strings.TrimSpace(r.OriginCountry)
		if r.OriginCountry == "" || r.LastSeen.IsZero() {
			continue
		}
		// hour is taken as-is from LastSeen, no timezone conversion
		r.Hour = r.LastSeen.Hour()
		records = append(records, r)
	}

	return types.NewFlightTable(records), table.Len() - len(records)
}
