package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/saviobatista/flight-insights/internal/types"
)

// BaseTime is the reference day used by synthetic records
var BaseTime = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

// MockStateRow creates a 17-field OpenSky state vector. Pass nil for lon/lat to simulate a missing position.
func MockStateRow(icao24 string, callsign interface{}, country string, lastContact int64, lon, lat interface{}) []interface{} {
	return []interface{}{
		icao24,      // 0  icao24
		callsign,    // 1  callsign
		country,     // 2  origin_country
		lastContact, // 3  time_position
		lastContact, // 4  last_contact
		lon,         // 5  longitude
		lat,         // 6  latitude
		10000.0,     // 7  baro_altitude
		false,       // 8  on_ground
		230.5,       // 9  velocity
		90.0,        // 10 true_track
		0.0,         // 11 vertical_rate
		nil,         // 12 sensors
		10200.0,     // 13 geo_altitude
		"1000",      // 14 squawk
		false,       // 15 spi
		0,           // 16 position_source
	}
}

// MockStatesPayload encodes a /states/all response body
func MockStatesPayload(upstreamTime int64, rows ...[]interface{}) []byte {
	if rows == nil {
		rows = [][]interface{}{}
	}
	data, err := json.Marshal(map[string]interface{}{
		"time":   upstreamTime,
		"states": rows,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to marshal states payload: %v", err))
	}
	return data
}

// MockRecord creates a normalized flight record seen at the given hour of BaseTime
func MockRecord(icao24, country string, hour int, lat, lon float64) types.FlightRecord {
	seen := BaseTime.Add(time.Duration(hour) * time.Hour)
	return types.FlightRecord{
		ICAO24:        icao24,
		Callsign:      types.CallsignUnknown,
		OriginCountry: country,
		LastContact:   seen.Unix(),
		LastSeen:      seen,
		Latitude:      lat,
		Longitude:     lon,
		Hour:          hour,
	}
}

// RoundTripTable returns the three-row FR/FR/DE table used across packages
func RoundTripTable() *types.FlightTable {
	return types.NewFlightTable([]types.FlightRecord{
		MockRecord("3c6444", "FR", 10, 48.0, 2.0),
		MockRecord("3c6445", "FR", 10, 48.1, 2.1),
		MockRecord("3c6446", "DE", 11, 52.0, 13.0),
	})
}

// MockSnapshot wraps a table in a non-degraded snapshot
func MockSnapshot(id string, table *types.FlightTable) *types.Snapshot {
	return &types.Snapshot{
		ID:           id,
		Table:        table,
		CapturedAt:   BaseTime.Add(12 * time.Hour),
		UpstreamTime: BaseTime.Add(12 * time.Hour),
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// IsIntegrationTest returns false when SKIP_INTEGRATION is set
func IsIntegrationTest() bool {
	return os.Getenv("SKIP_INTEGRATION") == ""
}
