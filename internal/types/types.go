package types

import (
	"strconv"
	"strings"
	"time"
)

// CallsignUnknown is used when the upstream reports no callsign
const CallsignUnknown = "N/A"

// FlightRecord represents one observed aircraft state
type FlightRecord struct {
	ICAO24        string     `json:"icao24"`
	Callsign      string     `json:"callsign"`
	OriginCountry string     `json:"origin_country"`
	TimePosition  *time.Time `json:"time_position,omitempty"`
	LastContact   int64      `json:"last_contact"`
	LastSeen      time.Time  `json:"last_seen"`
	Longitude     float64    `json:"longitude"`
	Latitude      float64    `json:"latitude"`
	OnGround      bool       `json:"on_ground"`
	Hour          int        `json:"hour"`
}

// Location returns the "lat, lon" pair in route formatting
func (r FlightRecord) Location() string {
	return FormatCoordinate(r.Latitude) + ", " + FormatCoordinate(r.Longitude)
}

// FormatCoordinate renders a coordinate in its shortest round-trip form,
// keeping a trailing ".0" on integral values (48 -> "48.0").
func FormatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// FlightTable is an unordered collection of flight records
type FlightTable struct {
	Records []FlightRecord `json:"records"`
}

// NewFlightTable creates a table from the given records
func NewFlightTable(records []FlightRecord) *FlightTable {
	if records == nil {
		records = []FlightRecord{}
	}
	return &FlightTable{Records: records}
}

// Len returns the number of records, treating a nil table as empty
func (t *FlightTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Filter returns a new table with the records matching keep
func (t *FlightTable) Filter(keep func(FlightRecord) bool) *FlightTable {
	out := make([]FlightRecord, 0, t.Len())
	if t == nil {
		return NewFlightTable(out)
	}
	for _, r := range t.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return NewFlightTable(out)
}

// Snapshot is one fetch-and-normalize result
type Snapshot struct {
	ID           string       `json:"id"`
	Table        *FlightTable `json:"table"`
	CapturedAt   time.Time    `json:"captured_at"`
	UpstreamTime time.Time    `json:"upstream_time"`
	Degraded     bool         `json:"degraded"`
}

// SnapshotEvent announces a freshly captured snapshot
type SnapshotEvent struct {
	ID           string    `json:"id"`
	CapturedAt   time.Time `json:"captured_at"`
	UpstreamTime time.Time `json:"upstream_time"`
	TotalRows    int       `json:"total_rows"`
	Degraded     bool      `json:"degraded"`
}

// NewSnapshotEvent summarizes a snapshot for publishing
func NewSnapshotEvent(s *Snapshot) *SnapshotEvent {
	return &SnapshotEvent{
		ID:           s.ID,
		CapturedAt:   s.CapturedAt,
		UpstreamTime: s.UpstreamTime,
		TotalRows:    s.Table.Len(),
		Degraded:     s.Degraded,
	}
}

// CountryCount is one entry of the country ranking
type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// HourCount is one entry of the hourly histogram
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// CallsignCount is one entry of the callsign ranking
type CallsignCount struct {
	Callsign string `json:"callsign"`
	Count    int    `json:"count"`
}

// RouteCount is one entry of the route ranking
type RouteCount struct {
	Route string `json:"route"`
	Count int    `json:"count"`
}

// MapPoint is a coordinate pair for map rendering
type MapPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// InsightBundle holds the aggregates computed for one query
type InsightBundle struct {
	TopCountries      []CountryCount  `json:"top_countries"`
	HourlyActivity    []HourCount     `json:"hourly_activity"`
	TopRoutes         []RouteCount    `json:"top_routes"`
	MapData           []MapPoint      `json:"map_data"`
	PeakHour          *int            `json:"peak_hour"`
	PeakDay           *int            `json:"peak_day"`
	TopCallsigns      []CallsignCount `json:"top_callsigns"`
	UniqueAircraft    int             `json:"unique_aircraft"`
	AvgFlightsPerHour float64         `json:"avg_flights_per_hour"`
	TotalFlights      int             `json:"total_flights"`
	HeatmapData       []MapPoint      `json:"heatmap_data"`
}

// FilterOptions lists the values available to the dashboard selectors
type FilterOptions struct {
	Countries []string `json:"countries"`
	Hours     []int    `json:"hours"`
}
