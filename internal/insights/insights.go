package insights

import (
	"sort"

	"github.com/saviobatista/flight-insights/internal/types"
)

// Ranking sizes
const (
	TopCountriesLimit = 10
	TopCallsignsLimit = 5
	TopRoutesLimit    = 5
)

// QueryParams are the raw values accepted by the query endpoint
type QueryParams struct {
	Country    string
	Hour       string
	AllOptions bool
}

// Query answers one request against a snapshot table. It returns
// types.FilterOptions when AllOptions is set and types.InsightBundle otherwise.
func Query(table *types.FlightTable, p QueryParams) (interface{}, error) {
	if p.AllOptions {
		return Options(table), nil
	}

	f, err := ParseFilter(p.Country, p.Hour)
	if err != nil {
		return nil, err
	}
	return Compute(Apply(table, f)), nil
}

// Compute builds the insight bundle for an already filtered table
func Compute(table *types.FlightTable) types.InsightBundle {
	records := tableRecords(table)

	countries := make([]string, 0, len(records))
	callsigns := make([]string, 0, len(records))
	routes := make([]string, 0, len(records))
	hours := make([]int, 0, len(records))
	days := make([]int, 0, len(records))
	mapData := make([]types.MapPoint, 0, len(records))
	aircraft := make(map[string]struct{})

	for _, r := range records {
		countries = append(countries, r.OriginCountry)
		callsigns = append(callsigns, r.Callsign)
		routes = append(routes, RouteKey(r))
		hours = append(hours, r.Hour)
		if !r.LastSeen.IsZero() {
			days = append(days, r.LastSeen.Day())
		}
		mapData = append(mapData, types.MapPoint{Lat: r.Latitude, Lon: r.Longitude})
		if r.ICAO24 != "" {
			aircraft[r.ICAO24] = struct{}{}
		}
	}

	bundle := types.InsightBundle{
		TopCountries:   make([]types.CountryCount, 0),
		TopCallsigns:   make([]types.CallsignCount, 0),
		TopRoutes:      make([]types.RouteCount, 0),
		HourlyActivity: hourlyActivity(hours),
		MapData:        mapData,
		PeakHour:       mode(hours),
		PeakDay:        mode(days),
		UniqueAircraft: len(aircraft),
		TotalFlights:   len(records),
	}
	// both visualizations render the same coordinate set
	bundle.HeatmapData = bundle.MapData

	for _, kc := range topN(countries, TopCountriesLimit) {
		bundle.TopCountries = append(bundle.TopCountries, types.CountryCount{Country: kc.key, Count: kc.count})
	}
	for _, kc := range topN(callsigns, TopCallsignsLimit) {
		bundle.TopCallsigns = append(bundle.TopCallsigns, types.CallsignCount{Callsign: kc.key, Count: kc.count})
	}
	for _, kc := range topN(routes, TopRoutesLimit) {
		bundle.TopRoutes = append(bundle.TopRoutes, types.RouteCount{Route: kc.key, Count: kc.count})
	}

	if n := len(bundle.HourlyActivity); n > 0 {
		bundle.AvgFlightsPerHour = float64(len(records)) / float64(n)
	}

	return bundle
}

// RouteKey is the origin country followed by the bracketed position
func RouteKey(r types.FlightRecord) string {
	return r.OriginCountry + " → [" + r.Location() + "]"
}

type keyCount struct {
	key   string
	count int
}

// topN ranks values by frequency, highest first, ties by key ascending
func topN(values []string, n int) []keyCount {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}

	ranked := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, keyCount{key: k, count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].key < ranked[j].key
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func hourlyActivity(hours []int) []types.HourCount {
	counts := make(map[int]int)
	for _, h := range hours {
		counts[h]++
	}

	activity := make([]types.HourCount, 0, len(counts))
	for h, c := range counts {
		activity = append(activity, types.HourCount{Hour: h, Count: c})
	}
	sort.Slice(activity, func(i, j int) bool { return activity[i].Hour < activity[j].Hour })
	return activity
}

// mode returns the most frequent value, the smallest one on ties, or nil for no values
func mode(values []int) *int {
	if len(values) == 0 {
		return nil
	}

	counts := make(map[int]int)
	for _, v := range values {
		counts[v]++
	}

	best, bestCount := 0, 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return &best
}
