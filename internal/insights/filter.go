package insights

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/saviobatista/flight-insights/internal/types"
)

// ErrInvalidHour is returned when the hour filter is not an integer
var ErrInvalidHour = errors.New("invalid hour filter")

// Filter selects records by exact match. Nil fields match everything.
type Filter struct {
	Country *string
	Hour    *int
}

// ParseFilter builds a filter from raw query values. Empty values mean no filter.
func ParseFilter(country, hour string) (Filter, error) {
	var f Filter
	if country != "" {
		f.Country = &country
	}
	if hour != "" {
		h, err := strconv.Atoi(hour)
		if err != nil {
			return Filter{}, fmt.Errorf("%w %q: %v", ErrInvalidHour, hour, err)
		}
		f.Hour = &h
	}
	return f, nil
}

// Matches reports whether a record passes the filter
func (f Filter) Matches(r types.FlightRecord) bool {
	if f.Country != nil && r.OriginCountry != *f.Country {
		return false
	}
	if f.Hour != nil && r.Hour != *f.Hour {
		return false
	}
	return true
}

// Apply returns the records of table matching f
func Apply(table *types.FlightTable, f Filter) *types.FlightTable {
	if f.Country == nil && f.Hour == nil {
		return types.NewFlightTable(append([]types.FlightRecord(nil), tableRecords(table)...))
	}
	return table.Filter(f.Matches)
}

// Options lists every distinct country and hour in the table, both ascending
func Options(table *types.FlightTable) types.FilterOptions {
	countries := make(map[string]struct{})
	hours := make(map[int]struct{})
	for _, r := range tableRecords(table) {
		if r.OriginCountry != "" {
			countries[r.OriginCountry] = struct{}{}
		}
		hours[r.Hour] = struct{}{}
	}

	opts := types.FilterOptions{
		Countries: make([]string, 0, len(countries)),
		Hours:     make([]int, 0, len(hours)),
	}
	for c := range countries {
		opts.Countries = append(opts.Countries, c)
	}
	for h := range hours {
		opts.Hours = append(opts.Hours, h)
	}
	sort.Strings(opts.Countries)
	sort.Ints(opts.Hours)
	return opts
}

func tableRecords(table *types.FlightTable) []types.FlightRecord {
	if table == nil {
		return nil
	}
	return table.Records
}
