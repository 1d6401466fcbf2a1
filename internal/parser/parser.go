package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saviobatista/flight-insights/internal/types"
)

// MinStateFields is the length of an OpenSky state vector
const MinStateFields = 17

// State vector positions
const (
	FieldICAO24        = 0
	FieldCallsign      = 1
	FieldOriginCountry = 2
	FieldTimePosition  = 3
	FieldLastContact   = 4
	FieldLongitude     = 5
	FieldLatitude      = 6
	FieldOnGround      = 8
)

// ErrSchemaMismatch is returned when the upstream payload no longer matches the state vector layout
var ErrSchemaMismatch = errors.New("state vector schema mismatch")

// StatesResponse is a decoded /states/all payload
type StatesResponse struct {
	Time   time.Time
	States []StateVector
}

// StateVector holds the named fields of one upstream state. Nullable fields are pointers.
type StateVector struct {
	ICAO24        string
	Callsign      *string
	OriginCountry *string
	TimePosition  *float64
	LastContact   *float64
	Longitude     *float64
	Latitude      *float64
	OnGround      *bool
}

// DecodeStates decodes a /states/all response body
func DecodeStates(body []byte) (*StatesResponse, error) {
	var raw struct {
		Time   *float64          `json:"time"`
		States []json.RawMessage `json:"states"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode states response: %w", err)
	}

	resp := &StatesResponse{States: make([]StateVector, 0, len(raw.States))}
	if raw.Time != nil {
		resp.Time = time.Unix(int64(*raw.Time), 0).UTC()
	}

	for i, rawState := range raw.States {
		var fields []json.RawMessage
		if err := json.Unmarshal(rawState, &fields); err != nil {
			return nil, fmt.Errorf("%w: state %d is not an array: %v", ErrSchemaMismatch, i, err)
		}

		state, err := ParseStateVector(fields)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		resp.States = append(resp.States, *state)
	}

	return resp, nil
}

// ParseStateVector decodes the fields of a single state by position
func ParseStateVector(fields []json.RawMessage) (*StateVector, error) {
	if len(fields) < MinStateFields {
		return nil, fmt.Errorf("%w: expected at least %d fields, got %d", ErrSchemaMismatch, MinStateFields, len(fields))
	}

	var (
		sv     StateVector
		icao24 *string
	)
	targets := []struct {
		index  int
		name   string
		target interface{}
	}{
		{FieldICAO24, "icao24", &icao24},
		{FieldCallsign, "callsign", &sv.Callsign},
		{FieldOriginCountry, "origin_country", &sv.OriginCountry},
		{FieldTimePosition, "time_position", &sv.TimePosition},
		{FieldLastContact, "last_contact", &sv.LastContact},
		{FieldLongitude, "longitude", &sv.Longitude},
		{FieldLatitude, "latitude", &sv.Latitude},
		{FieldOnGround, "on_ground", &sv.OnGround},
	}

	for _, f := range targets {
		if err := json.Unmarshal(fields[f.index], f.target); err != nil {
			return nil, fmt.Errorf("%w: field %s (index %d): %v", ErrSchemaMismatch, f.name, f.index, err)
		}
	}

	if icao24 == nil {
		return nil, fmt.Errorf("%w: field icao24 (index %d) is null", ErrSchemaMismatch, FieldICAO24)
	}
	sv.ICAO24 = *icao24

	return &sv, nil
}

// Record converts the state into a flight record. It reports false when
// the state has no position, since such rows cannot be mapped.
func (sv *StateVector) Record() (types.FlightRecord, bool) {
	if sv.Longitude == nil || sv.Latitude == nil {
		return types.FlightRecord{}, false
	}

	record := types.FlightRecord{
		ICAO24:    sv.ICAO24,
		Callsign:  types.CallsignUnknown,
		Longitude: *sv.Longitude,
		Latitude:  *sv.Latitude,
	}

	if sv.Callsign != nil {
		if callsign := strings.TrimSpace(*sv.Callsign); callsign != "" {
			record.Callsign = callsign
		}
	}
	if sv.OriginCountry != nil {
		record.OriginCountry = *sv.OriginCountry
	}
	if sv.TimePosition != nil {
		tp := time.Unix(int64(*sv.TimePosition), 0).UTC()
		record.TimePosition = &tp
	}
	if sv.LastContact != nil {
		record.LastContact = int64(*sv.LastContact)
		record.LastSeen = time.Unix(record.LastContact, 0).UTC()
	}
	if sv.OnGround != nil {
		record.OnGround = *sv.OnGround
	}

	return record, true
}

// ParseTable converts decoded states into a table, dropping states without a position.
// It returns the table and the number of dropped states.
func ParseTable(resp *StatesResponse) (*types.FlightTable, int) {
	records := make([]types.FlightRecord, 0, len(resp.States))
	dropped := 0
	for i := range resp.States {
		record, ok := resp.States[i].Record()
		if !ok {
			dropped++
			continue
		}
		records = append(records, record)
	}
	return types.NewFlightTable(records), dropped
}
