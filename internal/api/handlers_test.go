package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saviobatista/flight-insights/internal/cache"
	"github.com/saviobatista/flight-insights/internal/opensky"
	"github.com/saviobatista/flight-insights/internal/parser"
	"github.com/saviobatista/flight-insights/internal/stats"
	"github.com/saviobatista/flight-insights/internal/testutils"
	"github.com/saviobatista/flight-insights/internal/types"
)

type fakeSource struct {
	snapshot *types.Snapshot
	err      error
	gets     int
	peeked   *types.Snapshot
}

func (f *fakeSource) Get(ctx context.Context) (*types.Snapshot, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	f.peeked = f.snapshot
	return f.snapshot, nil
}

func (f *fakeSource) Peek() *types.Snapshot {
	return f.peeked
}

type fakeHistory struct {
	rows  []map[string]interface{}
	err   error
	start time.Time
	end   time.Time
}

func (f *fakeHistory) GetServiceStats(start, end time.Time) ([]map[string]interface{}, error) {
	f.start, f.end = start, end
	return f.rows, f.err
}

func roundTripSource() *fakeSource {
	return &fakeSource{snapshot: testutils.MockSnapshot("snap", testutils.RoundTripTable())}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestFetchHandler_Bundle(t *testing.T) {
	s := stats.New()
	router := NewHandler(roundTripSource(), s).SetupRoutes()

	rec := do(t, router, http.MethodGet, "/fetch")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var bundle types.InsightBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))

	assert.Equal(t, []types.CountryCount{{Country: "FR", Count: 2}, {Country: "DE", Count: 1}}, bundle.TopCountries)
	assert.Equal(t, []types.HourCount{{Hour: 10, Count: 2}, {Hour: 11, Count: 1}}, bundle.HourlyActivity)
	assert.Equal(t, 3, bundle.TotalFlights)
	assert.Equal(t, 3, bundle.UniqueAircraft)
	assert.Equal(t, bundle.MapData, bundle.HeatmapData)
	require.NotNil(t, bundle.PeakHour)
	assert.Equal(t, 10, *bundle.PeakHour)

	assert.Equal(t, uint64(1), s.TotalQueries)
}

func TestFetchHandler_Filters(t *testing.T) {
	router := NewHandler(roundTripSource(), nil).SetupRoutes()

	tests := []struct {
		name  string
		query string
		total int
	}{
		{"country", "/fetch?country=FR", 2},
		{"hour", "/fetch?hour=11", 1},
		{"country and hour", "/fetch?country=FR&hour=11", 0},
		{"absent country", "/fetch?country=Atlantis", 0},
		{"empty filters", "/fetch?country=&hour=", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			var bundle types.InsightBundle
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
			assert.Equal(t, tt.total, bundle.TotalFlights)
			if tt.total == 0 {
				assert.Empty(t, bundle.TopCountries)
				assert.Nil(t, bundle.PeakHour)
			}
		})
	}
}

func TestFetchHandler_EmptyListsAreArrays(t *testing.T) {
	router := NewHandler(roundTripSource(), nil).SetupRoutes()

	rec := do(t, router, http.MethodGet, "/fetch?country=Atlantis")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"top_countries", "hourly_activity", "top_routes", "map_data", "top_callsigns", "heatmap_data"} {
		assert.Equal(t, "[]", string(raw[key]), key)
	}
	assert.Equal(t, "null", string(raw["peak_hour"]))
	assert.Equal(t, "null", string(raw["peak_day"]))
}

func TestFetchHandler_AllOptions(t *testing.T) {
	s := stats.New()
	router := NewHandler(roundTripSource(), s).SetupRoutes()

	for _, v := range []string{"true", "1", "True"} {
		rec := do(t, router, http.MethodGet, "/fetch?all_options="+v)
		require.Equal(t, http.StatusOK, rec.Code)

		var opts types.FilterOptions
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
		assert.Equal(t, []string{"DE", "FR"}, opts.Countries)
		assert.Equal(t, []int{10, 11}, opts.Hours)
	}
	assert.Equal(t, uint64(3), s.OptionQueries)

	rec := do(t, router, http.MethodGet, "/fetch?all_options=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "top_countries")
}

func TestFetchHandler_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"non-numeric hour", "/fetch?hour=ten", "invalid hour filter"},
		{"fractional hour", "/fetch?hour=10.5", "invalid hour filter"},
		{"bad all_options", "/fetch?all_options=maybe", "invalid all_options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stats.New()
			router := NewHandler(roundTripSource(), s).SetupRoutes()

			rec := do(t, router, http.MethodGet, tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.message)
			assert.Equal(t, uint64(1), s.InvalidQueries)
		})
	}
}

func TestFetchHandler_LoadError(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("failed to load snapshot: %w", parser.ErrSchemaMismatch)}
	router := NewHandler(source, nil).SetupRoutes()

	rec := do(t, router, http.MethodGet, "/fetch")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeError(t, rec), "schema")
}

func TestFetchHandler_Degraded(t *testing.T) {
	source := &fakeSource{snapshot: &types.Snapshot{ID: "d", Table: types.NewFlightTable(nil), Degraded: true}}
	h := NewHandler(source, nil)
	router := h.SetupRoutes()

	rec := do(t, router, http.MethodGet, "/fetch")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", rec.Header().Get("X-Data-Status"))

	var bundle types.InsightBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Zero(t, bundle.TotalFlights)
	assert.Zero(t, bundle.AvgFlightsPerHour)

	health := do(t, router, http.MethodGet, "/healthz")
	assert.Contains(t, health.Body.String(), `"degraded":true`)
}

func TestHealthHandler(t *testing.T) {
	source := roundTripSource()
	router := NewHandler(source, nil).SetupRoutes()

	rec := do(t, router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","snapshot_captured_at":null,"degraded":false}`, rec.Body.String())
	assert.Equal(t, 0, source.gets, "healthz must not trigger a load")

	do(t, router, http.MethodGet, "/fetch")

	rec = do(t, router, http.MethodGet, "/healthz")
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.NotNil(t, health.SnapshotCapturedAt)
	assert.True(t, health.SnapshotCapturedAt.Equal(source.snapshot.CapturedAt))
	assert.Equal(t, 1, source.gets)
}

func TestStatsHandler(t *testing.T) {
	s := stats.New()
	router := NewHandler(roundTripSource(), s).SetupRoutes()

	do(t, router, http.MethodGet, "/fetch")
	do(t, router, http.MethodGet, "/fetch?hour=x")

	rec := do(t, router, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["total_queries"])
	assert.Equal(t, float64(1), body["invalid_queries"])
}

func TestStatsHistoryHandler(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		router := NewHandler(roundTripSource(), nil).SetupRoutes()
		rec := do(t, router, http.MethodGet, "/stats/history")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("default window", func(t *testing.T) {
		history := &fakeHistory{rows: []map[string]interface{}{{"total_queries": int64(5)}}}
		router := NewHandler(roundTripSource(), nil, WithHistory(history)).SetupRoutes()

		rec := do(t, router, http.MethodGet, "/stats/history")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"total_queries":5}]`, rec.Body.String())
		assert.InDelta(t, DefaultHistoryWindow.Seconds(), history.end.Sub(history.start).Seconds(), 1)
	})

	t.Run("custom window and empty result", func(t *testing.T) {
		history := &fakeHistory{}
		router := NewHandler(roundTripSource(), nil, WithHistory(history)).SetupRoutes()

		rec := do(t, router, http.MethodGet, "/stats/history?hours=2")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]\n", rec.Body.String())
		assert.InDelta(t, (2 * time.Hour).Seconds(), history.end.Sub(history.start).Seconds(), 1)
	})

	t.Run("invalid hours", func(t *testing.T) {
		router := NewHandler(roundTripSource(), nil, WithHistory(&fakeHistory{})).SetupRoutes()
		rec := do(t, router, http.MethodGet, "/stats/history?hours=-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store error", func(t *testing.T) {
		router := NewHandler(roundTripSource(), nil, WithHistory(&fakeHistory{err: errors.New("down")})).SetupRoutes()
		rec := do(t, router, http.MethodGet, "/stats/history")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := NewHandler(roundTripSource(), nil).SetupRoutes()
	rec := do(t, router, http.MethodPost, "/fetch")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestEndToEnd runs a query through the real fetcher, normalizer and cache against a fake upstream
func TestEndToEnd(t *testing.T) {
	var upstreamHits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHits++
		_, _ = w.Write(testutils.MockStatesPayload(1718445600,
			testutils.MockStateRow("3c6444", "DLH9LF", "Germany", 1718445600, 13.4, 52.5),
			testutils.MockStateRow("3c6445", "DLH400", "Germany", 1718449200, 8.5, 50.0),
			testutils.MockStateRow("39de4f", "AFR12", "France", 1718449200, 2.35, 48.85),
			testutils.MockStateRow("aaaaaa", nil, " ", 1718449200, 1.0, 1.0),
			testutils.MockStateRow("bbbbbb", nil, "Spain", 1718449200, nil, 40.0),
		))
	}))
	defer upstream.Close()

	s := stats.New()
	client := opensky.NewClient(opensky.WithURL(upstream.URL), opensky.WithStats(s))
	c := cache.New(cache.NewFetchLoader(client, s), cache.WithStats(s))
	router := NewHandler(c, s).SetupRoutes()

	rec := do(t, router, http.MethodGet, "/fetch")
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle types.InsightBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, 3, bundle.TotalFlights)
	assert.Equal(t, []types.CountryCount{{Country: "Germany", Count: 2}, {Country: "France", Count: 1}}, bundle.TopCountries)
	assert.Equal(t, []types.HourCount{{Hour: 10, Count: 1}, {Hour: 11, Count: 2}}, bundle.HourlyActivity)
	require.NotNil(t, bundle.PeakDay)
	assert.Equal(t, 15, *bundle.PeakDay)

	rec = do(t, router, http.MethodGet, "/fetch?all_options=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"countries":["France","Germany"],"hours":[10,11]}`, rec.Body.String())

	assert.Equal(t, 1, upstreamHits, "snapshot should be memoized")
	assert.Equal(t, uint64(1), s.DroppedStates)
	assert.Equal(t, uint64(1), s.NormalizedDrops)
	assert.Equal(t, uint64(1), s.CacheHits)
}
