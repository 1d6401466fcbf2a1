package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/saviobatista/flight-insights/internal/insights"
	"github.com/saviobatista/flight-insights/internal/stats"
	"github.com/saviobatista/flight-insights/internal/types"
)

// DefaultHistoryWindow is the /stats/history lookback when hours is omitted
const DefaultHistoryWindow = 24 * time.Hour

// SnapshotSource serves the current snapshot
type SnapshotSource interface {
	Get(ctx context.Context) (*types.Snapshot, error)
	Peek() *types.Snapshot
}

// StatsHistory reads persisted service statistics
type StatsHistory interface {
	GetServiceStats(start, end time.Time) ([]map[string]interface{}, error)
}

// HandlerOption configures the Handler
type HandlerOption func(*Handler)

// WithHistory enables /stats/history
func WithHistory(history StatsHistory) HandlerOption {
	return func(h *Handler) { h.history = history }
}

// Handler serves the HTTP API
type Handler struct {
	snapshots SnapshotSource
	stats     *stats.Stats
	history   StatsHistory

	// set by the last /fetch that loaded a snapshot
	lastDegraded atomic.Bool
}

// NewHandler creates a Handler. A nil s gets a private Stats.
func NewHandler(snapshots SnapshotSource, s *stats.Stats, opts ...HandlerOption) *Handler {
	if s == nil {
		s = stats.New()
	}
	h := &Handler{snapshots: snapshots, stats: s}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type healthResponse struct {
	Status             string     `json:"status"`
	SnapshotCapturedAt *time.Time `json:"snapshot_captured_at"`
	Degraded           bool       `json:"degraded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// FetchHandler answers GET /fetch?country=&hour=&all_options=
func (h *Handler) FetchHandler(w http.ResponseWriter, r *http.Request) {
	h.stats.IncrementQueries()
	q := r.URL.Query()

	params := insights.QueryParams{
		Country: q.Get("country"),
		Hour:    q.Get("hour"),
	}
	if v := q.Get("all_options"); v != "" {
		allOptions, err := strconv.ParseBool(v)
		if err != nil {
			h.stats.IncrementInvalidQueries()
			writeError(w, http.StatusBadRequest, "invalid all_options "+strconv.Quote(v))
			return
		}
		params.AllOptions = allOptions
	}

	snapshot, err := h.snapshots.Get(r.Context())
	if err != nil {
		log.Printf("Failed to load snapshot: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.lastDegraded.Store(snapshot.Degraded)
	if snapshot.Degraded {
		w.Header().Set("X-Data-Status", "degraded")
	}

	if params.AllOptions {
		h.stats.IncrementOptionQueries()
	}

	result, err := insights.Query(snapshot.Table, params)
	if err != nil {
		if errors.Is(err, insights.ErrInvalidHour) {
			h.stats.IncrementInvalidQueries()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HealthHandler reports the cached snapshot without triggering a load
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Degraded: h.lastDegraded.Load(),
	}
	if snapshot := h.snapshots.Peek(); snapshot != nil {
		captured := snapshot.CapturedAt
		resp.SnapshotCapturedAt = &captured
	}

	writeJSON(w, http.StatusOK, resp)
}

// StatsHandler returns the in-process service counters
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}

// StatsHistoryHandler returns persisted stats for the last ?hours= hours
func (h *Handler) StatsHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "stats history is not configured")
		return
	}

	window := DefaultHistoryWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			writeError(w, http.StatusBadRequest, "invalid hours "+strconv.Quote(v))
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	end := time.Now()
	rows, err := h.history.GetServiceStats(end.Add(-window), end)
	if err != nil {
		log.Printf("Failed to read stats history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read stats history")
		return
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}

	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
