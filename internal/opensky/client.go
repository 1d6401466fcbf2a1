package opensky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/saviobatista/flight-insights/internal/parser"
	"github.com/saviobatista/flight-insights/internal/stats"
	"github.com/saviobatista/flight-insights/internal/types"
)

// DefaultURL is the public, unauthenticated state vector endpoint
const DefaultURL = "https://opensky-network.org/api/states/all"

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithURL overrides the states endpoint.
func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

// WithStats reports fetch activity into s.
func WithStats(s *stats.Stats) ClientOption {
	return func(c *Client) { c.stats = s }
}

// Client fetches live state vectors from OpenSky. It issues exactly one
// request per Fetch: no retries, no backoff, no timeout beyond the transport's.
type Client struct {
	url        string
	httpClient *http.Client
	stats      *stats.Stats
}

// NewClient creates an OpenSky client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		url:        DefaultURL,
		httpClient: &http.Client{},
		stats:      stats.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves one snapshot. An unreachable upstream or a non-200 status
// yields a degraded snapshot with an empty table and no error. A payload that
// no longer matches the state vector layout is returned as an error wrapping
// parser.ErrSchemaMismatch.
func (c *Client) Fetch(ctx context.Context) (*types.Snapshot, error) {
	start := time.Now()
	defer func() { c.stats.RecordFetch(time.Since(start)) }()

	body, err := c.get(ctx)
	if err != nil {
		log.Printf("Warning: OpenSky fetch failed, serving empty table: %v", err)
		c.stats.IncrementFailedFetches()
		return c.degraded(start), nil
	}

	resp, err := parser.DecodeStates(body)
	if err != nil {
		if errors.Is(err, parser.ErrSchemaMismatch) {
			c.stats.IncrementSchemaErrors()
		}
		return nil, fmt.Errorf("failed to decode OpenSky states: %w", err)
	}

	table, dropped := parser.ParseTable(resp)
	c.stats.AddDecodedStates(len(resp.States), dropped)

	return &types.Snapshot{
		ID:           uuid.New().String(),
		Table:        table,
		CapturedAt:   start.UTC(),
		UpstreamTime: resp.Time,
	}, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

func (c *Client) degraded(start time.Time) *types.Snapshot {
	return &types.Snapshot{
		ID:         uuid.New().String(),
		Table:      types.NewFlightTable(nil),
		CapturedAt: start.UTC(),
		Degraded:   true,
	}
}
