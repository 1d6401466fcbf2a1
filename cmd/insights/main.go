package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/saviobatista/flight-insights/internal/api"
	"github.com/saviobatista/flight-insights/internal/cache"
	"github.com/saviobatista/flight-insights/internal/config"
	"github.com/saviobatista/flight-insights/internal/db"
	"github.com/saviobatista/flight-insights/internal/nats"
	"github.com/saviobatista/flight-insights/internal/opensky"
	"github.com/saviobatista/flight-insights/internal/redis"
	"github.com/saviobatista/flight-insights/internal/stats"
	"github.com/saviobatista/flight-insights/internal/types"
)

const shutdownTimeout = 10 * time.Second

// clients holds the optional collaborators. A nil field is disabled.
type clients struct {
	nats  *nats.Client
	db    *db.Client
	redis *redis.Client
}

// createClients connects every configured collaborator. A collaborator that
// cannot be reached is logged and left disabled.
func createClients(cfg *config.Config) *clients {
	c := &clients{}

	if cfg.NATSURL != "" {
		natsClient, err := nats.New(cfg.NATSURL)
		if err != nil {
			log.Printf("Warning: NATS disabled: %v", err)
		} else {
			c.nats = natsClient
		}
	}

	if cfg.DBConnStr != "" {
		dbClient, err := connectDB(cfg.DBConnStr)
		if err != nil {
			log.Printf("Warning: stats persistence disabled: %v", err)
		} else {
			c.db = dbClient
		}
	}

	if cfg.RedisAddr != "" {
		redisClient, err := redis.New(cfg.RedisAddr, cfg.SnapshotTTL)
		if err != nil {
			log.Printf("Warning: shared snapshot store disabled: %v", err)
		} else {
			c.redis = redisClient
		}
	}

	return c
}

func connectDB(connStr string) (*db.Client, error) {
	dbClient, err := db.New(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbClient.Ping(ctx); err != nil {
		if closeErr := dbClient.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbClient, nil
}

// Close closes every enabled collaborator
func (c *clients) Close() {
	if c.nats != nil {
		c.nats.Close()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing redisClient: %v\n", err)
		}
	}
}

// buildHandler wires fetcher, cache and API around the enabled collaborators
func buildHandler(cfg *config.Config, c *clients, s *stats.Stats) http.Handler {
	fetcher := opensky.NewClient(opensky.WithURL(cfg.OpenSkyURL), opensky.WithStats(s))

	cacheOpts := []cache.Option{cache.WithTTL(cfg.SnapshotTTL), cache.WithStats(s)}
	if c.redis != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(c.redis))
	}
	if c.nats != nil {
		cacheOpts = append(cacheOpts, cache.WithPublisher(c.nats))
	}
	snapshots := cache.New(cache.NewFetchLoader(fetcher, s), cacheOpts...)

	var handlerOpts []api.HandlerOption
	if c.db != nil {
		handlerOpts = append(handlerOpts, api.WithHistory(c.db))
	}

	return api.NewHandler(snapshots, s, handlerOpts...).SetupRoutes()
}

// startBackground starts stats logging, stats persistence and the snapshot
// event log. The returned WaitGroup finishes after the final stats flush.
func startBackground(ctx context.Context, cfg *config.Config, c *clients, s *stats.Stats) *sync.WaitGroup {
	var wg sync.WaitGroup

	go s.LogPeriodically(ctx, time.Minute)

	if c.db != nil {
		s.SetStore(c.db)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.StartPersistence(ctx, cfg.StatsInterval)
		}()
	}

	if c.nats != nil {
		if err := c.nats.SubscribeSnapshots(logSnapshotEvent); err != nil {
			log.Printf("Warning: Failed to subscribe to snapshot events: %v", err)
		}
	}

	return &wg
}

func logSnapshotEvent(event *types.SnapshotEvent) {
	log.Printf("Snapshot %s captured at %s with %d rows", event.ID, event.CapturedAt.Format(time.RFC3339), event.TotalRows)
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// run serves until ctx is cancelled, then shuts down gracefully
func run(ctx context.Context, cfg *config.Config) error {
	s := stats.New()
	c := createClients(cfg)
	defer c.Close()

	bgCtx, cancel := context.WithCancel(context.Background())
	wg := startBackground(bgCtx, cfg, c, s)

	server := newServer(cfg, buildHandler(cfg, c, s))
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err := <-errCh:
		serveErr = fmt.Errorf("failed to serve: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Failed to shut down HTTP server: %v", err)
	}

	cancel()
	wg.Wait()
	return serveErr
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Printf("%v", err)
		stop()
		os.Exit(1)
	}
}
