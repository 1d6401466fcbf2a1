package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/saviobatista/flight-insights/internal/types"
)

const (
	StreamSnapshots  = "FLIGHT_SNAPSHOTS"
	SubjectSnapshots = "flights.snapshot"
)

// jetStream is the subset of nats.JetStreamContext used by the client
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	Subscribe(subj string, cb nats.MsgHandler, opts ...nats.SubOpt) (*nats.Subscription, error)
}

// Client announces captured snapshots over NATS JetStream
type Client struct {
	conn *nats.Conn
	js   jetStream
}

// New creates a new NATS client
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamSnapshots,
		Subjects: []string{SubjectSnapshots},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !isStreamInUse(err) {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

func isStreamInUse(err error) bool {
	return strings.Contains(err.Error(), "stream name already in use")
}

// PublishSnapshotEvent publishes a snapshot capture notice
func (c *Client) PublishSnapshotEvent(event *types.SnapshotEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = c.js.Publish(SubjectSnapshots, data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// SubscribeSnapshots subscribes to snapshot capture notices
func (c *Client) SubscribeSnapshots(handler func(*types.SnapshotEvent)) error {
	_, err := c.js.Subscribe(SubjectSnapshots, func(msg *nats.Msg) {
		var event types.SnapshotEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("Error unmarshaling snapshot event: %v", err)
			return
		}
		handler(&event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
