package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// conn is the slice of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements Publisher using NATS. Epoch events go to
// <subject>.epochs and run events to <subject>.runs.
type NATSPublisher struct {
	nc      *nats.Conn
	conn    conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher connects to natsURL.
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL, nats.Name("pursuit-trainer"))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, conn: nc, subject: subject, logger: logger}, nil
}

func newPublisher(c conn, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: subject, logger: logger}
}

// Close flushes pending messages and closes the connection.
func (n *NATSPublisher) Close() {
	if n.nc != nil {
		if err := n.nc.Flush(); err != nil {
			n.logger.Warn().Err(err).Msg("Failed to flush NATS connection")
		}
		n.nc.Close()
	}
}

func (n *NATSPublisher) EpochSubject() string { return n.subject + ".epochs" }
func (n *NATSPublisher) RunSubject() string   { return n.subject + ".runs" }

// PublishEpoch publishes an epoch event to NATS.
func (n *NATSPublisher) PublishEpoch(ctx context.Context, event EpochEvent) error {
	return n.publish(ctx, n.EpochSubject(), event)
}

// PublishRun publishes a run lifecycle event to NATS.
func (n *NATSPublisher) PublishRun(ctx context.Context, event RunEvent) error {
	if err := n.publish(ctx, n.RunSubject(), event); err != nil {
		return err
	}
	n.logger.Debug().
		Str("run_id", event.RunID).
		Str("state", event.State).
		Str("subject", n.RunSubject()).
		Msg("Published run event")
	return nil
}

func (n *NATSPublisher) publish(ctx context.Context, subject string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish event")
		return err
	}
	return nil
}
