// Package publisher emits operation lifecycle events over NATS for
// external automation.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/blockedby/tg-panel/internal/panel"
)

// NATSClient narrows the connection for mocking.
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements panel.EventPublisher.
type NATSPublisher struct {
	nc NATSClient
}

// NewNATSPublisher creates a publisher over an open connection.
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: conn}
}

// PublishOperation publishes one terminal operation event under
// panel.ops.<kind>.
func (p *NATSPublisher) PublishOperation(_ context.Context, event panel.OperationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish("panel.ops."+event.Kind, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
