package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-panel/internal/panel"
)

type mockNATS struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (m *mockNATS) Publish(subject string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func TestPublishOperation(t *testing.T) {
	nc := &mockNATS{}
	p := &NATSPublisher{nc: nc}

	event := panel.OperationEvent{
		ID:        uuid.New(),
		AccountID: "acc-1",
		Kind:      "delete",
		Summary:   map[string]int{"deleted": 4},
	}
	require.NoError(t, p.PublishOperation(context.Background(), event))

	require.Len(t, nc.subjects, 1)
	assert.Equal(t, "panel.ops.delete", nc.subjects[0])

	var got panel.OperationEvent
	require.NoError(t, json.Unmarshal(nc.payloads[0], &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "acc-1", got.AccountID)
}

func TestPublishOperation_ConnectionError(t *testing.T) {
	nc := &mockNATS{err: errors.New("connection closed")}
	p := &NATSPublisher{nc: nc}

	err := p.PublishOperation(context.Background(), panel.OperationEvent{Kind: "scan"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event")
}
