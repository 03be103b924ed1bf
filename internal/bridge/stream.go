package bridge

import (
	"context"
	"net/http"
	"sync"

	sse "github.com/r3labs/sse/v2"

	"github.com/blockedby/tg-panel/internal/events"
	"github.com/blockedby/tg-panel/internal/logger"
)

// Apply receives each decoded event, in delivery order, on the
// consumer's goroutine for that operation.
type Apply func(ev events.Event)

type activeStream struct {
	cancel context.CancelFunc
}

// Consumer owns at most one live SSE connection per operation id.
// Opening an id again closes the prior connection first; transport
// errors are left to the SSE client's automatic reconnect, and only
// terminal application events or an explicit Stop close a channel.
type Consumer struct {
	mu     sync.Mutex
	active map[string]*activeStream
	log    *logger.Logger
}

// NewConsumer creates an empty consumer.
func NewConsumer() *Consumer {
	return &Consumer{
		active: make(map[string]*activeStream),
		log:    logger.Get(),
	}
}

// Open subscribes to streamURL under the given operation id and feeds
// decoded events to apply until a terminal event, Stop, or parent
// cancellation. Events delivered after a stop is requested are not
// applied. Returns immediately; consumption runs in the background.
func (c *Consumer) Open(parent context.Context, opID, streamURL string, apply Apply) {
	ctx, cancel := context.WithCancel(parent)
	stream := &activeStream{cancel: cancel}

	c.mu.Lock()
	if prior, ok := c.active[opID]; ok {
		prior.cancel()
	}
	c.active[opID] = stream
	c.mu.Unlock()

	client := sse.NewClient(streamURL)
	client.Connection = &http.Client{Timeout: 0} // long-lived stream

	go func() {
		defer c.release(opID, stream)

		err := client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
			if len(msg.Data) == 0 {
				return
			}
			ev, err := events.Decode(msg.Data)
			if err != nil {
				// unexpected payload shapes are conservatively ignored
				c.log.Warn().Err(err).Str("op", opID).Msg("stream: undecodable event")
				return
			}
			if ctx.Err() != nil {
				return
			}
			apply(ev)
			if events.Terminal(ev) {
				c.log.Debug().Str("op", opID).Str("kind", string(ev.EventKind())).Msg("stream: terminal event, closing")
				cancel()
			}
		})
		if err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Str("op", opID).Msg("stream: subscription ended")
		}
	}()
}

// Stop closes the connection for one operation id. Safe to call when
// nothing is open for that id.
func (c *Consumer) Stop(opID string) {
	c.mu.Lock()
	stream, ok := c.active[opID]
	if ok {
		delete(c.active, opID)
	}
	c.mu.Unlock()

	if ok {
		stream.cancel()
	}
}

// Active reports whether a connection is open for the operation id.
func (c *Consumer) Active(opID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[opID]
	return ok
}

// Close stops every open connection.
func (c *Consumer) Close() {
	c.mu.Lock()
	streams := make([]*activeStream, 0, len(c.active))
	for id, s := range c.active {
		streams = append(streams, s)
		delete(c.active, id)
	}
	c.mu.Unlock()

	for _, s := range streams {
		s.cancel()
	}
}

// release drops the bookkeeping entry once a stream goroutine exits,
// unless the id was already reopened with a newer connection.
func (c *Consumer) release(opID string, own *activeStream) {
	c.mu.Lock()
	if current, ok := c.active[opID]; ok && current == own {
		delete(c.active, opID)
	}
	c.mu.Unlock()
	own.cancel()
}
