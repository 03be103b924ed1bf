package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-panel/internal/events"
)

// sseServer streams the queued frames to each subscriber and then holds
// the connection open until the client disconnects.
type sseServer struct {
	mu     sync.Mutex
	frames []string
	conns  int
}

func (s *sseServer) push(payload string) {
	s.mu.Lock()
	s.frames = append(s.frames, payload)
	s.mu.Unlock()
}

func (s *sseServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *sseServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "no flush", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.conns++
	frames := append([]string(nil), s.frames...)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conns--
		s.mu.Unlock()
	}()

	for _, f := range frames {
		fmt.Fprintf(w, "data: %s\n\n", f)
	}
	flusher.Flush()
	<-r.Context().Done()
}

type applied struct {
	mu  sync.Mutex
	evs []events.Event
}

func (a *applied) add(ev events.Event) {
	a.mu.Lock()
	a.evs = append(a.evs, ev)
	a.mu.Unlock()
}

func (a *applied) kinds() []events.Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]events.Kind, len(a.evs))
	for i, ev := range a.evs {
		out[i] = ev.EventKind()
	}
	return out
}

func TestConsumer_TerminalEventClosesStream(t *testing.T) {
	srv := &sseServer{}
	srv.push(`{"type":"connected"}`)
	srv.push(`{"type":"join_progress","current":1,"total":2}`)
	srv.push(`{"type":"join_complete","results":[]}`)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	got := &applied{}
	c := NewConsumer()
	defer c.Close()

	c.Open(context.Background(), "join", ts.URL, got.add)

	require.Eventually(t, func() bool { return !c.Active("join") },
		3*time.Second, 10*time.Millisecond, "terminal event must close the stream")

	assert.Equal(t, []events.Kind{
		events.KindConnected,
		events.KindJoinProgress,
		events.KindJoinComplete,
	}, got.kinds())
}

func TestConsumer_StopDiscardsLaterDeliveries(t *testing.T) {
	srv := &sseServer{}
	srv.push(`{"type":"connected"}`)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	got := &applied{}
	c := NewConsumer()
	defer c.Close()

	c.Open(context.Background(), "scan", ts.URL, got.add)
	require.Eventually(t, func() bool { return len(got.kinds()) == 1 },
		3*time.Second, 10*time.Millisecond)

	c.Stop("scan")
	assert.False(t, c.Active("scan"))

	// Whatever is still in flight after the stop must not be applied.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []events.Kind{events.KindConnected}, got.kinds())
}

func TestConsumer_ReopenReplacesPriorConnection(t *testing.T) {
	srv := &sseServer{}
	srv.push(`{"type":"connected"}`)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c := NewConsumer()
	defer c.Close()

	c.Open(context.Background(), "search", ts.URL, func(events.Event) {})
	require.Eventually(t, func() bool { return srv.connections() == 1 },
		3*time.Second, 10*time.Millisecond)

	c.Open(context.Background(), "search", ts.URL, func(events.Event) {})

	assert.True(t, c.Active("search"))
	require.Eventually(t, func() bool { return srv.connections() == 1 },
		3*time.Second, 10*time.Millisecond, "prior connection must be torn down")
}

func TestConsumer_UndecodableEventsAreSkipped(t *testing.T) {
	srv := &sseServer{}
	srv.push(`not json at all`)
	srv.push(`{"type":"wat"}`)
	srv.push(`{"type":"join_complete","results":[]}`)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	got := &applied{}
	c := NewConsumer()
	defer c.Close()

	c.Open(context.Background(), "join", ts.URL, got.add)

	require.Eventually(t, func() bool { return !c.Active("join") },
		3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []events.Kind{events.KindJoinComplete}, got.kinds())
}

func TestConsumer_CloseStopsEverything(t *testing.T) {
	srv := &sseServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c := NewConsumer()
	c.Open(context.Background(), "a", ts.URL, func(events.Event) {})
	c.Open(context.Background(), "b", ts.URL, func(events.Event) {})

	c.Close()
	assert.False(t, c.Active("a"))
	assert.False(t, c.Active("b"))
}
