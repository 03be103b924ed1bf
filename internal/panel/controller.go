// Package panel is the UI-facing state container: it starts remote
// operations, consumes their progress streams, and applies every
// mutation atomically over one canonical state.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/tg-panel/internal/bridge"
	"github.com/blockedby/tg-panel/internal/events"
	"github.com/blockedby/tg-panel/internal/links"
	"github.com/blockedby/tg-panel/internal/logger"
	"github.com/blockedby/tg-panel/internal/progress"
	"github.com/blockedby/tg-panel/internal/queue"
	"github.com/blockedby/tg-panel/internal/selection"
)

// validation failures surface synchronously; the operation never starts
var (
	ErrNoLinks      = errors.New("no group links found in text")
	ErrNoAccount    = errors.New("no account configured")
	ErrScanActive   = errors.New("a scan is already running")
	ErrSearchActive = errors.New("a search is already running")
)

// fixed operation ids: one live channel per operation class
const (
	opJoin   = "join"
	opScan   = "scan"
	opSearch = "search"
)

// Bridge is the remote surface the controller drives.
type Bridge interface {
	selection.Remote
	JoinGroups(ctx context.Context, linkTexts []string) (*bridge.JoinResponse, error)
	LeaveGroups(ctx context.Context, chatIDs []string) (*bridge.LeaveResponse, error)
	StartScan(ctx context.Context) error
	JoinStreamURL() string
	ScanStreamURL() string
	SearchStreamURL(query string, limit int) string
}

// OperationEvent is published when an operation reaches a terminal
// state, for external automation.
type OperationEvent struct {
	ID        uuid.UUID `json:"id"`
	AccountID string    `json:"account_id"`
	Kind      string    `json:"kind"`
	Summary   any       `json:"summary"`
	At        time.Time `json:"at"`
}

// EventPublisher publishes operation lifecycle events.
type EventPublisher interface {
	PublishOperation(ctx context.Context, event OperationEvent) error
}

// Recorder persists operation outcomes locally.
type Recorder interface {
	Record(ctx context.Context, accountID, kind string, summary any) error
}

// Options configures a Controller.
type Options struct {
	AccountID         string
	SearchResultLimit int
}

// Controller owns the canonical state for one account's panel session.
// All state mutation happens under one mutex; event application and
// user mutations interleave there the way the browser event loop would.
type Controller struct {
	mu sync.Mutex

	opts     Options
	bridge   Bridge
	queue    *queue.ActionQueue
	consumer *bridge.Consumer

	scan   *progress.ScanState
	join   *progress.JoinState
	search *progress.SearchState
	engine *selection.Engine

	publisher EventPublisher // optional
	recorder  Recorder       // optional
	notify    func()         // optional, called after every state change

	log *logger.Logger
}

// NewController wires a controller over the given collaborators.
// Publisher and recorder may be nil.
func NewController(opts Options, b Bridge, q *queue.ActionQueue, consumer *bridge.Consumer, publisher EventPublisher, recorder Recorder) *Controller {
	c := &Controller{
		opts:      opts,
		bridge:    b,
		queue:     q,
		consumer:  consumer,
		scan:      progress.NewScanState(),
		join:      &progress.JoinState{},
		search:    progress.NewSearchState(opts.SearchResultLimit),
		publisher: publisher,
		recorder:  recorder,
		log:       logger.Get(),
	}
	c.engine = selection.NewEngine(c.scan, b, c.refreshScan)
	return c
}

// SetNotifier registers a callback invoked after every state change,
// outside the state lock. Used by the web hub to push updates.
func (c *Controller) SetNotifier(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// JoinFromText extracts group links from free text and starts one join
// batch for all of them. Returns the extracted links. The batch goes
// through the action queue; progress arrives over the join channel.
func (c *Controller) JoinFromText(ctx context.Context, text string) ([]links.Link, error) {
	if c.opts.AccountID == "" {
		return nil, ErrNoAccount
	}
	found := links.Extract(text)
	if len(found) == 0 {
		return nil, ErrNoLinks
	}

	category := queue.CategoryUsername
	linkTexts := make([]string, len(found))
	for i, l := range found {
		linkTexts[i] = l.Text
		// a batch with any invite link gets the slower invite pacing
		if l.Kind == links.KindInvite {
			category = queue.CategoryInvite
		}
	}

	c.mu.Lock()
	c.join = progress.NewJoinState()
	c.mu.Unlock()
	c.changed()

	c.consumer.Open(context.Background(), opJoin, c.bridge.JoinStreamURL(), func(ev events.Event) {
		c.applyJoin(ev)
	})

	go func() {
		_, err := c.queue.Enqueue(ctx, category, func(runCtx context.Context) (any, error) {
			return c.bridge.JoinGroups(runCtx, linkTexts)
		})
		if err != nil {
			c.log.Error().Err(err).Msg("panel: join batch failed")
			c.applyJoin(events.JoinError{Error: err.Error()})
			c.consumer.Stop(opJoin)
		}
	}()

	return found, nil
}

// Joining reports whether a join batch is in flight.
func (c *Controller) Joining() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.join.Active
}

// LastJoinResults returns the current reconciled join outcomes.
func (c *Controller) LastJoinResults() []events.JoinOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.join.Results()
}

// LeaveGroups leaves the given chats through the action queue at
// username pacing.
func (c *Controller) LeaveGroups(ctx context.Context, chatIDs []string) (*bridge.LeaveResponse, error) {
	if c.opts.AccountID == "" {
		return nil, ErrNoAccount
	}
	if len(chatIDs) == 0 {
		return nil, errors.New("no chats given")
	}

	result, err := c.queue.Enqueue(ctx, queue.CategoryUsername, func(runCtx context.Context) (any, error) {
		return c.bridge.LeaveGroups(runCtx, chatIDs)
	})
	if err != nil {
		return nil, err
	}
	resp := result.(*bridge.LeaveResponse)
	c.record(ctx, "leave", resp)
	return resp, nil
}

// StartScan starts a chat scan: a direct fire-and-forget POST, with
// progress reconciled from the scan channel.
func (c *Controller) StartScan(ctx context.Context) error {
	if c.opts.AccountID == "" {
		return ErrNoAccount
	}
	c.mu.Lock()
	if c.scan.Active {
		c.mu.Unlock()
		return ErrScanActive
	}
	c.mu.Unlock()

	if err := c.bridge.StartScan(ctx); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}

	c.consumer.Open(context.Background(), opScan, c.bridge.ScanStreamURL(), func(ev events.Event) {
		c.applyScan(ev)
	})
	return nil
}

// StopScan closes the scan channel immediately. Events already
// delivered stay reconciled; nothing further is applied.
func (c *Controller) StopScan() {
	c.consumer.Stop(opScan)
	c.mu.Lock()
	c.scan.Active = false
	c.mu.Unlock()
	c.changed()
}

// StartSearch opens a semantic search session; opening the stream
// starts the search remotely.
func (c *Controller) StartSearch(ctx context.Context, query string) error {
	if c.opts.AccountID == "" {
		return ErrNoAccount
	}
	if query == "" {
		return errors.New("empty search query")
	}
	c.mu.Lock()
	if c.search.Active {
		c.mu.Unlock()
		return ErrSearchActive
	}
	c.search = progress.NewSearchState(c.opts.SearchResultLimit)
	c.mu.Unlock()
	c.changed()

	url := c.bridge.SearchStreamURL(query, c.opts.SearchResultLimit)
	c.consumer.Open(context.Background(), opSearch, url, func(ev events.Event) {
		c.applySearch(ev)
	})
	return nil
}

// StopSearch closes the search channel immediately.
func (c *Controller) StopSearch() {
	c.consumer.Stop(opSearch)
	c.mu.Lock()
	c.search.Active = false
	c.mu.Unlock()
	c.changed()
}

// SelectChat toggles a chat and all its messages.
func (c *Controller) SelectChat(chatID int64) {
	c.mu.Lock()
	c.engine.SelectChat(chatID)
	c.mu.Unlock()
	c.changed()
}

// SelectMessage toggles one message, then restores the invariant.
func (c *Controller) SelectMessage(chatID, messageID int64) {
	c.mu.Lock()
	c.engine.SelectMessage(chatID, messageID)
	c.engine.Recompute()
	c.mu.Unlock()
	c.changed()
}

// DeleteSelected deletes the selected messages chat by chat.
func (c *Controller) DeleteSelected(ctx context.Context) (*selection.DeleteReport, error) {
	c.mu.Lock()
	report, err := c.engine.DeleteSelected(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.changed()
	c.record(ctx, "delete", report)
	c.publish(ctx, "delete", report)
	return report, nil
}

// DeleteAllFound deletes everything the bridge has found and refreshes
// the scan state from the source of truth.
func (c *Controller) DeleteAllFound(ctx context.Context) (*bridge.DeleteAllResponse, error) {
	c.mu.Lock()
	resp, err := c.engine.DeleteAllFound(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.changed()
	c.record(ctx, "delete_all", resp)
	c.publish(ctx, "delete_all", resp)
	return resp, nil
}

// KeepMessage keeps one found message.
func (c *Controller) KeepMessage(ctx context.Context, chatID, messageID int64) error {
	c.mu.Lock()
	err := c.engine.KeepMessage(ctx, chatID, messageID)
	c.mu.Unlock()
	if err == nil {
		c.changed()
	}
	return err
}

// ClearQueue drops all pending queued actions.
func (c *Controller) ClearQueue() {
	c.queue.Clear()
}

// Close stops all live channels.
func (c *Controller) Close() {
	c.consumer.Close()
}

// refreshScan is the engine's source-of-truth refresh after a
// delete-all: re-run the scan.
func (c *Controller) refreshScan(ctx context.Context) error {
	if err := c.bridge.StartScan(ctx); err != nil {
		return err
	}
	c.consumer.Open(context.Background(), opScan, c.bridge.ScanStreamURL(), func(ev events.Event) {
		c.applyScan(ev)
	})
	return nil
}

// applyJoin folds one join channel event.
func (c *Controller) applyJoin(ev events.Event) {
	c.mu.Lock()
	wasActive := c.join.Active
	c.join.Apply(ev)
	done := wasActive && !c.join.Active
	var results []events.JoinOutcome
	if done {
		results = c.join.Results()
	}
	c.mu.Unlock()
	c.changed()

	if done {
		ctx := context.Background()
		c.record(ctx, "join", results)
		c.publish(ctx, "join", results)
	}
}

// applyScan folds one scan channel event. A fresh chat_list starts a
// fresh session, so selection state resets with it.
func (c *Controller) applyScan(ev events.Event) {
	c.mu.Lock()
	wasActive := c.scan.Active
	if _, ok := ev.(events.ChatList); ok {
		c.engine.Reset()
	}
	c.scan.Apply(ev)
	done := wasActive && !c.scan.Active
	stats := c.scan.Stats
	c.mu.Unlock()
	c.changed()

	if done {
		ctx := context.Background()
		c.record(ctx, "scan", stats)
		c.publish(ctx, "scan", stats)
	}
}

// applySearch folds one search channel event.
func (c *Controller) applySearch(ev events.Event) {
	c.mu.Lock()
	c.search.Apply(ev)
	c.mu.Unlock()
	c.changed()
}

// changed invokes the notifier outside the lock.
func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// record persists an operation outcome; nil-safe.
func (c *Controller) record(ctx context.Context, kind string, summary any) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, c.opts.AccountID, kind, summary); err != nil {
		c.log.Warn().Err(err).Str("kind", kind).Msg("panel: failed to record operation")
	}
}

// publish emits an operation lifecycle event; nil-safe.
func (c *Controller) publish(ctx context.Context, kind string, summary any) {
	if c.publisher == nil {
		return
	}
	event := OperationEvent{
		ID:        uuid.New(),
		AccountID: c.opts.AccountID,
		Kind:      kind,
		Summary:   summary,
		At:        time.Now(),
	}
	if err := c.publisher.PublishOperation(ctx, event); err != nil {
		c.log.Warn().Err(err).Str("kind", kind).Msg("panel: failed to publish operation event")
	}
}
