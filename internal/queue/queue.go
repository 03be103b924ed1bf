// Package queue serializes remote join/leave actions into a single
// in-flight call with per-category pacing and flood-wait backoff.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blockedby/tg-panel/internal/logger"
)

// Category is the pacing class of a queued action.
type Category string

const (
	// CategoryInvite actions are manual-approval joins. They are slower,
	// more rate-limit sensitive, and always drain first.
	CategoryInvite Category = "invite"
	// CategoryUsername actions are public-group joins.
	CategoryUsername Category = "username"
)

// ErrCleared is returned to callers whose action was dropped by Clear
// before it ever ran.
var ErrCleared = errors.New("action dropped: queue cleared")

// Runner is one queued action. The context carries the per-action
// timeout; a runner that outlives it fails like any other error.
type Runner func(ctx context.Context) (any, error)

// Clock abstracts time for deterministic tests.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options configures an ActionQueue.
type Options struct {
	InviteDelay      time.Duration // rest after an invite action, default 5s
	UsernameDelay    time.Duration // rest after a username action, default 2s
	FloodWaitBackoff time.Duration // ceiling on flood-wait rest, default 30s
	ActionTimeout    time.Duration // per-action timeout, default 2m
	Clock            Clock
}

func (o *Options) withDefaults() {
	if o.InviteDelay == 0 {
		o.InviteDelay = 5 * time.Second
	}
	if o.UsernameDelay == 0 {
		o.UsernameDelay = 2 * time.Second
	}
	if o.FloodWaitBackoff == 0 {
		o.FloodWaitBackoff = 30 * time.Second
	}
	if o.ActionTimeout == 0 {
		o.ActionTimeout = 2 * time.Minute
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
}

type outcome struct {
	result any
	err    error
}

type item struct {
	category Category
	run      Runner
	done     chan outcome // buffered, settled exactly once
}

// ActionQueue runs at most one action at a time across two FIFO
// categories, resting between actions. Invite actions are preferred
// over username actions at every dequeue decision.
type ActionQueue struct {
	mu        sync.Mutex
	invites   []*item
	usernames []*item
	running   bool

	opts Options
	log  *logger.Logger
}

// New creates an idle ActionQueue. Zero option fields get defaults.
func New(opts Options) *ActionQueue {
	opts.withDefaults()
	return &ActionQueue{
		opts: opts,
		log:  logger.Get(),
	}
}

// Enqueue adds an action and blocks until it completes, fails, or is
// dropped by Clear. A flood-wait failure is absorbed as backoff and the
// same action retried, so callers never see FLOOD_WAIT errors. The
// context only detaches the caller; the action itself still runs.
func (q *ActionQueue) Enqueue(ctx context.Context, category Category, run Runner) (any, error) {
	it := &item{
		category: category,
		run:      run,
		done:     make(chan outcome, 1),
	}

	q.mu.Lock()
	switch category {
	case CategoryInvite:
		q.invites = append(q.invites, it)
	default:
		q.usernames = append(q.usernames, it)
	}
	q.mu.Unlock()

	q.dispatch()

	select {
	case out := <-it.done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Clear drops every not-yet-started action from both categories. The
// in-flight action, if any, is unaffected. Dropped callers get
// ErrCleared rather than being left blocked forever.
func (q *ActionQueue) Clear() {
	q.mu.Lock()
	dropped := make([]*item, 0, len(q.invites)+len(q.usernames))
	dropped = append(dropped, q.invites...)
	dropped = append(dropped, q.usernames...)
	q.invites = nil
	q.usernames = nil
	q.mu.Unlock()

	for _, it := range dropped {
		it.done <- outcome{err: ErrCleared}
	}

	if len(dropped) > 0 {
		q.log.Info().Int("dropped", len(dropped)).Msg("queue: cleared pending actions")
	}
}

// Pending returns the number of not-yet-started actions.
func (q *ActionQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.invites) + len(q.usernames)
}

// dispatch starts the next action if the slot is free. Invites first.
func (q *ActionQueue) dispatch() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	var it *item
	switch {
	case len(q.invites) > 0:
		it = q.invites[0]
		q.invites = q.invites[1:]
	case len(q.usernames) > 0:
		it = q.usernames[0]
		q.usernames = q.usernames[1:]
	default:
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.execute(it)
}

// execute runs one action and schedules the rest period that follows.
func (q *ActionQueue) execute(it *item) {
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.ActionTimeout)
	result, err := it.run(ctx)
	cancel()

	if err == nil {
		it.done <- outcome{result: result}
		q.rest(q.categoryDelay(it.category))
		return
	}

	var fw interface{ FloodWaitSeconds() int }
	if errors.As(err, &fw) {
		delay := clampFloodWait(fw.FloodWaitSeconds(), q.categoryDelay(it.category), q.opts.FloodWaitBackoff)
		q.log.Warn().
			Int("wait_seconds", fw.FloodWaitSeconds()).
			Dur("backoff", delay).
			Str("category", string(it.category)).
			Msg("queue: flood wait, retrying action after backoff")

		// retry the same action after the backoff, ahead of its peers
		q.mu.Lock()
		switch it.category {
		case CategoryInvite:
			q.invites = append([]*item{it}, q.invites...)
		default:
			q.usernames = append([]*item{it}, q.usernames...)
		}
		q.mu.Unlock()

		q.rest(delay)
		return
	}

	it.done <- outcome{err: err}
	q.rest(q.categoryDelay(it.category))
}

// rest holds the single-flight slot for d, then frees it and
// dispatches the next action.
func (q *ActionQueue) rest(d time.Duration) {
	go func() {
		<-q.opts.Clock.After(d)
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		q.dispatch()
	}()
}

func (q *ActionQueue) categoryDelay(c Category) time.Duration {
	if c == CategoryInvite {
		return q.opts.InviteDelay
	}
	return q.opts.UsernameDelay
}

// clampFloodWait bounds a server-requested wait between the category's
// normal delay and the configured backoff ceiling.
func clampFloodWait(waitSeconds int, floor, ceiling time.Duration) time.Duration {
	d := time.Duration(waitSeconds) * time.Second
	if d < floor {
		d = floor
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}
