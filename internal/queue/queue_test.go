package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// floodWaitErr mimics the bridge's back-pressure error.
type floodWaitErr struct {
	seconds int
}

func (e *floodWaitErr) Error() string         { return fmt.Sprintf("flood wait %ds", e.seconds) }
func (e *floodWaitErr) FloodWaitSeconds() int { return e.seconds }

// zeroDelays makes the queue run as fast as the scheduler allows.
func zeroDelays() Options {
	return Options{
		InviteDelay:      time.Nanosecond,
		UsernameDelay:    time.Nanosecond,
		FloodWaitBackoff: time.Nanosecond,
		ActionTimeout:    time.Second,
	}
}

func TestActionQueue_InvitePriority(t *testing.T) {
	q := New(zeroDelays())

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	gate := make(chan struct{})
	var wg sync.WaitGroup

	enqueue := func(name string, cat Category, wait bool) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Enqueue(context.Background(), cat, func(context.Context) (any, error) {
				if wait {
					<-gate
				}
				record(name)
				return nil, nil
			})
			if err != nil {
				t.Errorf("%s: unexpected error: %v", name, err)
			}
		}()
	}

	// the first username action starts immediately and blocks on the
	// gate; everything else is pending when the gate opens
	enqueue("u1", CategoryUsername, true)
	waitForStart(t, q)
	enqueue("u2", CategoryUsername, false)
	waitForPending(t, q, 1)
	enqueue("u3", CategoryUsername, false)
	waitForPending(t, q, 2)
	enqueue("i1", CategoryInvite, false)
	waitForPending(t, q, 3)
	enqueue("i2", CategoryInvite, false)

	waitForPending(t, q, 4)
	close(gate)
	wg.Wait()

	want := []string{"u1", "i1", "i2", "u2", "u3"}
	if len(order) != len(want) {
		t.Fatalf("ran %d actions, want %d: %v", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestActionQueue_FloodWaitRetriesSameAction(t *testing.T) {
	q := New(zeroDelays())

	attempts := 0
	result, err := q.Enqueue(context.Background(), CategoryInvite, func(context.Context) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, &floodWaitErr{seconds: 0}
		}
		return "joined", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "joined" {
		t.Errorf("result = %v, want joined", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestActionQueue_OtherErrorsPropagate(t *testing.T) {
	q := New(zeroDelays())

	boom := errors.New("boom")
	_, err := q.Enqueue(context.Background(), CategoryUsername, func(context.Context) (any, error) {
		return nil, boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestActionQueue_ActionTimeout(t *testing.T) {
	opts := zeroDelays()
	opts.ActionTimeout = 20 * time.Millisecond
	q := New(opts)

	_, err := q.Enqueue(context.Background(), CategoryUsername, func(ctx context.Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}

func TestActionQueue_Clear(t *testing.T) {
	q := New(zeroDelays())

	gate := make(chan struct{})
	defer close(gate)

	go func() {
		_, _ = q.Enqueue(context.Background(), CategoryUsername, func(context.Context) (any, error) {
			<-gate
			return nil, nil
		})
	}()
	waitForStart(t, q)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(context.Background(), CategoryUsername, func(context.Context) (any, error) {
			return nil, nil
		})
		errCh <- err
	}()
	waitForPending(t, q, 1)

	q.Clear()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCleared) {
			t.Fatalf("error = %v, want ErrCleared", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cleared caller was never released")
	}

	if q.Pending() != 0 {
		t.Errorf("Pending() = %d after clear, want 0", q.Pending())
	}
}

func TestClampFloodWait(t *testing.T) {
	tests := []struct {
		name        string
		waitSeconds int
		floor       time.Duration
		ceiling     time.Duration
		want        time.Duration
	}{
		{"server wait within bounds", 10, 2 * time.Second, 30 * time.Second, 10 * time.Second},
		{"huge wait hits ceiling", 1000, 2 * time.Second, 30 * time.Second, 30 * time.Second},
		{"tiny wait hits category floor", 1, 5 * time.Second, 30 * time.Second, 5 * time.Second},
		{"zero wait hits floor", 0, 2 * time.Second, 30 * time.Second, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampFloodWait(tt.waitSeconds, tt.floor, tt.ceiling)
			if got != tt.want {
				t.Errorf("clampFloodWait(%d) = %v, want %v", tt.waitSeconds, got, tt.want)
			}
		})
	}
}

// waitForStart waits until the queue has picked up an action.
func waitForStart(t *testing.T, q *ActionQueue) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		q.mu.Lock()
		running := q.running
		q.mu.Unlock()
		if running {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("queue never started an action")
}

// waitForPending waits until n actions are queued behind the slot.
func waitForPending(t *testing.T, q *ActionQueue, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if q.Pending() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queue never reached %d pending actions (have %d)", n, q.Pending())
}
