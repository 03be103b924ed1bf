package progress

import (
	"github.com/blockedby/tg-panel/internal/events"
)

// JoinTick is the latest scalar progress of a join batch. Always
// overwritten, never merged.
type JoinTick struct {
	Current     int
	Total       int
	Percent     float64
	CurrentLink string
}

// joinEntry pairs an outcome with the batch index that keys it.
type joinEntry struct {
	index   int
	outcome events.JoinOutcome
}

// JoinState is the reconciled state of one join batch. Results arrive
// keyed by batch index and may be delivered out of order or twice; the
// upsert keeps one entry per index, in arrival order.
type JoinState struct {
	Active  bool
	Tick    JoinTick
	Error   string
	entries []joinEntry
}

// NewJoinState returns an active join batch state.
func NewJoinState() *JoinState {
	return &JoinState{Active: true}
}

// Apply folds one event into the join state.
func (j *JoinState) Apply(ev events.Event) {
	switch e := ev.(type) {
	case events.JoinProgress:
		j.Tick = JoinTick{
			Current:     e.Current,
			Total:       e.Total,
			Percent:     e.Percent,
			CurrentLink: e.CurrentLink,
		}
	case events.JoinResult:
		j.upsert(e)
	case events.JoinComplete:
		// the final list is authoritative and reconciles anything missed
		j.entries = j.entries[:0]
		for i, out := range e.Results {
			j.entries = append(j.entries, joinEntry{index: i, outcome: out})
		}
		j.Active = false
	case events.JoinError:
		// results accumulated so far are retained
		j.Error = e.Error
		j.Active = false
	}
}

// upsert replaces the entry with the same index in place, preserving
// order, or appends when the index is new.
func (j *JoinState) upsert(e events.JoinResult) {
	out := events.JoinOutcome{
		Link:   e.Link,
		Status: e.Status,
		Title:  e.Title,
		Error:  e.Error,
	}
	for i := range j.entries {
		if j.entries[i].index == e.Index {
			j.entries[i].outcome = out
			return
		}
	}
	j.entries = append(j.entries, joinEntry{index: e.Index, outcome: out})
}

// Results returns the current outcome list in entry order.
func (j *JoinState) Results() []events.JoinOutcome {
	out := make([]events.JoinOutcome, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.outcome
	}
	return out
}
