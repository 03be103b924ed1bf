package progress

import (
	"github.com/blockedby/tg-panel/internal/events"
)

// DefaultSearchCap bounds the live match list during long searches.
const DefaultSearchCap = 200

// Match is one live search result, keyed by (chat, message).
type Match struct {
	ChatID    int64
	MessageID int64
	ChatTitle string
	Content   string
	Date      string
	Score     float64
}

// SearchTick is the latest scalar progress of a search session.
type SearchTick struct {
	Current int
	Total   int
}

// SearchState is the reconciled state of one semantic search session.
// Previews and confirmed matches share the live list; a later delivery
// for the same (chat, message) replaces the earlier entry, so a
// refined similarity score wins. The list is capped and drops its
// oldest entries to bound memory.
type SearchState struct {
	Active       bool
	TotalChats   int
	Tick         SearchTick
	Matches      []Match
	TotalMatches int
	Error        string

	cap int
}

// NewSearchState returns an active search state with the given live
// list cap (<=0 means DefaultSearchCap).
func NewSearchState(resultCap int) *SearchState {
	if resultCap <= 0 {
		resultCap = DefaultSearchCap
	}
	return &SearchState{Active: true, cap: resultCap}
}

// Apply folds one event into the search state.
func (s *SearchState) Apply(ev events.Event) {
	switch e := ev.(type) {
	case events.SearchStarted:
		s.TotalChats = e.TotalChats
	case events.SearchProgress:
		s.Tick = SearchTick{Current: e.Current, Total: e.Total}
	case events.MessagePreview:
		s.upsert(Match{
			ChatID:    e.ChatID,
			MessageID: e.MessageID,
			ChatTitle: e.ChatTitle,
			Content:   e.Content,
			Date:      e.Date,
			Score:     e.Score,
		})
	case events.MatchFound:
		s.upsert(Match{
			ChatID:    e.ChatID,
			MessageID: e.MessageID,
			ChatTitle: e.ChatTitle,
			Content:   e.Content,
			Date:      e.Date,
			Score:     e.Score,
		})
	case events.SearchComplete:
		s.TotalMatches = e.TotalMatches
		s.Active = false
	case events.Error:
		s.Error = e.Error
		s.Active = false
	}
}

// upsert replaces an existing match with the same key in place, or
// appends, evicting the oldest entry when the list is full.
func (s *SearchState) upsert(m Match) {
	for i := range s.Matches {
		if s.Matches[i].ChatID == m.ChatID && s.Matches[i].MessageID == m.MessageID {
			s.Matches[i] = m
			return
		}
	}
	if len(s.Matches) >= s.cap {
		s.Matches = s.Matches[1:]
	}
	s.Matches = append(s.Matches, m)
}
