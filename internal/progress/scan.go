// Package progress folds bridge event streams into canonical per-chat,
// per-link, and per-match state. Reducers do no I/O and are written to
// survive duplicate and out-of-order delivery.
package progress

import (
	"github.com/blockedby/tg-panel/internal/events"
)

// ChatStatus is the lifecycle of one chat within a scan.
type ChatStatus string

const (
	ChatPending   ChatStatus = "pending"
	ChatScanning  ChatStatus = "scanning"
	ChatCompleted ChatStatus = "completed"
	ChatSkipped   ChatStatus = "skipped"
	ChatError     ChatStatus = "error"
)

// terminal reports whether a status can no longer change.
func (s ChatStatus) terminal() bool {
	return s == ChatCompleted || s == ChatSkipped || s == ChatError
}

// ChatState is the canonical state of one scanned chat. Created when
// first observed in a chat_list event and kept for the whole session.
type ChatState struct {
	ID              int64
	Title           string
	Type            string
	Status          ChatStatus
	MessagesFound   int
	MessagesDeleted int
	Messages        []events.Message
	Error           string

	// UI-facing flags, managed by the selection engine
	Selected bool
	Expanded bool
}

// Stats aggregates scan outcomes. Incremented monotonically by
// chat_completed events and overwritten wholesale by final_summary.
type Stats struct {
	Total                int `json:"total"`
	Completed            int `json:"completed"`
	Skipped              int `json:"skipped"`
	Errors               int `json:"errors"`
	TotalMessagesFound   int `json:"total_messages_found"`
	TotalMessagesDeleted int `json:"total_messages_deleted"`
}

// ScanState is the full reconciled state of one chat scan session.
type ScanState struct {
	Active bool
	Chats  map[int64]*ChatState
	Order  []int64 // chat ids in announcement order
	Stats  Stats
	Error  string
}

// NewScanState returns an empty, inactive scan state.
func NewScanState() *ScanState {
	return &ScanState{Chats: make(map[int64]*ChatState)}
}

// Apply folds one event into the scan state. Events from other
// families are ignored.
func (s *ScanState) Apply(ev events.Event) {
	switch e := ev.(type) {
	case events.ChatList:
		s.applyChatList(e)
	case events.ChatScanning:
		if chat, ok := s.Chats[e.ChatID]; ok && !chat.Status.terminal() {
			chat.Status = ChatScanning
		}
	case events.ChatProgress:
		// counters only, never status
		if chat, ok := s.Chats[e.ChatID]; ok {
			chat.MessagesFound = e.MessagesFound
		}
	case events.ChatCompleted:
		s.applyChatCompleted(e)
	case events.FinalSummary:
		s.Stats = Stats(e.Summary)
		s.Active = false
	case events.Error:
		s.Error = e.Error
		s.Active = false
	}
}

// applyChatList seeds the chat table. A fresh list starts a fresh
// session: prior chats are discarded.
func (s *ScanState) applyChatList(e events.ChatList) {
	s.Active = true
	s.Error = ""
	s.Chats = make(map[int64]*ChatState, len(e.Chats))
	s.Order = s.Order[:0]
	for _, info := range e.Chats {
		if _, ok := s.Chats[info.ID]; ok {
			continue
		}
		s.Chats[info.ID] = &ChatState{
			ID:     info.ID,
			Title:  info.Title,
			Type:   info.Type,
			Status: ChatPending,
		}
		s.Order = append(s.Order, info.ID)
	}
	s.Stats = Stats{Total: len(s.Order)}
}

// applyChatCompleted moves one chat into a terminal state. A chat that
// is already terminal is left alone so replayed events cannot
// double-count the aggregate stats.
func (s *ScanState) applyChatCompleted(e events.ChatCompleted) {
	chat, ok := s.Chats[e.ChatID]
	if !ok {
		return
	}
	if chat.Status.terminal() {
		if e.Done {
			s.Active = false
		}
		return
	}

	chat.MessagesFound = e.MessagesFound
	chat.MessagesDeleted = e.MessagesDeleted
	chat.Error = e.Error
	if len(e.Messages) > 0 {
		chat.Messages = append(chat.Messages[:0], e.Messages...)
	}

	switch e.Status {
	case "skipped":
		chat.Status = ChatSkipped
		s.Stats.Skipped++
	case "error":
		chat.Status = ChatError
		s.Stats.Errors++
	default:
		chat.Status = ChatCompleted
		s.Stats.Completed++
	}
	s.Stats.TotalMessagesFound += e.MessagesFound
	s.Stats.TotalMessagesDeleted += e.MessagesDeleted

	if e.Done {
		s.Active = false
	}
}

// Recount derives aggregate stats from the chat table. It must agree
// with the incrementally maintained Stats for any event sequence that
// never replayed a terminal chat; tests rely on that equivalence.
func (s *ScanState) Recount() Stats {
	out := Stats{Total: len(s.Order)}
	for _, id := range s.Order {
		chat := s.Chats[id]
		switch chat.Status {
		case ChatCompleted:
			out.Completed++
		case ChatSkipped:
			out.Skipped++
		case ChatError:
			out.Errors++
		}
		if chat.Status.terminal() {
			out.TotalMessagesFound += chat.MessagesFound
			out.TotalMessagesDeleted += chat.MessagesDeleted
		}
	}
	return out
}
