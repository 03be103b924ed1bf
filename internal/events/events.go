// Package events defines the typed push events emitted by the bridge
// service over its SSE channels, one Go type per wire discriminant.
package events

import (
	"encoding/json"
	"fmt"
)

// Kind is the wire discriminant carried in every event's "type" field.
type Kind string

// Join batch events.
const (
	KindConnected    Kind = "connected"
	KindJoinProgress Kind = "join_progress"
	KindJoinResult   Kind = "join_result"
	KindJoinComplete Kind = "join_complete"
	KindJoinError    Kind = "join_error"
)

// Chat scan events.
const (
	KindChatList      Kind = "chat_list"
	KindChatScanning  Kind = "chat_scanning"
	KindChatProgress  Kind = "chat_progress"
	KindChatCompleted Kind = "chat_completed"
	KindFinalSummary  Kind = "final_summary"
)

// Semantic search events.
const (
	KindSearchStarted      Kind = "search_started"
	KindRetrievingMessages Kind = "retrieving_messages"
	KindMessagesRetrieved  Kind = "messages_retrieved"
	KindSearchProgress     Kind = "search_progress"
	KindMessagePreview     Kind = "message_preview"
	KindMatchFound         Kind = "match_found"
	KindSearchComplete     Kind = "search_complete"
	KindError              Kind = "error"
)

// Event is any decoded bridge event.
type Event interface {
	EventKind() Kind
}

// JoinStatus is the per-link outcome of a join attempt.
type JoinStatus string

const (
	JoinStatusJoined  JoinStatus = "joined"
	JoinStatusPending JoinStatus = "pending"
	JoinStatusWaiting JoinStatus = "waiting"
	JoinStatusFailed  JoinStatus = "failed"
)

// JoinOutcome is one link's result within a join batch.
type JoinOutcome struct {
	Link   string     `json:"link"`
	Status JoinStatus `json:"status"`
	Title  string     `json:"title,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ChatInfo describes one chat announced by a chat_list event.
type ChatInfo struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Message is one found message as reported by the bridge.
type Message struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Date      string `json:"date"`
	MediaType string `json:"media_type,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
}

// Summary is the authoritative end-of-scan aggregate.
type Summary struct {
	Total                int `json:"total"`
	Completed            int `json:"completed"`
	Skipped              int `json:"skipped"`
	Errors               int `json:"errors"`
	TotalMessagesFound   int `json:"total_messages_found"`
	TotalMessagesDeleted int `json:"total_messages_deleted"`
}

// Connected is the channel handshake acknowledgement. No state change.
type Connected struct{}

// JoinProgress is a scalar progress tick for a join batch.
type JoinProgress struct {
	Current     int     `json:"current"`
	Total       int     `json:"total"`
	Percent     float64 `json:"percent"`
	CurrentLink string  `json:"current_link"`
}

// JoinResult reports one link's outcome, keyed by its batch index.
type JoinResult struct {
	Index  int        `json:"index"`
	Link   string     `json:"link"`
	Status JoinStatus `json:"status"`
	Title  string     `json:"title,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// JoinComplete terminates a join batch with the authoritative result list.
type JoinComplete struct {
	Results []JoinOutcome `json:"results"`
}

// JoinError terminates a join batch with an operation-level error.
type JoinError struct {
	Error string `json:"error"`
}

// ChatList seeds the scan table with every chat that will be visited.
type ChatList struct {
	Chats []ChatInfo `json:"chats"`
}

// ChatScanning marks one chat as actively being scanned.
type ChatScanning struct {
	ChatID int64 `json:"chat_id"`
}

// ChatProgress updates a chat's running counters.
type ChatProgress struct {
	ChatID        int64 `json:"chat_id"`
	MessagesFound int   `json:"messages_found"`
}

// ChatCompleted moves a chat into a terminal state. Done signals that
// the whole scan finished with this chat.
type ChatCompleted struct {
	ChatID          int64     `json:"chat_id"`
	Status          string    `json:"status"`
	MessagesFound   int       `json:"messages_found"`
	MessagesDeleted int       `json:"messages_deleted"`
	Messages        []Message `json:"messages,omitempty"`
	Error           string    `json:"error,omitempty"`
	Done            bool      `json:"done,omitempty"`
}

// FinalSummary is sent once at the very end of a scan and supersedes
// all incrementally accumulated stats.
type FinalSummary struct {
	Summary
}

// SearchStarted opens a semantic search session.
type SearchStarted struct {
	TotalChats int `json:"total_chats"`
}

// RetrievingMessages reports that one chat's history is being fetched.
type RetrievingMessages struct {
	ChatID int64 `json:"chat_id"`
}

// MessagesRetrieved reports how many messages one chat yielded.
type MessagesRetrieved struct {
	ChatID int64 `json:"chat_id"`
	Count  int   `json:"count"`
}

// SearchProgress is a scalar progress tick for a search session.
type SearchProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// MessagePreview is a candidate match streamed before scoring settles.
type MessagePreview struct {
	ChatID    int64   `json:"chat_id"`
	MessageID int64   `json:"message_id"`
	ChatTitle string  `json:"chat_title,omitempty"`
	Content   string  `json:"content"`
	Date      string  `json:"date,omitempty"`
	Score     float64 `json:"score"`
}

// MatchFound is a confirmed match; it may refine an earlier preview's
// score for the same (chat, message) pair.
type MatchFound struct {
	ChatID    int64   `json:"chat_id"`
	MessageID int64   `json:"message_id"`
	ChatTitle string  `json:"chat_title,omitempty"`
	Content   string  `json:"content"`
	Date      string  `json:"date,omitempty"`
	Score     float64 `json:"score"`
}

// SearchComplete terminates a search session.
type SearchComplete struct {
	TotalMatches int `json:"total_matches"`
}

// Error terminates any operation with an operation-level error.
type Error struct {
	Error string `json:"error"`
}

func (Connected) EventKind() Kind          { return KindConnected }
func (JoinProgress) EventKind() Kind       { return KindJoinProgress }
func (JoinResult) EventKind() Kind         { return KindJoinResult }
func (JoinComplete) EventKind() Kind       { return KindJoinComplete }
func (JoinError) EventKind() Kind          { return KindJoinError }
func (ChatList) EventKind() Kind           { return KindChatList }
func (ChatScanning) EventKind() Kind       { return KindChatScanning }
func (ChatProgress) EventKind() Kind       { return KindChatProgress }
func (ChatCompleted) EventKind() Kind      { return KindChatCompleted }
func (FinalSummary) EventKind() Kind       { return KindFinalSummary }
func (SearchStarted) EventKind() Kind      { return KindSearchStarted }
func (RetrievingMessages) EventKind() Kind { return KindRetrievingMessages }
func (MessagesRetrieved) EventKind() Kind  { return KindMessagesRetrieved }
func (SearchProgress) EventKind() Kind     { return KindSearchProgress }
func (MessagePreview) EventKind() Kind     { return KindMessagePreview }
func (MatchFound) EventKind() Kind         { return KindMatchFound }
func (SearchComplete) EventKind() Kind     { return KindSearchComplete }
func (Error) EventKind() Kind              { return KindError }

// Terminal reports whether an event ends its operation and should close
// the push channel from the client side.
func Terminal(ev Event) bool {
	switch e := ev.(type) {
	case JoinComplete, JoinError, SearchComplete, Error, FinalSummary:
		return true
	case ChatCompleted:
		return e.Done
	}
	return false
}

// Decode parses one SSE data payload into its typed event.
// Unknown discriminants are reported, not guessed at.
func Decode(data []byte) (Event, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch probe.Type {
	case KindConnected:
		ev = Connected{}
	case KindJoinProgress:
		ev, err = unmarshalAs[JoinProgress](data)
	case KindJoinResult:
		ev, err = unmarshalAs[JoinResult](data)
	case KindJoinComplete:
		ev, err = unmarshalAs[JoinComplete](data)
	case KindJoinError:
		ev, err = unmarshalAs[JoinError](data)
	case KindChatList:
		ev, err = unmarshalAs[ChatList](data)
	case KindChatScanning:
		ev, err = unmarshalAs[ChatScanning](data)
	case KindChatProgress:
		ev, err = unmarshalAs[ChatProgress](data)
	case KindChatCompleted:
		ev, err = unmarshalAs[ChatCompleted](data)
	case KindFinalSummary:
		ev, err = unmarshalAs[FinalSummary](data)
	case KindSearchStarted:
		ev, err = unmarshalAs[SearchStarted](data)
	case KindRetrievingMessages:
		ev, err = unmarshalAs[RetrievingMessages](data)
	case KindMessagesRetrieved:
		ev, err = unmarshalAs[MessagesRetrieved](data)
	case KindSearchProgress:
		ev, err = unmarshalAs[SearchProgress](data)
	case KindMessagePreview:
		ev, err = unmarshalAs[MessagePreview](data)
	case KindMatchFound:
		ev, err = unmarshalAs[MatchFound](data)
	case KindSearchComplete:
		ev, err = unmarshalAs[SearchComplete](data)
	case KindError:
		ev, err = unmarshalAs[Error](data)
	default:
		return nil, fmt.Errorf("unknown event type %q", probe.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", probe.Type, err)
	}
	return ev, nil
}

func unmarshalAs[T Event](data []byte) (Event, error) {
	var e T
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e, nil
}
