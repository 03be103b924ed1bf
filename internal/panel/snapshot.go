package panel

import (
	"github.com/blockedby/tg-panel/internal/events"
	"github.com/blockedby/tg-panel/internal/progress"
)

// Snapshot is a consistent, UI-ready copy of the controller's state,
// captured atomically.
type Snapshot struct {
	AccountID    string     `json:"account_id"`
	QueuePending int        `json:"queue_pending"`
	Join         JoinView   `json:"join"`
	Scan         ScanView   `json:"scan"`
	Search       SearchView `json:"search"`
}

// JoinView is the join batch portion of a snapshot.
type JoinView struct {
	Active  bool                 `json:"active"`
	Tick    progress.JoinTick    `json:"tick"`
	Results []events.JoinOutcome `json:"results"`
	Error   string               `json:"error,omitempty"`
}

// MessageView is one message with its selection flag resolved.
type MessageView struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Date      string `json:"date"`
	MediaType string `json:"media_type,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	Selected  bool   `json:"selected"`
}

// ChatView is one chat's scan state with selection flags resolved.
type ChatView struct {
	ID              int64               `json:"id"`
	Title           string              `json:"title"`
	Type            string              `json:"type"`
	Status          progress.ChatStatus `json:"status"`
	MessagesFound   int                 `json:"messages_found"`
	MessagesDeleted int                 `json:"messages_deleted"`
	Error           string              `json:"error,omitempty"`
	Selected        bool                `json:"selected"`
	Expanded        bool                `json:"expanded"`
	Messages        []MessageView       `json:"messages"`
}

// ScanView is the scan portion of a snapshot.
type ScanView struct {
	Active           bool           `json:"active"`
	Stats            progress.Stats `json:"stats"`
	Chats            []ChatView     `json:"chats"`
	AllSelected      bool           `json:"all_selected"`
	SelectedMessages int            `json:"selected_messages"`
	Error            string         `json:"error,omitempty"`
}

// SearchView is the search portion of a snapshot.
type SearchView struct {
	Active       bool                `json:"active"`
	TotalChats   int                 `json:"total_chats"`
	Tick         progress.SearchTick `json:"tick"`
	Matches      []progress.Match    `json:"matches"`
	TotalMatches int                 `json:"total_matches"`
	Error        string              `json:"error,omitempty"`
}

// Snapshot captures the full state under the lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		AccountID:    c.opts.AccountID,
		QueuePending: c.queue.Pending(),
		Join: JoinView{
			Active:  c.join.Active,
			Tick:    c.join.Tick,
			Results: c.join.Results(),
			Error:   c.join.Error,
		},
		Scan: ScanView{
			Active:           c.scan.Active,
			Stats:            c.scan.Stats,
			AllSelected:      c.engine.AllSelected(),
			SelectedMessages: c.engine.SelectedCount(),
			Error:            c.scan.Error,
		},
		Search: SearchView{
			Active:       c.search.Active,
			TotalChats:   c.search.TotalChats,
			Tick:         c.search.Tick,
			Matches:      append([]progress.Match(nil), c.search.Matches...),
			TotalMatches: c.search.TotalMatches,
			Error:        c.search.Error,
		},
	}

	snap.Scan.Chats = make([]ChatView, 0, len(c.scan.Order))
	for _, id := range c.scan.Order {
		chat := c.scan.Chats[id]
		view := ChatView{
			ID:              chat.ID,
			Title:           chat.Title,
			Type:            chat.Type,
			Status:          chat.Status,
			MessagesFound:   chat.MessagesFound,
			MessagesDeleted: chat.MessagesDeleted,
			Error:           chat.Error,
			Selected:        chat.Selected,
			Expanded:        chat.Expanded,
			Messages:        make([]MessageView, 0, len(chat.Messages)),
		}
		for _, msg := range chat.Messages {
			view.Messages = append(view.Messages, MessageView{
				ID:        msg.ID,
				Content:   msg.Content,
				Date:      msg.Date,
				MediaType: msg.MediaType,
				MediaURL:  msg.MediaURL,
				Selected:  c.engine.IsSelected(chat.ID, msg.ID),
			})
		}
		snap.Scan.Chats = append(snap.Scan.Chats, view)
	}

	return snap
}

// ToggleExpanded flips a chat's expanded flag for the UI.
func (c *Controller) ToggleExpanded(chatID int64) {
	c.mu.Lock()
	if chat, ok := c.scan.Chats[chatID]; ok {
		chat.Expanded = !chat.Expanded
	}
	c.mu.Unlock()
	c.changed()
}
