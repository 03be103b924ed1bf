// Package selection maintains chat/message selection state over a scan
// session and executes batched deletions with per-chat failure
// isolation.
package selection

import (
	"context"
	"sort"

	"github.com/blockedby/tg-panel/internal/bridge"
	"github.com/blockedby/tg-panel/internal/logger"
	"github.com/blockedby/tg-panel/internal/progress"
)

// Remote is the subset of the bridge client the engine mutates through.
type Remote interface {
	DeleteMessages(ctx context.Context, chatID int64, messageIDs []int64) (*bridge.DeleteResponse, error)
	DeleteAllFound(ctx context.Context) (*bridge.DeleteAllResponse, error)
	KeepMessage(ctx context.Context, chatID, messageID int64) error
}

// RefreshFunc re-fetches the whole scan state from the source of truth
// after a delete-all, which may have removed messages the panel never
// materialized.
type RefreshFunc func(ctx context.Context) error

// MsgKey identifies one message within one chat.
type MsgKey struct {
	ChatID    int64
	MessageID int64
}

// DeleteReport summarizes one DeleteSelected run.
type DeleteReport struct {
	Deleted     int
	FailedChats []string
}

// Engine owns the two selection sets over a scan state. The invariant:
// a chat is selected iff it is Completed, has at least one known
// message, and every one of those messages is selected. Recompute
// restores it after free-form message toggling.
type Engine struct {
	scan        *progress.ScanState
	selected    map[MsgKey]bool
	allSelected bool

	remote  Remote
	refresh RefreshFunc
	log     *logger.Logger
}

// NewEngine creates an engine over the given scan state.
func NewEngine(scan *progress.ScanState, remote Remote, refresh RefreshFunc) *Engine {
	return &Engine{
		scan:     scan,
		selected: make(map[MsgKey]bool),
		remote:   remote,
		refresh:  refresh,
		log:      logger.Get(),
	}
}

// Reset drops all selection state, e.g. when a new scan seeds a new
// chat table.
func (e *Engine) Reset() {
	e.selected = make(map[MsgKey]bool)
	e.allSelected = false
	for _, chat := range e.scan.Chats {
		chat.Selected = false
	}
}

// SelectChat toggles a whole chat and, atomically, every one of its
// current messages. Only legal for a Completed chat with at least one
// message; anything else is a no-op.
func (e *Engine) SelectChat(chatID int64) {
	chat, ok := e.scan.Chats[chatID]
	if !ok || chat.Status != progress.ChatCompleted || len(chat.Messages) == 0 {
		return
	}

	target := !chat.Selected
	chat.Selected = target
	for _, msg := range chat.Messages {
		key := MsgKey{ChatID: chatID, MessageID: msg.ID}
		if target {
			e.selected[key] = true
		} else {
			delete(e.selected, key)
		}
	}
	e.recomputeAllFlag()
}

// SelectMessage toggles a single message. The owning chat's selection
// flag is not updated here; callers needing strict consistency run
// Recompute afterwards.
func (e *Engine) SelectMessage(chatID, messageID int64) {
	if _, ok := e.scan.Chats[chatID]; !ok {
		return
	}
	key := MsgKey{ChatID: chatID, MessageID: messageID}
	if e.selected[key] {
		delete(e.selected, key)
	} else {
		e.selected[key] = true
	}
}

// Recompute restores the selection invariant for every chat and the
// all-chats flag. The single place that owns the bookkeeping.
func (e *Engine) Recompute() {
	for _, id := range e.scan.Order {
		chat := e.scan.Chats[id]
		chat.Selected = e.chatFullySelected(chat)
	}
	e.recomputeAllFlag()
}

// IsSelected reports whether one message is selected.
func (e *Engine) IsSelected(chatID, messageID int64) bool {
	return e.selected[MsgKey{ChatID: chatID, MessageID: messageID}]
}

// AllSelected reports whether every eligible chat is fully selected.
func (e *Engine) AllSelected() bool { return e.allSelected }

// SelectedCount returns the number of selected messages.
func (e *Engine) SelectedCount() int { return len(e.selected) }

// DeleteSelected deletes the selected messages, one bridge call per
// owning chat, attempting every chat even when earlier ones fail. A
// successful chat has exactly the confirmed ids removed from its
// message list and the selection; a failed chat is left completely
// untouched and its title lands in the report.
func (e *Engine) DeleteSelected(ctx context.Context) (*DeleteReport, error) {
	byChat := e.selectedByChat()
	report := &DeleteReport{}

	for _, id := range e.scan.Order {
		ids, ok := byChat[id]
		if !ok || len(ids) == 0 {
			continue
		}
		chat := e.scan.Chats[id]

		resp, err := e.remote.DeleteMessages(ctx, id, ids)
		if err != nil || !resp.Success {
			if err != nil {
				e.log.Error().Err(err).Int64("chat_id", id).Msg("selection: delete failed")
			}
			report.FailedChats = append(report.FailedChats, chat.Title)
			continue
		}

		count := len(ids)
		if resp.DeletedCount != nil {
			count = *resp.DeletedCount
		}

		e.removeMessages(chat, ids)
		chat.MessagesDeleted += count
		report.Deleted += count

		// aggregate counters move only by the confirmed delta
		e.scan.Stats.TotalMessagesDeleted += count
		e.scan.Stats.TotalMessagesFound -= count
		if e.scan.Stats.TotalMessagesFound < 0 {
			e.scan.Stats.TotalMessagesFound = 0
		}
	}

	e.Recompute()
	return report, nil
}

// DeleteAllFound deletes every message the bridge has found and then
// forces a full refresh, because the bridge may hold messages the
// panel never saw.
func (e *Engine) DeleteAllFound(ctx context.Context) (*bridge.DeleteAllResponse, error) {
	resp, err := e.remote.DeleteAllFound(ctx)
	if err != nil {
		return nil, err
	}

	e.Reset()
	if e.refresh != nil {
		if err := e.refresh(ctx); err != nil {
			e.log.Warn().Err(err).Msg("selection: post-delete refresh failed")
		}
	}
	return resp, nil
}

// KeepMessage confirms one message should be kept; on bridge
// confirmation it leaves local state, touching only the chat's
// found count.
func (e *Engine) KeepMessage(ctx context.Context, chatID, messageID int64) error {
	chat, ok := e.scan.Chats[chatID]
	if !ok {
		return nil
	}

	if err := e.remote.KeepMessage(ctx, chatID, messageID); err != nil {
		return err
	}

	e.removeMessages(chat, []int64{messageID})
	if chat.MessagesFound > 0 {
		chat.MessagesFound--
	}
	e.Recompute()
	return nil
}

// selectedByChat groups the selected message ids by owning chat, in a
// stable order.
func (e *Engine) selectedByChat() map[int64][]int64 {
	out := make(map[int64][]int64)
	for key := range e.selected {
		out[key.ChatID] = append(out[key.ChatID], key.MessageID)
	}
	for _, ids := range out {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return out
}

// removeMessages drops the given ids from a chat's message list and
// the selection set.
func (e *Engine) removeMessages(chat *progress.ChatState, ids []int64) {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(e.selected, MsgKey{ChatID: chat.ID, MessageID: id})
	}

	kept := chat.Messages[:0]
	for _, msg := range chat.Messages {
		if !drop[msg.ID] {
			kept = append(kept, msg)
		}
	}
	chat.Messages = kept
}

func (e *Engine) chatFullySelected(chat *progress.ChatState) bool {
	if chat.Status != progress.ChatCompleted || len(chat.Messages) == 0 {
		return false
	}
	for _, msg := range chat.Messages {
		if !e.selected[MsgKey{ChatID: chat.ID, MessageID: msg.ID}] {
			return false
		}
	}
	return true
}

// recomputeAllFlag sets the aggregate flag: every eligible chat fully
// selected, with at least one eligible chat present.
func (e *Engine) recomputeAllFlag() {
	eligible := 0
	for _, id := range e.scan.Order {
		chat := e.scan.Chats[id]
		if chat.Status != progress.ChatCompleted || len(chat.Messages) == 0 {
			continue
		}
		eligible++
		if !e.chatFullySelected(chat) {
			e.allSelected = false
			return
		}
	}
	e.allSelected = eligible > 0
}
