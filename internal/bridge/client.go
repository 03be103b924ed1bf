// Package bridge is the HTTP/SSE client for the Telegram bridge
// service that executes joins, scans, searches, and deletions.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/blockedby/tg-panel/internal/logger"
)

// Client calls the bridge's account-scoped REST endpoints.
type Client struct {
	baseURL   string
	accountID string
	httpc     *http.Client
	limiter   *RateLimiter
	log       *logger.Logger
}

// NewClient creates a bridge client for one account.
func NewClient(baseURL, accountID string) *Client {
	return &Client{
		baseURL:   baseURL,
		accountID: accountID,
		httpc:     &http.Client{Timeout: 60 * time.Second},
		limiter:   DefaultRateLimiter(),
		log:       logger.Get(),
	}
}

// JoinRequestResult is the bridge's synchronous per-link echo for a
// join batch. Authoritative outcomes arrive over the SSE channel.
type JoinRequestResult struct {
	Link   string `json:"link"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// JoinResponse acknowledges a started join batch.
type JoinResponse struct {
	Success bool                `json:"success"`
	Results []JoinRequestResult `json:"results"`
}

// LeaveResult is one chat's leave outcome.
type LeaveResult struct {
	ChatID string `json:"chat_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// LeaveResponse reports a leave batch.
type LeaveResponse struct {
	Success bool          `json:"success"`
	Results []LeaveResult `json:"results"`
}

// DeleteResponse reports one chat's delete call. DeletedCount is nil
// when the bridge omits it.
type DeleteResponse struct {
	Success      bool `json:"success"`
	DeletedCount *int `json:"deleted_count,omitempty"`
}

// DeleteAllResponse reports a delete-everything call.
type DeleteAllResponse struct {
	Success      bool     `json:"success"`
	TotalDeleted int      `json:"total_deleted"`
	DeletedChats []string `json:"deleted_chats"`
}

// JoinGroups starts a join batch for the given links.
func (c *Client) JoinGroups(ctx context.Context, links []string) (*JoinResponse, error) {
	body := map[string]any{
		"links":    links,
		"platform": "user",
	}
	var resp JoinResponse
	if err := c.post(ctx, "/groups/join", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LeaveGroups leaves the given chats.
func (c *Client) LeaveGroups(ctx context.Context, chatIDs []string) (*LeaveResponse, error) {
	body := map[string]any{"chat_ids": chatIDs}
	var resp LeaveResponse
	if err := c.post(ctx, "/groups/leave", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartScan kicks off a chat scan. Progress arrives over SSE only.
func (c *Client) StartScan(ctx context.Context) error {
	var resp struct {
		Success bool `json:"success"`
	}
	return c.post(ctx, "/scan", map[string]any{}, &resp)
}

// DeleteMessages deletes the given messages in one chat, revoking for
// all participants.
func (c *Client) DeleteMessages(ctx context.Context, chatID int64, messageIDs []int64) (*DeleteResponse, error) {
	body := map[string]any{
		"chat_id":     chatID,
		"message_ids": messageIDs,
		"revoke":      true,
	}
	var resp DeleteResponse
	if err := c.post(ctx, "/delete-messages", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteAllFound deletes every message the bridge has found, including
// ones the panel never materialized.
func (c *Client) DeleteAllFound(ctx context.Context) (*DeleteAllResponse, error) {
	var resp DeleteAllResponse
	if err := c.post(ctx, "/delete-all-found-messages", map[string]any{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// KeepMessage tells the bridge to keep one found message.
func (c *Client) KeepMessage(ctx context.Context, chatID, messageID int64) error {
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	var resp struct {
		Success bool `json:"success"`
	}
	return c.post(ctx, "/keep-message", body, &resp)
}

// JoinStreamURL is the SSE channel for a join batch.
func (c *Client) JoinStreamURL() string {
	return c.accountPath("/groups/join/stream")
}

// ScanStreamURL is the SSE channel for a chat scan.
func (c *Client) ScanStreamURL() string {
	return c.accountPath("/scan/stream")
}

// SearchStreamURL is the SSE channel for a semantic search; opening it
// starts the search with the given query.
func (c *Client) SearchStreamURL(query string, limit int) string {
	q := url.Values{}
	q.Set("query", query)
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	return c.accountPath("/search/stream") + "?" + q.Encode()
}

func (c *Client) accountPath(suffix string) string {
	return fmt.Sprintf("%s/accounts/%s%s", c.baseURL, url.PathEscape(c.accountID), suffix)
}

// post sends one JSON request and decodes the response, converting
// error-shaped bodies into typed errors.
func (c *Client) post(ctx context.Context, suffix string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountPath(suffix), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().Str("path", suffix).Msg("bridge: request")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request %s: %w", suffix, err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode response from %s: %w", suffix, err)
	}

	var probe errorResponse
	probe.Success = true
	if err := json.Unmarshal(raw, &probe); err == nil && !probe.Success {
		err := probe.asError(resp.StatusCode)
		if fw, ok := err.(*FloodWaitError); ok {
			c.log.Warn().Int("wait_seconds", fw.Seconds).Str("path", suffix).Msg("bridge: flood wait")
			c.limiter.SetFloodWait(fw.Seconds)
		}
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response from %s: %w", suffix, err)
		}
	}
	return nil
}
