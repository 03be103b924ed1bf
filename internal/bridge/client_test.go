package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_JoinGroupsRequestShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acc-1/groups/join", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(JoinResponse{
			Success: true,
			Results: []JoinRequestResult{{Link: "@foo", Status: "queued"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acc-1")
	resp, err := c.JoinGroups(context.Background(), []string{"@foo"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "queued", resp.Results[0].Status)

	assert.Equal(t, "user", got["platform"])
	assert.Equal(t, []any{"@foo"}, got["links"])
}

func TestClient_FloodWaitBecomesTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"success":     false,
			"error":       "too many requests",
			"code":        "FLOOD_WAIT",
			"waitSeconds": 42,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acc-1")
	_, err := c.JoinGroups(context.Background(), []string{"@foo"})
	require.Error(t, err)

	var fw *FloodWaitError
	require.True(t, errors.As(err, &fw))
	assert.Equal(t, 42, fw.Seconds)
}

func TestClient_ErrorBodyBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "account not authorized",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acc-1")
	err := c.StartScan(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "not authorized")
}

func TestClient_DeleteMessagesRevokes(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acc-1/delete-messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"success": true, "deleted_count": 2})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acc-1")
	resp, err := c.DeleteMessages(context.Background(), 99, []int64{5, 6})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.DeletedCount)
	assert.Equal(t, 2, *resp.DeletedCount)

	assert.Equal(t, true, got["revoke"])
	assert.Equal(t, float64(99), got["chat_id"])
}

func TestClient_DeleteCountMayBeAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acc-1")
	resp, err := c.DeleteMessages(context.Background(), 1, []int64{2})
	require.NoError(t, err)
	assert.Nil(t, resp.DeletedCount)
}

func TestClient_StreamURLs(t *testing.T) {
	c := NewClient("http://bridge:3000", "acc 2")

	assert.Equal(t, "http://bridge:3000/accounts/acc%202/groups/join/stream", c.JoinStreamURL())
	assert.Equal(t, "http://bridge:3000/accounts/acc%202/scan/stream", c.ScanStreamURL())

	search := c.SearchStreamURL("project alpha", 50)
	assert.Contains(t, search, "/accounts/acc%202/search/stream?")
	assert.Contains(t, search, "query=project+alpha")
	assert.Contains(t, search, "limit=50")
}

func TestClient_NonJSONErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acc-1")
	err := c.StartScan(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
