package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Kind
	}{
		{"connected", `{"type":"connected"}`, KindConnected},
		{"join progress", `{"type":"join_progress","current":2,"total":5,"percent":40,"current_link":"@devs"}`, KindJoinProgress},
		{"join result", `{"type":"join_result","index":1,"link":"@devs","status":"joined"}`, KindJoinResult},
		{"chat list", `{"type":"chat_list","chats":[{"id":1,"title":"A","type":"group"}]}`, KindChatList},
		{"chat completed", `{"type":"chat_completed","chat_id":1,"status":"completed","messages_found":3}`, KindChatCompleted},
		{"final summary", `{"type":"final_summary","total":4,"completed":3,"skipped":1}`, KindFinalSummary},
		{"match found", `{"type":"match_found","chat_id":1,"message_id":9,"content":"hi","score":0.91}`, KindMatchFound},
		{"error", `{"type":"error","error":"account gone"}`, KindError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.EventKind())
		})
	}
}

func TestDecode_FieldValues(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"join_result","index":2,"link":"@devs","status":"pending","title":"Devs"}`))
	require.NoError(t, err)

	jr, ok := ev.(JoinResult)
	require.True(t, ok)
	assert.Equal(t, 2, jr.Index)
	assert.Equal(t, "@devs", jr.Link)
	assert.Equal(t, JoinStatusPending, jr.Status)
	assert.Equal(t, "Devs", jr.Title)
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"surprise"}`))
	require.Error(t, err)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(JoinComplete{}))
	assert.True(t, Terminal(JoinError{}))
	assert.True(t, Terminal(SearchComplete{}))
	assert.True(t, Terminal(Error{}))
	assert.True(t, Terminal(FinalSummary{}))
	assert.True(t, Terminal(ChatCompleted{Done: true}))

	assert.False(t, Terminal(ChatCompleted{}))
	assert.False(t, Terminal(Connected{}))
	assert.False(t, Terminal(JoinProgress{}))
	assert.False(t, Terminal(ChatScanning{}))
}
