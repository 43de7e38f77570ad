package adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tdgate/pkg/engine"
)

func makeChat(id int64, title, order string, last *engine.Message) engine.Chat {
	return engine.Chat{
		ID:          id,
		Title:       title,
		LastMessage: last,
		Positions:   []engine.ChatPosition{{Order: order}},
	}
}

func newChatEventFor(c engine.Chat) *engine.ChatEvent {
	return &engine.ChatEvent{Meta: engine.Meta{Type: engine.TypeChat}, Chat: c}
}

func newUpdateNewChat(c engine.Chat) *engine.UpdateNewChat {
	return &engine.UpdateNewChat{Meta: engine.Meta{Type: engine.TypeUpdateNewChat}, Chat: c}
}

func chatsEvent(ids ...int64) *engine.ChatsEvent {
	return &engine.ChatsEvent{
		Meta:       engine.Meta{Type: engine.TypeChats},
		TotalCount: len(ids),
		ChatIDs:    ids,
	}
}

func TestOrderLess_NumericNotLexicographic(t *testing.T) {
	assert.True(t, orderLess("99", "100"))
	assert.False(t, orderLess("100", "99"))
	assert.True(t, orderLess("100", "200"))
	assert.False(t, orderLess("5", "5"))
}

func TestListChats_SortsByOrderDescending(t *testing.T) {
	msg99 := textMessage(1, 10, "older", false, 100)
	msg100 := textMessage(2, 11, "newer", false, 200)
	client := newFakeClient()
	client.onSend = func(_ int64, req engine.Request) []engine.Event {
		switch req.RequestType() {
		case "loadChats":
			return []engine.Event{
				newUpdateNewChat(makeChat(10, "Old", "99", &msg99)),
				newUpdateNewChat(makeChat(11, "New", "100", &msg100)),
			}
		case "getChats":
			return []engine.Event{chatsEvent(10, 11)}
		}
		return nil
	}
	a := newTestAdapter(t, client)

	chats, err := a.ListChats(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, chats, 2)

	// Order "100" is numerically larger than "99" despite sorting first
	// lexicographically.
	assert.Equal(t, int64(11), chats[0].ID)
	assert.Equal(t, int64(10), chats[1].ID)
	assert.Equal(t, "newer", chats[0].LastMessage.Content)
}

func TestListChats_RefetchesUncachedDetail(t *testing.T) {
	detail := makeChat(20, "Fetched", "50", nil)
	client := newFakeClient()
	client.onSend = func(_ int64, req engine.Request) []engine.Event {
		switch req.RequestType() {
		case "getChats":
			return []engine.Event{chatsEvent(20)}
		case "getChat":
			return []engine.Event{newChatEventFor(detail)}
		}
		return nil
	}
	a := newTestAdapter(t, client)

	chats, err := a.ListChats(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Fetched", chats[0].Title)
	assert.Equal(t, 1, client.countSent("getChat"))
}

func TestListChats_OffsetZeroIsIdempotent(t *testing.T) {
	client := newFakeClient()
	client.onSend = func(_ int64, req engine.Request) []engine.Event {
		switch req.RequestType() {
		case "loadChats":
			return []engine.Event{newUpdateNewChat(makeChat(30, "Only", "10", nil))}
		case "getChats":
			return []engine.Event{chatsEvent(30)}
		}
		return nil
	}
	a := newTestAdapter(t, client)

	first, err := a.ListChats(context.Background(), 5, 0)
	require.NoError(t, err)
	second, err := a.ListChats(context.Background(), 5, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestListChats_OffsetBeyondEndIsEmpty(t *testing.T) {
	client := newFakeClient()
	client.onSend = func(_ int64, req engine.Request) []engine.Event {
		if req.RequestType() == "getChats" {
			return []engine.Event{chatsEvent()}
		}
		return nil
	}
	a := newTestAdapter(t, client)

	chats, err := a.ListChats(context.Background(), 5, 50)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestListChats_VoiceFailureDegradesToPlaceholder(t *testing.T) {
	voice := voiceMessage(5, 40, 700, false, 100)
	client := newFakeClient()
	client.onSend = func(_ int64, req engine.Request) []engine.Event {
		switch req.RequestType() {
		case "loadChats":
			return []engine.Event{newUpdateNewChat(makeChat(40, "Voicey", "10", &voice))}
		case "getChats":
			return []engine.Event{chatsEvent(40)}
		case "getFile":
			return []engine.Event{&engine.ErrorEvent{
				Meta: engine.Meta{Type: engine.TypeError}, Code: 404, Message: "not found",
			}}
		}
		return nil
	}
	a := newTestAdapter(t, client)

	chats, err := a.ListChats(context.Background(), 5, 0)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].LastMessage)

	assert.Equal(t, "[Voice Message Unavailable]", chats[0].LastMessage.Content)
	assert.False(t, chats[0].LastMessage.IsVoice)
	assert.Empty(t, chats[0].LastMessage.VoiceURL)
}

func TestObserveChat_CachesSpontaneousDetail(t *testing.T) {
	client := newFakeClient()
	a := newTestAdapter(t, client)

	client.emit(newUpdateNewChat(makeChat(55, "Pushed", "7", nil)))

	assert.Eventually(t, func() bool {
		_, ok := a.cachedChat(55)
		return ok
	}, 500*time.Millisecond, 10*time.Millisecond)
}

// pagingEngine answers getChats like the real engine: ids strictly
// below the offset order, most recent first, up to the limit.
func pagingEngine(chats []engine.Chat) func(int64, engine.Request) []engine.Event {
	return func(_ int64, req engine.Request) []engine.Event {
		if req.RequestType() != "getChats" {
			return nil
		}
		var q struct {
			Limit       int    `json:"limit"`
			OffsetOrder string `json:"offset_order"`
		}
		raw, err := json.Marshal(req)
		if err != nil {
			return nil
		}
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil
		}

		var ids []int64
		var events []engine.Event
		for _, c := range chats {
			if len(ids) >= q.Limit {
				break
			}
			if orderLess(c.Order(), q.OffsetOrder) {
				ids = append(ids, c.ID)
				events = append(events, newUpdateNewChat(c))
			}
		}
		return append(events, chatsEvent(ids...))
	}
}

func TestListChats_SecondPageContinuesFromCache(t *testing.T) {
	chats := []engine.Chat{
		makeChat(1, "A", "600", nil),
		makeChat(2, "B", "500", nil),
		makeChat(3, "C", "400", nil),
		makeChat(4, "D", "300", nil),
		makeChat(5, "E", "200", nil),
		makeChat(6, "F", "100", nil),
	}
	client := newFakeClient()
	client.onSend = pagingEngine(chats)
	a := newTestAdapter(t, client)

	page, err := a.ListChats(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].ID)
	assert.Equal(t, int64(2), page[1].ID)

	page, err = a.ListChats(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].ID)
	assert.Equal(t, int64(4), page[1].ID)

	page, err = a.ListChats(context.Background(), 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].ID)
	assert.Equal(t, int64(6), page[1].ID)
}

func TestListChats_ResolvesProfilePhoto(t *testing.T) {
	src := writeEngineFile(t, "avatar.jpg")
	chat := makeChat(21, "Pictured", "300", nil)
	chat.Photo = &engine.ChatPhoto{Small: engine.File{ID: 970}}

	client := newFakeClient()
	client.onSend = func(_ int64, req engine.Request) []engine.Event {
		switch req.RequestType() {
		case "getChats":
			return []engine.Event{newUpdateNewChat(chat), chatsEvent(21)}
		case "getFile":
			return []engine.Event{fileEvent(completedFile(970, src))}
		}
		return nil
	}
	a := newTestAdapter(t, client)

	page, err := a.ListChats(context.Background(), 5, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Contains(t, page[0].PhotoURL, "/files/abc123/photos/avatar.jpg")
}
