package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techsolutions/agency-chat/internal/gateway"
	"github.com/techsolutions/agency-chat/internal/middleware"
	"github.com/techsolutions/agency-chat/internal/middleware/authtest"
	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/service"
	"github.com/techsolutions/agency-chat/internal/store/storetest"
	"github.com/techsolutions/agency-chat/pkg/logger"
)

type harness struct {
	hub    *gateway.Hub
	server *httptest.Server
	staff  model.Principal
	client model.Principal
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st := storetest.New(t)
	staff := storetest.SeedUser(t, st, 10, "staff@agency.com", model.RoleAdmin)
	svc := service.NewChatService(st, nil, 0, logger.Nop())

	hub := gateway.NewHub(gateway.Config{
		TypingTimeout:       100 * time.Millisecond,
		TypingSweepInterval: 20 * time.Millisecond,
	}, svc, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	verifier := middleware.NewTokenVerifier(authtest.Secret)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := verifier.Verify(middleware.BearerToken(r))
		if err != nil {
			middleware.Unauthorized(w, "invalid token")
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(ws, p)
	}))

	t.Cleanup(func() {
		hub.Shutdown()
		cancel()
		server.Close()
	})

	return &harness{
		hub:    hub,
		server: server,
		staff:  staff,
		client: model.Principal{ID: 20, Email: "c@x.com", Role: model.RoleUser},
	}
}

func (h *harness) dial(t *testing.T, p model.Principal) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?token=" + authtest.Token(t, p)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	// Every connection is greeted with the presence list.
	expect(t, ws, gateway.EventOnlineUsers)
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(gateway.Envelope{Event: event, Data: raw}))
}

// expect reads frames until one with the given event arrives, discarding others.
func expect(t *testing.T, ws *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env gateway.Envelope
		require.NoError(t, ws.ReadJSON(&env), "waiting for %s", event)
		if env.Event == event {
			return env.Data
		}
	}
}

// next reads exactly one frame.
func next(t *testing.T, ws *websocket.Conn) gateway.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env gateway.Envelope
	require.NoError(t, ws.ReadJSON(&env))
	return env
}

func decodeAs[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestChatRoundTrip(t *testing.T) {
	h := newHarness(t)

	staffWS := h.dial(t, h.staff)
	clientWS := h.dial(t, h.client)

	online := decodeAs[gateway.PresencePayload](t, expect(t, staffWS, gateway.EventUserOnline))
	assert.Equal(t, h.client.ID, online.UserID)

	// First contact from the client opens a conversation.
	send(t, clientWS, gateway.EventChatMessage, map[string]string{"message": "  hello  "})

	ack := decodeAs[gateway.MessagePayload](t, expect(t, clientWS, gateway.EventMessageReceived))
	assert.True(t, ack.Created)
	assert.Equal(t, "hello", ack.Message.Content)
	assert.Equal(t, h.staff.ID, ack.Conversation.AgencyID)
	convID := ack.ConversationID

	delivered := decodeAs[gateway.MessagePayload](t, expect(t, staffWS, gateway.EventChatMessage))
	assert.Equal(t, convID, delivered.ConversationID)
	assert.Equal(t, model.SenderClient, delivered.Sender.Type)

	notice := decodeAs[gateway.MessagePayload](t, expect(t, staffWS, gateway.EventNewMessage))
	assert.Equal(t, "hello", notice.Message.Content)

	// The staff reply reaches the client through its freshly linked client group.
	send(t, staffWS, gateway.EventChatMessage, map[string]interface{}{"conversationId": convID, "message": "hi there"})
	reply := decodeAs[gateway.MessagePayload](t, expect(t, clientWS, gateway.EventChatMessage))
	assert.Equal(t, "hi there", reply.Message.Content)
	assert.Equal(t, model.SenderAgency, reply.Message.SenderType)
	expect(t, staffWS, gateway.EventMessageReceived)

	// Conversation ids arrive as strings from some clients.
	send(t, clientWS, gateway.EventMarkAsRead, map[string]string{"conversationId": strconv.FormatInt(convID, 10)})
	marked := decodeAs[gateway.MarkedReadPayload](t, expect(t, clientWS, gateway.EventMessagesMarkedRead))
	assert.Equal(t, int64(1), marked.Count)

	read := decodeAs[gateway.ReadPayload](t, expect(t, staffWS, gateway.EventMessagesRead))
	assert.Equal(t, convID, read.ConversationID)
	assert.Equal(t, int64(1), read.Count)
	assert.Equal(t, model.SenderClient, read.ReadBy.Type)
}

func TestTypingExpiresWithoutRefresh(t *testing.T) {
	h := newHarness(t)

	staffWS := h.dial(t, h.staff)
	clientWS := h.dial(t, h.client)

	send(t, clientWS, gateway.EventChatMessage, map[string]string{"message": "hello"})
	convID := decodeAs[gateway.MessagePayload](t, expect(t, clientWS, gateway.EventMessageReceived)).ConversationID
	expect(t, staffWS, gateway.EventNewMessage)
	// Sending a message clears the sender's indicator.
	expect(t, staffWS, gateway.EventTypingStatus)

	send(t, clientWS, gateway.EventTyping, map[string]interface{}{"conversationId": convID, "isTyping": true})
	started := decodeAs[gateway.TypingPayload](t, expect(t, staffWS, gateway.EventTypingStatus))
	assert.True(t, started.IsTyping)
	assert.Equal(t, h.client.ID, started.UserID)

	stopped := decodeAs[gateway.TypingPayload](t, expect(t, staffWS, gateway.EventTypingStatus))
	assert.False(t, stopped.IsTyping)
	assert.Equal(t, convID, stopped.ConversationID)
}

func TestErrorsGoToTheOriginOnly(t *testing.T) {
	h := newHarness(t)
	clientWS := h.dial(t, h.client)

	require.NoError(t, clientWS.WriteMessage(websocket.TextMessage, []byte("not json")))
	env := next(t, clientWS)
	require.Equal(t, gateway.EventError, env.Event)
	assert.Equal(t, model.CodeValidation, decodeAs[gateway.ErrorPayload](t, env.Data).Code)

	send(t, clientWS, "selfDestruct", map[string]string{})
	env = next(t, clientWS)
	require.Equal(t, gateway.EventError, env.Event)
	unknown := decodeAs[gateway.ErrorPayload](t, env.Data)
	assert.Equal(t, "Unknown event: selfDestruct", unknown.Message)

	send(t, clientWS, gateway.EventChatMessage, map[string]string{"message": "   "})
	env = next(t, clientWS)
	require.Equal(t, gateway.EventError, env.Event)
	assert.Equal(t, gateway.EventChatMessage, decodeAs[gateway.ErrorPayload](t, env.Data).Event)

	send(t, clientWS, gateway.EventJoinConversation, map[string]int{"conversationId": 999})
	env = next(t, clientWS)
	require.Equal(t, gateway.EventError, env.Event)
	assert.Equal(t, model.CodeNotFound, decodeAs[gateway.ErrorPayload](t, env.Data).Code)

	// Typing on an unknown conversation is dropped without an error.
	send(t, clientWS, gateway.EventTyping, map[string]interface{}{"conversationId": 999, "isTyping": true})
	send(t, clientWS, gateway.EventPing, nil)
	assert.Equal(t, gateway.EventPong, next(t, clientWS).Event)
}

func TestDisconnectAnnouncesOffline(t *testing.T) {
	h := newHarness(t)
	staffWS := h.dial(t, h.staff)
	clientWS := h.dial(t, h.client)
	expect(t, staffWS, gateway.EventUserOnline)
	assert.True(t, h.hub.Presence().IsOnline(h.client.ID))

	require.NoError(t, clientWS.Close())

	offline := decodeAs[gateway.PresencePayload](t, expect(t, staffWS, gateway.EventUserOffline))
	assert.Equal(t, h.client.ID, offline.UserID)
	assert.False(t, h.hub.Presence().IsOnline(h.client.ID))
	assert.Eventually(t, func() bool { return h.hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSecondTabKeepsPresence(t *testing.T) {
	h := newHarness(t)
	staffWS := h.dial(t, h.staff)
	firstTab := h.dial(t, h.client)
	expect(t, staffWS, gateway.EventUserOnline)
	secondTab := h.dial(t, h.client)
	assert.Equal(t, 2, h.hub.Presence().Connections(h.client.ID))

	require.NoError(t, secondTab.Close())
	require.Eventually(t, func() bool { return h.hub.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.True(t, h.hub.Presence().IsOnline(h.client.ID))

	// Neither a second userOnline nor a userOffline was queued ahead of the snapshot.
	send(t, staffWS, gateway.EventGetOnlineUsers, nil)
	env := next(t, staffWS)
	require.Equal(t, gateway.EventOnlineUsers, env.Event)
	assert.Len(t, decodeAs[gateway.OnlineUsersPayload](t, env.Data).Users, 2)

	// The remaining tab still receives traffic.
	send(t, firstTab, gateway.EventPing, nil)
	assert.Equal(t, gateway.EventPong, next(t, firstTab).Event)
}

func TestGetOnlineUsersHidesClientsFromClients(t *testing.T) {
	h := newHarness(t)
	staffWS := h.dial(t, h.staff)
	clientWS := h.dial(t, h.client)
	expect(t, staffWS, gateway.EventUserOnline)

	send(t, staffWS, gateway.EventGetOnlineUsers, nil)
	all := decodeAs[gateway.OnlineUsersPayload](t, expect(t, staffWS, gateway.EventOnlineUsers))
	assert.Len(t, all.Users, 2)

	send(t, clientWS, gateway.EventGetOnlineUsers, nil)
	visible := decodeAs[gateway.OnlineUsersPayload](t, expect(t, clientWS, gateway.EventOnlineUsers))
	require.Len(t, visible.Users, 1)
	assert.Equal(t, h.staff.ID, visible.Users[0].UserID)
}

func TestServeRejectsMissingToken(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
