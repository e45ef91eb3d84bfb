package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/store"
	"github.com/techsolutions/agency-chat/internal/store/storetest"
)

func newClient(t *testing.T, s *store.Store, email string) *model.Client {
	t.Helper()
	c := &model.Client{Name: "Acme", Email: email, Company: "Acme Ltd"}
	require.NoError(t, s.CreateClient(context.Background(), c))
	require.NotZero(t, c.ID)
	return c
}

func clientMessage(clientID, agencyID int64, content string) *model.Message {
	return &model.Message{
		SenderID:   clientID,
		ReceiverID: agencyID,
		SenderType: model.SenderClient,
		Content:    content,
	}
}

func TestStartConversationCreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	client := newClient(t, s, "c@x.com")

	conv, created, err := s.StartConversation(ctx, client.ID, 7, clientMessage(client.ID, 7, "hello"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, "hello", conv.LastMessage)
	assert.True(t, conv.IsActive)
	require.NotNil(t, conv.LastMessageTime)

	again, created, err := s.StartConversation(ctx, client.ID, 7, clientMessage(client.ID, 7, "anyone?"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)
	assert.Equal(t, 2, again.UnreadCount)
	assert.Equal(t, "anyone?", again.LastMessage)
}

func TestStartConversationConcurrentFirstContact(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	client := newClient(t, s, "c@x.com")

	const senders = 8
	var wg sync.WaitGroup
	ids := make(chan int64, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, _, err := s.StartConversation(ctx, client.ID, 7, clientMessage(client.ID, 7, "hi"))
			if assert.NoError(t, err) {
				ids <- conv.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}

	var active int64
	require.NoError(t, s.DB().Model(&store.ConversationRecord{}).
		Where("client_id = ? AND agency_id = ? AND is_active = ?", client.ID, 7, true).
		Count(&active).Error)
	assert.Equal(t, int64(1), active)

	conv, err := s.GetConversation(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, senders, conv.UnreadCount)
}

func TestAppendMessageIncrementsUnread(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	client := newClient(t, s, "c@x.com")

	conv, _, err := s.StartConversation(ctx, client.ID, 7, clientMessage(client.ID, 7, "one"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		msg := &model.Message{
			ConversationID: conv.ID,
			SenderID:       7,
			ReceiverID:     client.ID,
			SenderType:     model.SenderAgency,
			Content:        "reply",
		}
		updated, err := s.AppendMessage(ctx, msg)
		require.NoError(t, err)
		assert.NotZero(t, msg.ID)
		assert.Equal(t, 2+i, updated.UnreadCount)
	}
}

func TestAppendMessageToInactiveConversation(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	client := newClient(t, s, "c@x.com")

	conv, _, err := s.StartConversation(ctx, client.ID, 7, clientMessage(client.ID, 7, "one"))
	require.NoError(t, err)
	require.NoError(t, s.Deactivate(ctx, conv.ID))

	msg := clientMessage(client.ID, 7, "two")
	msg.ConversationID = conv.ID
	_, err = s.AppendMessage(ctx, msg)
	assert.ErrorIs(t, err, store.ErrNotFound)

	messages, err := s.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 1, "failed append must not leave a message behind")

	assert.ErrorIs(t, s.Deactivate(ctx, conv.ID), store.ErrNotFound)
}

func TestMarkReadOnlyTouchesCounterpartMessages(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	client := newClient(t, s, "c@x.com")

	conv, _, err := s.StartConversation(ctx, client.ID, 7, clientMessage(client.ID, 7, "from client"))
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID, SenderID: 7, ReceiverID: client.ID,
		SenderType: model.SenderAgency, Content: "from staff",
	})
	require.NoError(t, err)

	at := time.Now().UTC()
	marked, err := s.MarkRead(ctx, conv.ID, model.SenderClient, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	messages, err := s.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.True(t, messages[0].IsRead)
	assert.NotNil(t, messages[0].ReadAt)
	assert.False(t, messages[1].IsRead)
	assert.Nil(t, messages[1].ReadAt)

	reloaded, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.UnreadCount)

	marked, err = s.MarkRead(ctx, conv.ID, model.SenderClient, at)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestListMessagesIsChronological(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	client := newClient(t, s, "c@x.com")

	conv, _, err := s.StartConversation(ctx, client.ID, 7, clientMessage(client.ID, 7, "m0"))
	require.NoError(t, err)
	for _, text := range []string{"m1", "m2", "m3"} {
		msg := clientMessage(client.ID, 7, text)
		msg.ConversationID = conv.ID
		_, err := s.AppendMessage(ctx, msg)
		require.NoError(t, err)
	}

	messages, err := s.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
	assert.Equal(t, "m3", messages[3].Content)
}

func TestSearchMessagesScopedAndEscaped(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	mine := newClient(t, s, "mine@x.com")
	other := newClient(t, s, "other@x.com")

	conv, _, err := s.StartConversation(ctx, mine.ID, 7, clientMessage(mine.ID, 7, "Invoice 100% paid"))
	require.NoError(t, err)
	_, _, err = s.StartConversation(ctx, other.ID, 8, clientMessage(other.ID, 8, "invoice pending"))
	require.NoError(t, err)

	hits, err := s.SearchMessages(ctx, store.SearchFilter{
		ConversationFilter: store.ConversationFilter{AgencyID: 7},
		Query:              "INVOICE",
		Limit:              10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, conv.ID, hits[0].ConversationID)

	hits, err = s.SearchMessages(ctx, store.SearchFilter{
		ConversationFilter: store.ConversationFilter{ClientID: other.ID},
		Query:              "100%",
		Limit:              10,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestListConversationsAndStats(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	a := newClient(t, s, "a@x.com")
	b := newClient(t, s, "b@x.com")

	first, _, err := s.StartConversation(ctx, a.ID, 7, clientMessage(a.ID, 7, "older"))
	require.NoError(t, err)
	second, _, err := s.StartConversation(ctx, b.ID, 7, clientMessage(b.ID, 7, "newer"))
	require.NoError(t, err)

	listing, err := s.ListConversations(ctx, store.ConversationFilter{AgencyID: 7})
	require.NoError(t, err)
	require.Len(t, listing, 2)
	assert.Equal(t, second.ID, listing[0].Conversation.ID)
	assert.Equal(t, first.ID, listing[1].Conversation.ID)
	assert.Equal(t, "Acme", listing[0].ClientName)
	assert.Equal(t, "Acme Ltd", listing[0].ClientCompany)

	require.NoError(t, s.Deactivate(ctx, first.ID))

	stats, err := s.Stats(ctx, store.ConversationFilter{AgencyID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalConversations)
	assert.Equal(t, int64(1), stats.ActiveConversations)
	assert.Equal(t, int64(1), stats.UnreadMessages)

	listing, err = s.ListConversations(ctx, store.ConversationFilter{ClientID: a.ID})
	require.NoError(t, err)
	assert.Empty(t, listing)
}

func TestDirectoryLookups(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	id, err := s.FirstStaffID(ctx)
	require.NoError(t, err)
	assert.Zero(t, id)

	storetest.SeedUser(t, s, 3, "client@x.com", model.RoleUser)
	storetest.SeedUser(t, s, 9, "boss@agency.com", model.RoleAdmin)
	storetest.SeedUser(t, s, 5, "staff@agency.com", model.RoleAdmin)

	id, err = s.FirstStaffID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	users, err := s.UsersByID(ctx, []int64{5, 9, 42})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "boss@agency.com", users[9].Email)

	created := newClient(t, s, "Mixed@X.com")
	found, err := s.FindClientByEmail(ctx, "mixed@x.COM")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing, err := s.FindClientByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateClientDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	newClient(t, s, "dup@x.com")

	err := s.CreateClient(ctx, &model.Client{Name: "Again", Email: "dup@x.com"})
	assert.ErrorIs(t, err, store.ErrConflict)
}
