package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techsolutions/agency-chat/internal/model"
)

func testConn(id int64, role model.Role) *Conn {
	return &Conn{principal: model.Principal{ID: id, Email: "u@x.com", Role: role}}
}

func TestPresenceReconnectKeepsPrincipalOnline(t *testing.T) {
	p := NewPresence()
	now := time.Now()

	first := testConn(5, model.RoleUser)
	second := testConn(5, model.RoleUser)

	assert.False(t, p.Register(first, 0, now))
	assert.True(t, p.Register(second, 0, now))

	// The stale connection closing must not take the principal offline.
	assert.False(t, p.Remove(first))
	assert.True(t, p.IsOnline(5))

	assert.True(t, p.Remove(second))
	assert.False(t, p.IsOnline(5))
	assert.Zero(t, p.Count())
}

func TestPresenceStaysOnlineUntilLastConnectionCloses(t *testing.T) {
	p := NewPresence()
	now := time.Now()

	older := testConn(5, model.RoleUser)
	newer := testConn(5, model.RoleUser)
	p.Register(older, 9, now)
	p.Register(newer, 0, now)
	assert.Equal(t, 2, p.Connections(5))

	// Closing the newer tab leaves the older one serving the principal.
	assert.False(t, p.Remove(newer))
	assert.True(t, p.IsOnline(5))
	assert.True(t, p.IsClientOnline(9))
	assert.Equal(t, 1, p.Connections(5))

	// A connection that was never registered changes nothing.
	assert.False(t, p.Remove(testConn(5, model.RoleUser)))
	assert.False(t, p.Remove(newer))

	assert.True(t, p.Remove(older))
	assert.False(t, p.IsClientOnline(9))
	assert.Zero(t, p.Connections(5))
}

func TestPresenceClientLinking(t *testing.T) {
	p := NewPresence()
	c := testConn(5, model.RoleUser)
	p.Register(c, 0, time.Now())

	assert.False(t, p.IsClientOnline(77))
	p.LinkClient(5, 77)
	assert.True(t, p.IsClientOnline(77))

	// A reconnect without a known client id keeps the link.
	p.Register(testConn(5, model.RoleUser), 0, time.Now())
	assert.True(t, p.IsClientOnline(77))
}

func TestPresenceOnlineFiltersClientsForClients(t *testing.T) {
	p := NewPresence()
	p.Register(testConn(2, model.RoleUser), 0, time.Now())
	p.Register(testConn(1, model.RoleAdmin), 0, time.Now())

	all := p.Online(false)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].UserID)

	staff := p.Online(true)
	require.Len(t, staff, 1)
	assert.Equal(t, model.RoleAdmin, staff[0].Role)
}

func TestTypingExpire(t *testing.T) {
	tr := NewTyping()
	base := time.Now()

	tr.Set(1, 10, model.SenderAgency, []string{"client:3"}, base)
	tr.Set(1, 20, model.SenderClient, []string{"user:10"}, base.Add(5*time.Second))
	tr.Set(2, 10, model.SenderAgency, []string{"client:4"}, base.Add(8*time.Second))

	expired := tr.Expire(base.Add(6 * time.Second))
	require.Len(t, expired, 2)
	for _, e := range expired {
		assert.NotEqual(t, int64(2), e.ConversationID)
	}
	assert.False(t, tr.IsTyping(1, 10))
	assert.False(t, tr.IsTyping(1, 20))
	assert.True(t, tr.IsTyping(2, 10))

	// Refreshing keeps an indicator alive.
	tr.Set(2, 10, model.SenderAgency, []string{"client:4"}, base.Add(20*time.Second))
	assert.Empty(t, tr.Expire(base.Add(15*time.Second)))
}

func TestTypingClearUser(t *testing.T) {
	tr := NewTyping()
	now := time.Now()
	tr.Set(1, 10, model.SenderAgency, []string{"client:3"}, now)
	tr.Set(2, 10, model.SenderAgency, []string{"client:4"}, now)
	tr.Set(2, 20, model.SenderClient, []string{"user:10"}, now)

	stopped := tr.ClearUser(10)
	assert.Len(t, stopped, 2)
	assert.True(t, tr.IsTyping(2, 20))

	assert.True(t, tr.Clear(2, 20))
	assert.False(t, tr.Clear(2, 20))
}

func TestGroupsDeduplicateAcrossGroups(t *testing.T) {
	g := newGroups()
	a := testConn(1, model.RoleAdmin)
	b := testConn(2, model.RoleUser)

	g.join(userGroup(1), a)
	g.join(roleGroup(model.RoleAdmin), a)
	g.join(conversationGroup(9), a)
	g.join(conversationGroup(9), b)

	conns := g.connsIn(userGroup(1), roleGroup(model.RoleAdmin), conversationGroup(9))
	assert.Len(t, conns, 2)

	g.leave(conversationGroup(9), b)
	assert.False(t, g.isMember(conversationGroup(9), b))

	g.leaveAll(a)
	assert.Empty(t, g.connsIn(userGroup(1), roleGroup(model.RoleAdmin), conversationGroup(9)))
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var req conversationRequest
	require.NoError(t, decode([]byte(`{"conversationId": 12}`), &req))
	assert.Equal(t, ID(12), req.ConversationID)

	require.NoError(t, decode([]byte(`{"conversationId": "34"}`), &req))
	assert.Equal(t, ID(34), req.ConversationID)

	err := decode([]byte(`{"conversationId": "abc"}`), &req)
	assert.Equal(t, model.CodeValidation, model.CodeOf(err))
}
