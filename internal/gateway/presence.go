package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/techsolutions/agency-chat/internal/model"
)

type presenceEntry struct {
	conns    map[*Conn]struct{}
	role     model.Role
	email    string
	clientID int64
	lastSeen time.Time
}

// Presence tracks which principals have a live connection. A principal stays
// online until its last connection closes.
type Presence struct {
	mu       sync.RWMutex
	byUser   map[int64]*presenceEntry
	byClient map[int64]int64
}

// NewPresence creates an empty tracker.
func NewPresence() *Presence {
	return &Presence{
		byUser:   make(map[int64]*presenceEntry),
		byClient: make(map[int64]int64),
	}
}

// Register adds c to the principal's live connections. It reports whether the
// principal was already online through another connection.
func (p *Presence) Register(c *Conn, clientID int64, now time.Time) (wasOnline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, wasOnline := p.byUser[c.principal.ID]
	if !wasOnline {
		e = &presenceEntry{
			conns: make(map[*Conn]struct{}),
			role:  c.principal.Role,
			email: c.principal.Email,
		}
		p.byUser[c.principal.ID] = e
	}
	e.conns[c] = struct{}{}
	e.lastSeen = now
	if clientID != 0 {
		e.clientID = clientID
		p.byClient[clientID] = c.principal.ID
	}
	return wasOnline
}

// Remove drops c from its principal's connections. It reports true only when
// that was the last one and the principal went offline.
func (p *Presence) Remove(c *Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byUser[c.principal.ID]
	if !ok {
		return false
	}
	if _, ok := e.conns[c]; !ok {
		return false
	}
	delete(e.conns, c)
	if len(e.conns) > 0 {
		return false
	}
	delete(p.byUser, c.principal.ID)
	if e.clientID != 0 && p.byClient[e.clientID] == c.principal.ID {
		delete(p.byClient, e.clientID)
	}
	return true
}

// Connections returns how many live connections the principal has.
func (p *Presence) Connections(userID int64) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.byUser[userID]; ok {
		return len(e.conns)
	}
	return 0
}

// LinkClient associates an online principal with its Client record.
func (p *Presence) LinkClient(userID, clientID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.byUser[userID]; ok {
		e.clientID = clientID
		p.byClient[clientID] = userID
	}
}

// Touch refreshes the principal's last activity time.
func (p *Presence) Touch(userID int64, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.byUser[userID]; ok {
		e.lastSeen = now
	}
}

// IsOnline reports whether the principal has a live connection.
func (p *Presence) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byUser[userID]
	return ok
}

// IsClientOnline reports whether the principal linked to a Client record is online.
func (p *Presence) IsClientOnline(clientID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byClient[clientID]
	return ok
}

// Online lists online principals ordered by id. With staffOnly set, clients are omitted.
func (p *Presence) Online(staffOnly bool) []OnlineUser {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]OnlineUser, 0, len(p.byUser))
	for id, e := range p.byUser {
		if staffOnly && e.role != model.RoleAdmin {
			continue
		}
		out = append(out, OnlineUser{
			UserID:   id,
			Role:     e.role,
			Email:    e.email,
			ClientID: e.clientID,
			LastSeen: e.lastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Count returns the number of online principals.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser)
}
