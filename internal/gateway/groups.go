package gateway

import (
	"strconv"
	"sync"

	"github.com/techsolutions/agency-chat/internal/model"
)

func userGroup(id int64) string         { return "user:" + strconv.FormatInt(id, 10) }
func roleGroup(r model.Role) string     { return "role:" + string(r) }
func clientGroup(id int64) string       { return "client:" + strconv.FormatInt(id, 10) }
func conversationGroup(id int64) string { return "conversation:" + strconv.FormatInt(id, 10) }

// groups is the subscription registry. A connection may belong to many groups.
type groups struct {
	mu      sync.RWMutex
	members map[string]map[*Conn]struct{}
	byConn  map[*Conn]map[string]struct{}
}

func newGroups() *groups {
	return &groups{
		members: make(map[string]map[*Conn]struct{}),
		byConn:  make(map[*Conn]map[string]struct{}),
	}
}

func (g *groups) join(name string, c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.members[name]
	if !ok {
		set = make(map[*Conn]struct{})
		g.members[name] = set
	}
	set[c] = struct{}{}

	names, ok := g.byConn[c]
	if !ok {
		names = make(map[string]struct{})
		g.byConn[c] = names
	}
	names[name] = struct{}{}
}

func (g *groups) leave(name string, c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(name, c)
}

func (g *groups) leaveAll(c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name := range g.byConn[c] {
		g.removeLocked(name, c)
	}
	delete(g.byConn, c)
}

func (g *groups) removeLocked(name string, c *Conn) {
	if set, ok := g.members[name]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(g.members, name)
		}
	}
	if names, ok := g.byConn[c]; ok {
		delete(names, name)
	}
}

// connsIn returns the union of the named groups' members, each connection once.
func (g *groups) connsIn(names ...string) []*Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[*Conn]struct{})
	var out []*Conn
	for _, name := range names {
		for c := range g.members[name] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func (g *groups) isMember(name string, c *Conn) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.members[name][c]
	return ok
}
