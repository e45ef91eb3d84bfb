package gateway

import (
	"sync"
	"time"

	"github.com/techsolutions/agency-chat/internal/model"
)

type typingEntry struct {
	at       time.Time
	userType model.SenderType
	notify   []string
}

// TypingStopped describes an indicator that was cleared and whom to tell.
type TypingStopped struct {
	ConversationID int64
	UserID         int64
	UserType       model.SenderType
	Notify         []string
}

// Typing tracks who is typing in which conversation.
type Typing struct {
	mu      sync.Mutex
	entries map[int64]map[int64]typingEntry
}

// NewTyping creates an empty tracker.
func NewTyping() *Typing {
	return &Typing{entries: make(map[int64]map[int64]typingEntry)}
}

// Set records that the user is typing. notify names the groups to tell when the
// indicator is later cleared.
func (t *Typing) Set(conversationID, userID int64, userType model.SenderType, notify []string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.entries[conversationID]
	if !ok {
		users = make(map[int64]typingEntry)
		t.entries[conversationID] = users
	}
	users[userID] = typingEntry{at: at, userType: userType, notify: notify}
}

// Clear removes one indicator and reports whether it existed.
func (t *Typing) Clear(conversationID, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.entries[conversationID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	t.deleteLocked(conversationID, userID)
	return true
}

// ClearUser removes every indicator of the user, as on disconnect.
func (t *Typing) ClearUser(userID int64) []TypingStopped {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []TypingStopped
	for convID, users := range t.entries {
		if e, ok := users[userID]; ok {
			out = append(out, TypingStopped{ConversationID: convID, UserID: userID, UserType: e.userType, Notify: e.notify})
			t.deleteLocked(convID, userID)
		}
	}
	return out
}

// Expire removes indicators last refreshed before the cutoff.
func (t *Typing) Expire(before time.Time) []TypingStopped {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []TypingStopped
	for convID, users := range t.entries {
		for userID, e := range users {
			if e.at.Before(before) {
				out = append(out, TypingStopped{ConversationID: convID, UserID: userID, UserType: e.userType, Notify: e.notify})
				t.deleteLocked(convID, userID)
			}
		}
	}
	return out
}

// IsTyping reports whether the user currently types in the conversation.
func (t *Typing) IsTyping(conversationID, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[conversationID][userID]
	return ok
}

func (t *Typing) deleteLocked(conversationID, userID int64) {
	users := t.entries[conversationID]
	delete(users, userID)
	if len(users) == 0 {
		delete(t.entries, conversationID)
	}
}
