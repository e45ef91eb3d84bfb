// Package model defines data structures for the agency chat service.
package model

import (
	"time"
)

// Conversation represents a chat thread between one client and one staff member.
type Conversation struct {
	ID              int64      `json:"id"`
	ClientID        int64      `json:"clientId"`
	AgencyID        int64      `json:"agencyId"`
	LastMessage     string     `json:"lastMessage"`
	LastMessageTime *time.Time `json:"lastMessageTime,omitempty"`
	// UnreadCount counts messages unread by whichever party did not send last.
	UnreadCount int       `json:"unreadCount"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasParty reports whether the principal takes part in the conversation.
// clientID is the principal's linked Client record id, zero if none.
func (c *Conversation) HasParty(p Principal, clientID int64) bool {
	if p.IsStaff() {
		return c.AgencyID == p.ID
	}
	return clientID != 0 && c.ClientID == clientID
}

// ConversationSummary is one row of a conversation listing.
type ConversationSummary struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"clientId"`
	AgencyID    int64     `json:"agencyId"`
	Counterpart string    `json:"counterpart"`
	Company     string    `json:"company"`
	LastMessage string    `json:"lastMessage"`
	Time        time.Time `json:"time"`
	Unread      int       `json:"unread"`
	Online      bool      `json:"online"`
}

// Stats aggregates conversation counters for one principal.
type Stats struct {
	TotalConversations  int64 `json:"totalConversations"`
	ActiveConversations int64 `json:"activeConversations"`
	UnreadMessages      int64 `json:"unreadMessages"`
}
