package model

import (
	"time"
)

// SenderType identifies which side of a conversation wrote a message.
type SenderType string

const (
	SenderClient SenderType = "client"
	SenderAgency SenderType = "agency"
)

// Other returns the opposite side.
func (s SenderType) Other() SenderType {
	if s == SenderAgency {
		return SenderClient
	}
	return SenderAgency
}

// Message represents a conversation message.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversationId"`
	SenderID       int64      `json:"senderId"`
	ReceiverID     int64      `json:"receiverId"`
	SenderType     SenderType `json:"senderType"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"isRead"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// MessageView is a message as seen by one viewer. Sender is "me" for the
// viewer's own messages, otherwise the sender type.
type MessageView struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversationId"`
	Sender         string     `json:"sender"`
	IsMine         bool       `json:"isMine"`
	Message        string     `json:"message"`
	Time           time.Time  `json:"time"`
	IsRead         bool       `json:"isRead"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// ViewFor renders the message for the given viewer.
func (m *Message) ViewFor(p Principal) MessageView {
	mine := m.SenderType == p.SenderType() && m.SenderID == p.ID
	sender := string(m.SenderType)
	if mine {
		sender = "me"
	}
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         sender,
		IsMine:         mine,
		Message:        m.Content,
		Time:           m.CreatedAt,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
	}
}

// SendMessageRequest is the REST body for sending a message.
type SendMessageRequest struct {
	Message string `json:"message"`
}
