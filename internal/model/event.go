package model

import (
	"time"
)

// EventType represents the type of chat event.
type EventType string

const (
	EventConversationCreated EventType = "conversation.created"
	EventMessageSent         EventType = "message.sent"
	EventMessagesRead        EventType = "messages.read"
	EventConversationDeleted EventType = "conversation.deleted"
)

// ChatEvent is a committed state change journaled for downstream consumers.
type ChatEvent struct {
	ID             string     `json:"id"`
	Type           EventType  `json:"type"`
	ConversationID int64      `json:"conversationId"`
	ActorID        int64      `json:"actorId"`
	ActorType      SenderType `json:"actorType"`
	MessageID      int64      `json:"messageId,omitempty"`
	Count          int64      `json:"count,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
