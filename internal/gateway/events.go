package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/techsolutions/agency-chat/internal/model"
)

// Inbound event names.
const (
	EventChatMessage       = "chatMessage"
	EventMarkAsRead        = "markAsRead"
	EventTyping            = "typing"
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventGetOnlineUsers    = "getOnlineUsers"
	EventPing              = "ping"
)

// Outbound event names. EventChatMessage is also used for delivery to the counterpart.
const (
	EventMessageReceived    = "messageReceived"
	EventNewMessage         = "newMessage"
	EventMessagesRead       = "messagesRead"
	EventMessagesMarkedRead = "messagesMarkedRead"
	EventTypingStatus       = "typingStatus"
	EventOnlineUsers        = "onlineUsers"
	EventUserOnline         = "userOnline"
	EventUserOffline        = "userOffline"
	EventJoinedConversation = "joinedConversation"
	EventLeftConversation   = "leftConversation"
	EventPong               = "pong"
	EventError              = "error"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// ID accepts a conversation id sent either as a JSON number or a numeric string.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*id = ID(v)
	return nil
}

type chatMessageRequest struct {
	ConversationID *ID    `json:"conversationId"`
	Message        string `json:"message"`
	// To is accepted from older clients and ignored.
	To json.RawMessage `json:"to,omitempty"`
}

type conversationRequest struct {
	ConversationID ID `json:"conversationId"`
}

type typingRequest struct {
	ConversationID ID   `json:"conversationId"`
	IsTyping       bool `json:"isTyping"`
}

// SenderInfo identifies who caused an event.
type SenderInfo struct {
	ID    int64            `json:"id"`
	Type  model.SenderType `json:"type"`
	Name  string           `json:"name,omitempty"`
	Email string           `json:"email,omitempty"`
}

func senderOf(p model.Principal) SenderInfo {
	name := p.Name
	if name == "" {
		name = model.EmailLocalPart(p.Email)
	}
	return SenderInfo{ID: p.ID, Type: p.SenderType(), Name: name, Email: p.Email}
}

// MessagePayload carries a stored message and its conversation snapshot.
type MessagePayload struct {
	ConversationID int64               `json:"conversationId"`
	Created        bool                `json:"created,omitempty"`
	Message        *model.Message      `json:"message"`
	Conversation   *model.Conversation `json:"conversation"`
	Sender         SenderInfo          `json:"sender"`
}

// ReadPayload tells a sender their messages were read.
type ReadPayload struct {
	ConversationID int64      `json:"conversationId"`
	Count          int64      `json:"count"`
	ReadBy         SenderInfo `json:"readBy"`
	ReadAt         time.Time  `json:"readAt"`
}

// MarkedReadPayload acknowledges a mark-read to the reader.
type MarkedReadPayload struct {
	ConversationID int64 `json:"conversationId"`
	Count          int64 `json:"count"`
}

// TypingPayload reports a typing state change.
type TypingPayload struct {
	ConversationID int64            `json:"conversationId"`
	UserID         int64            `json:"userId"`
	UserType       model.SenderType `json:"userType"`
	IsTyping       bool             `json:"isTyping"`
}

// OnlineUser is one entry of the presence list.
type OnlineUser struct {
	UserID   int64      `json:"userId"`
	Role     model.Role `json:"role"`
	Email    string     `json:"email"`
	ClientID int64      `json:"clientId,omitempty"`
	LastSeen time.Time  `json:"lastSeen"`
}

// OnlineUsersPayload is the presence list sent on connect and on request.
type OnlineUsersPayload struct {
	Users []OnlineUser `json:"users"`
}

// PresencePayload announces a principal going online or offline.
type PresencePayload struct {
	UserID int64      `json:"userId"`
	Role   model.Role `json:"role"`
	Email  string     `json:"email,omitempty"`
}

// ConversationPayload acknowledges a subscription change.
type ConversationPayload struct {
	ConversationID int64 `json:"conversationId"`
}

// ErrorPayload reports a failed inbound event to its sender.
type ErrorPayload struct {
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
	Event   string          `json:"event,omitempty"`
}
