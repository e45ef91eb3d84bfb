package store

import (
	"time"

	"github.com/techsolutions/agency-chat/internal/model"
)

// UserRecord mirrors the identity provider's users table. The chat service only reads it.
type UserRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	Email     string    `gorm:"column:email;size:255;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;size:100"`
	Role      string    `gorm:"column:role;size:16;index;not null;default:user"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (UserRecord) TableName() string { return "users" }

type ClientRecord struct {
	ID            int64     `gorm:"primaryKey;column:id"`
	Name          string    `gorm:"column:name;size:100;not null"`
	Email         string    `gorm:"column:email;size:255;uniqueIndex;not null"`
	Company       string    `gorm:"column:company;size:100"`
	Phone         string    `gorm:"column:phone;size:50"`
	Country       string    `gorm:"column:country;size:100"`
	ContactPerson string    `gorm:"column:contact_person;size:100"`
	Status        string    `gorm:"column:status;size:16;not null;default:active"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (ClientRecord) TableName() string { return "clients" }

type ConversationRecord struct {
	ID              int64      `gorm:"primaryKey;column:id"`
	ClientID        int64      `gorm:"column:client_id;not null;index"`
	AgencyID        int64      `gorm:"column:agency_id;not null;index"`
	LastMessage     string     `gorm:"column:last_message;type:text"`
	LastMessageTime *time.Time `gorm:"column:last_message_time;index"`
	UnreadCount     int        `gorm:"column:unread_count;not null;default:0"`
	IsActive        bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (ConversationRecord) TableName() string { return "conversations" }

type MessageRecord struct {
	ID             int64      `gorm:"primaryKey;column:id"`
	ConversationID int64      `gorm:"column:conversation_id;not null;index:idx_messages_conversation_created"`
	SenderID       int64      `gorm:"column:sender_id;not null"`
	ReceiverID     int64      `gorm:"column:receiver_id;not null"`
	SenderType     string     `gorm:"column:sender_type;size:16;not null"`
	Content        string     `gorm:"column:content;type:text;not null"`
	IsRead         bool       `gorm:"column:is_read;not null;default:false;index"`
	ReadAt         *time.Time `gorm:"column:read_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;index:idx_messages_conversation_created"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (MessageRecord) TableName() string { return "messages" }

// Conversion functions

func userRecordToPrincipal(r *UserRecord) *model.Principal {
	if r == nil {
		return nil
	}
	return &model.Principal{
		ID:    r.ID,
		Email: r.Email,
		Name:  r.Name,
		Role:  model.Role(r.Role),
	}
}

func clientRecordToModel(r *ClientRecord) *model.Client {
	if r == nil {
		return nil
	}
	return &model.Client{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		Company:       r.Company,
		Phone:         r.Phone,
		Country:       r.Country,
		ContactPerson: r.ContactPerson,
		Status:        model.ClientStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func clientModelToRecord(c *model.Client) *ClientRecord {
	status := string(c.Status)
	if status == "" {
		status = string(model.ClientActive)
	}
	return &ClientRecord{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Company:       c.Company,
		Phone:         c.Phone,
		Country:       c.Country,
		ContactPerson: c.ContactPerson,
		Status:        status,
	}
}

func conversationRecordToModel(r *ConversationRecord) *model.Conversation {
	if r == nil {
		return nil
	}
	return &model.Conversation{
		ID:              r.ID,
		ClientID:        r.ClientID,
		AgencyID:        r.AgencyID,
		LastMessage:     r.LastMessage,
		LastMessageTime: r.LastMessageTime,
		UnreadCount:     r.UnreadCount,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func messageRecordToModel(r *MessageRecord) *model.Message {
	if r == nil {
		return nil
	}
	return &model.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		ReceiverID:     r.ReceiverID,
		SenderType:     model.SenderType(r.SenderType),
		Content:        r.Content,
		IsRead:         r.IsRead,
		ReadAt:         r.ReadAt,
		CreatedAt:      r.CreatedAt,
	}
}

func messageModelToRecord(m *model.Message) *MessageRecord {
	return &MessageRecord{
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		SenderType:     string(m.SenderType),
		Content:        m.Content,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}
