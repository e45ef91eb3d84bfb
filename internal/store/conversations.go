package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/techsolutions/agency-chat/internal/model"
)

const maxStartAttempts = 3

// ConversationFilter scopes queries to one party. Exactly one of AgencyID or ClientID is set.
type ConversationFilter struct {
	AgencyID int64
	ClientID int64
}

func (f ConversationFilter) apply(db *gorm.DB, table string) *gorm.DB {
	if f.AgencyID != 0 {
		db = db.Where(table+".agency_id = ?", f.AgencyID)
	}
	if f.ClientID != 0 {
		db = db.Where(table+".client_id = ?", f.ClientID)
	}
	return db
}

// ConversationListing is a conversation joined with its client's display fields.
type ConversationListing struct {
	Conversation  model.Conversation
	ClientName    string
	ClientCompany string
}

type conversationListRow struct {
	ID              int64
	ClientID        int64
	AgencyID        int64
	LastMessage     string
	LastMessageTime *time.Time
	UnreadCount     int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClientName      string
	ClientCompany   string
}

// GetConversation returns a conversation by id regardless of state, or nil if none exists.
func (s *Store) GetConversation(ctx context.Context, id int64) (*model.Conversation, error) {
	var recs []ConversationRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return conversationRecordToModel(&recs[0]), nil
}

// AppendMessage stores msg in its conversation and updates the conversation snapshot
// and unread counter in the same transaction. Returns ErrNotFound if the conversation
// is missing or inactive.
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) (*model.Conversation, error) {
	var conv *model.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.appendMessage(tx, msg)
		if err != nil {
			return err
		}
		conv = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// StartConversation stores the first message of a client towards a staff member,
// reusing the active conversation for the pair when one exists.
func (s *Store) StartConversation(ctx context.Context, clientID, agencyID int64, msg *model.Message) (*model.Conversation, bool, error) {
	for attempt := 0; attempt < maxStartAttempts; attempt++ {
		var (
			conv    *model.Conversation
			created bool
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			existing, err := s.findActive(tx, clientID, agencyID)
			if err != nil {
				return err
			}

			if existing != nil {
				msg.ConversationID = existing.ID
				c, err := s.appendMessage(tx, msg)
				if err != nil {
					return err
				}
				conv = c
				return nil
			}

			now := s.now()
			rec := &ConversationRecord{
				ClientID:        clientID,
				AgencyID:        agencyID,
				LastMessage:     msg.Content,
				LastMessageTime: &now,
				UnreadCount:     1,
				IsActive:        true,
			}
			if err := tx.Create(rec).Error; err != nil {
				return err
			}

			msg.ConversationID = rec.ID
			mrec := messageModelToRecord(msg)
			mrec.CreatedAt = now
			if err := tx.Create(mrec).Error; err != nil {
				return fmt.Errorf("insert message: %w", err)
			}

			*msg = *messageRecordToModel(mrec)
			conv = conversationRecordToModel(rec)
			created = true
			return nil
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another sender created the pair's conversation first; join it.
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("start conversation: %w", err)
		}
		return conv, created, nil
	}
	return nil, false, fmt.Errorf("start conversation: %w", ErrConflict)
}

func findActiveConversation(tx *gorm.DB, clientID, agencyID int64) (*ConversationRecord, error) {
	var existing []ConversationRecord
	err := tx.Where("client_id = ? AND agency_id = ? AND is_active = ?", clientID, agencyID, true).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("find active conversation: %w", err)
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return &existing[0], nil
}

func (s *Store) appendMessage(tx *gorm.DB, msg *model.Message) (*model.Conversation, error) {
	// The increment is a single statement and takes the row lock for the rest of the transaction.
	res := tx.Model(&ConversationRecord{}).
		Where("id = ? AND is_active = ?", msg.ConversationID, true).
		Updates(map[string]interface{}{
			"last_message": msg.Content,
			"unread_count": gorm.Expr("unread_count + ?", 1),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	now := s.now()
	rec := messageModelToRecord(msg)
	rec.CreatedAt = now
	if err := tx.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	err := tx.Model(&ConversationRecord{}).
		Where("id = ?", msg.ConversationID).
		Update("last_message_time", now).Error
	if err != nil {
		return nil, fmt.Errorf("update conversation time: %w", err)
	}

	var conv ConversationRecord
	if err := tx.Where("id = ?", msg.ConversationID).Take(&conv).Error; err != nil {
		return nil, fmt.Errorf("reload conversation: %w", err)
	}

	*msg = *messageRecordToModel(rec)
	return conversationRecordToModel(&conv), nil
}

// MarkRead marks every unread message written by `from` as read and resets the
// conversation's unread counter. Returns the number of messages marked.
func (s *Store) MarkRead(ctx context.Context, conversationID int64, from model.SenderType, at time.Time) (int64, error) {
	var marked int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ConversationRecord{}).
			Where("id = ? AND is_active = ?", conversationID, true).
			Update("unread_count", 0)
		if res.Error != nil {
			return fmt.Errorf("reset unread count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		res = tx.Model(&MessageRecord{}).
			Where("conversation_id = ? AND sender_type = ? AND is_read = ?", conversationID, string(from), false).
			Updates(map[string]interface{}{
				"is_read": true,
				"read_at": at,
			})
		if res.Error != nil {
			return fmt.Errorf("mark messages read: %w", res.Error)
		}
		marked = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// Deactivate soft-deletes a conversation. Messages are kept.
func (s *Store) Deactivate(ctx context.Context, conversationID int64) error {
	res := s.db.WithContext(ctx).
		Model(&ConversationRecord{}).
		Where("id = ? AND is_active = ?", conversationID, true).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConversations returns the party's active conversations, most recent activity first.
func (s *Store) ListConversations(ctx context.Context, f ConversationFilter) ([]ConversationListing, error) {
	var rows []conversationListRow
	q := s.db.WithContext(ctx).
		Table("conversations").
		Select(`conversations.id, conversations.client_id, conversations.agency_id,
			conversations.last_message, conversations.last_message_time, conversations.unread_count,
			conversations.is_active, conversations.created_at, conversations.updated_at,
			COALESCE(clients.name, '') AS client_name, COALESCE(clients.company, '') AS client_company`).
		Joins("LEFT JOIN clients ON clients.id = conversations.client_id").
		Where("conversations.is_active = ?", true)
	q = f.apply(q, "conversations")

	err := q.Order("COALESCE(conversations.last_message_time, conversations.updated_at) DESC").
		Order("conversations.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]ConversationListing, len(rows))
	for i, r := range rows {
		out[i] = ConversationListing{
			Conversation: model.Conversation{
				ID:              r.ID,
				ClientID:        r.ClientID,
				AgencyID:        r.AgencyID,
				LastMessage:     r.LastMessage,
				LastMessageTime: r.LastMessageTime,
				UnreadCount:     r.UnreadCount,
				IsActive:        r.IsActive,
				CreatedAt:       r.CreatedAt,
				UpdatedAt:       r.UpdatedAt,
			},
			ClientName:    r.ClientName,
			ClientCompany: r.ClientCompany,
		}
	}
	return out, nil
}

// Stats counts the party's conversations and the unread total of the active ones.
func (s *Store) Stats(ctx context.Context, f ConversationFilter) (*model.Stats, error) {
	var stats model.Stats

	base := func() *gorm.DB {
		return f.apply(s.db.WithContext(ctx).Model(&ConversationRecord{}), "conversations")
	}

	if err := base().Count(&stats.TotalConversations).Error; err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}
	if err := base().Where("is_active = ?", true).Count(&stats.ActiveConversations).Error; err != nil {
		return nil, fmt.Errorf("count active conversations: %w", err)
	}
	err := base().
		Where("is_active = ?", true).
		Select("COALESCE(SUM(unread_count), 0)").
		Row().
		Scan(&stats.UnreadMessages)
	if err != nil {
		return nil, fmt.Errorf("sum unread: %w", err)
	}

	return &stats, nil
}
