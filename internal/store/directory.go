package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/techsolutions/agency-chat/internal/model"
)

// FindClientByEmail returns the client linked to an email address, or nil if none exists.
func (s *Store) FindClientByEmail(ctx context.Context, email string) (*model.Client, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}

	var recs []ClientRecord
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", email).
		Order("id ASC").
		Limit(1).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("find client by email: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return clientRecordToModel(&recs[0]), nil
}

// CreateClient inserts a client and fills in its generated fields.
// Returns ErrConflict if a client with the same email already exists.
func (s *Store) CreateClient(ctx context.Context, c *model.Client) error {
	rec := clientModelToRecord(c)
	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create client: %w", ErrConflict)
		}
		return fmt.Errorf("create client: %w", err)
	}
	*c = *clientRecordToModel(rec)
	return nil
}

// FirstStaffID returns the lowest id among admin users, or zero if there are none.
func (s *Store) FirstStaffID(ctx context.Context) (int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&UserRecord{}).
		Where("role = ?", string(model.RoleAdmin)).
		Order("id ASC").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("find staff user: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

// UsersByID loads identity records for display purposes.
func (s *Store) UsersByID(ctx context.Context, ids []int64) (map[int64]*model.Principal, error) {
	out := make(map[int64]*model.Principal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var recs []UserRecord
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for i := range recs {
		out[recs[i].ID] = userRecordToPrincipal(&recs[i])
	}
	return out, nil
}
