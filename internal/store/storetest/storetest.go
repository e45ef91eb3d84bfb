// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/store"
)

// New returns a migrated in-memory store that is closed when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()

	s, err := store.Open(store.Config{
		Driver:      "sqlite",
		DSN:         fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedUser inserts an identity record and returns it as a principal.
func SeedUser(t testing.TB, s *store.Store, id int64, email string, role model.Role) model.Principal {
	t.Helper()

	rec := &store.UserRecord{ID: id, Email: email, Role: string(role)}
	if err := s.DB().Create(rec).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return model.Principal{ID: id, Email: email, Role: role}
}
