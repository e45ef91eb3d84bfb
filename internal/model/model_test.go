package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewFor(t *testing.T) {
	staff := Principal{ID: 1, Role: RoleAdmin}
	client := Principal{ID: 1, Role: RoleUser}
	msg := &Message{ID: 7, SenderID: 1, SenderType: SenderAgency, Content: "hi"}

	mine := msg.ViewFor(staff)
	assert.True(t, mine.IsMine)
	assert.Equal(t, "me", mine.Sender)
	assert.Equal(t, "hi", mine.Message)

	// Same numeric id on the other side is a different party.
	theirs := msg.ViewFor(client)
	assert.False(t, theirs.IsMine)
	assert.Equal(t, "agency", theirs.Sender)
}

func TestNewClientFromPrincipal(t *testing.T) {
	c := NewClientFromPrincipal(Principal{Email: " Jane.Doe@Example.com ", Role: RoleUser})
	assert.Equal(t, "Jane.Doe", c.Name)
	assert.Equal(t, "jane.doe@example.com", c.Email)
	assert.Equal(t, c.Name, c.ContactPerson)
	assert.Equal(t, ClientActive, c.Status)

	named := NewClientFromPrincipal(Principal{Email: "a@b.c", Name: "Ann"})
	assert.Equal(t, "Ann", named.Name)
}

func TestHasParty(t *testing.T) {
	conv := &Conversation{ClientID: 3, AgencyID: 10}

	assert.True(t, conv.HasParty(Principal{ID: 10, Role: RoleAdmin}, 0))
	assert.False(t, conv.HasParty(Principal{ID: 11, Role: RoleAdmin}, 0))
	assert.True(t, conv.HasParty(Principal{ID: 99, Role: RoleUser}, 3))
	assert.False(t, conv.HasParty(Principal{ID: 99, Role: RoleUser}, 0))
}

func TestErrorCodes(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("Conversation not found"))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, "Conversation not found", MessageOf(wrapped))

	plain := errors.New("boom")
	assert.Equal(t, CodeServer, CodeOf(plain))
	assert.Equal(t, "internal server error", MessageOf(plain))

	cause := errors.New("disk full")
	assert.ErrorIs(t, ServerError("Failed", cause), cause)
}
