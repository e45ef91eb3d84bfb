package model

import (
	"strings"
	"time"
)

// ClientStatus is the lifecycle state of a client record.
type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

// Client is a counterpart external to the agency's staff.
type Client struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Company       string       `json:"company"`
	Phone         string       `json:"phone"`
	Country       string       `json:"country"`
	ContactPerson string       `json:"contactPerson"`
	Status        ClientStatus `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// NewClientFromPrincipal builds the record created on a client's first contact.
func NewClientFromPrincipal(p Principal) *Client {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = EmailLocalPart(p.Email)
	}
	return &Client{
		Name:          name,
		Email:         strings.ToLower(strings.TrimSpace(p.Email)),
		ContactPerson: name,
		Status:        ClientActive,
	}
}

// EmailLocalPart returns the part of an address before '@'.
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
