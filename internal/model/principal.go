package model

// Role is the role issued by the identity provider.
type Role string

const (
	// RoleAdmin is agency staff.
	RoleAdmin Role = "admin"
	// RoleUser is a client.
	RoleUser Role = "user"
)

// Principal is a verified caller identity.
type Principal struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role"`
}

// IsStaff reports whether the principal acts for the agency.
func (p Principal) IsStaff() bool {
	return p.Role == RoleAdmin
}

// SenderType maps the principal's role onto a conversation side.
func (p Principal) SenderType() SenderType {
	if p.IsStaff() {
		return SenderAgency
	}
	return SenderClient
}
