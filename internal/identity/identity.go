// Package identity holds the local user's identity snapshot and the single
// place where an identity is classified into a message sender type.
package identity

import "strings"

// Role is the account role the client was started with.
type Role string

const (
	RoleVisitor    Role = "visitor"
	RoleRegistered Role = "registered"
	RoleAdmin      Role = "admin"
)

// SenderType tags who authored a chat message.
type SenderType string

const (
	SenderVisitor    SenderType = "visitor"
	SenderRegistered SenderType = "registered"
	SenderAdmin      SenderType = "admin"
)

// Identity is a point-in-time snapshot of a user, not a live reference.
type Identity struct {
	ID        string
	FirstName string
	LastName  string
	Role      Role
}

// FullName returns "First Last" with surrounding whitespace trimmed.
func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// ClassifySender maps an identity to the sender type stamped on outgoing
// messages. An absent or anonymous identity is a visitor; admins are admins;
// everyone else is a registered user.
func ClassifySender(id *Identity) SenderType {
	if id == nil || id.ID == "" {
		return SenderVisitor
	}
	if id.Role == RoleAdmin {
		return SenderAdmin
	}
	return SenderRegistered
}
