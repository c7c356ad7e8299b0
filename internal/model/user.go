package model

import "time"

// Role is the privilege level stored on a user record.  An empty role is a
// regular student.
type Role string

const (
	RoleNone       Role = ""
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Promotable reports whether r is a role that can be granted through the
// promotion endpoints.
func (r Role) Promotable() bool {
	return r == RoleInstructor || r == RoleAdmin
}

// User represents an application user as stored in the `users`
// collection/table.  Users are keyed by their unique email address and are
// created on first self-registration.  They are never deleted; the only
// mutation is a role promotion performed by an admin.
//
// Fields:
//  ID        – store-assigned identifier (ObjectID hex or UUID).
//  Email     – unique email address, the identity key.
//  Name      – display name supplied at registration.
//  PhotoURL  – avatar URL supplied at registration.
//  Role      – "", "instructor" or "admin".
//  CreatedAt – timestamp of registration.
type User struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	PhotoURL  string    `json:"photoURL,omitempty"`
	Role      Role      `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
