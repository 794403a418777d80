package models

// Role is the user type supplied by the identity provider.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of recognized roles.
var ValidRoles = []Role{RoleBuyer, RoleAgent, RoleAdmin}

// IsValid checks if a role is recognized.
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role acts on the agent side of an offer.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ProfileID string
	Role      Role
}
