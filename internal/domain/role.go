package domain

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleUser   Role = "User"
	RoleSystem Role = "System"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleSystem:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
