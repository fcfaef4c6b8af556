package entity

// SystemRoleName is the single role carried by every system user.
const SystemRoleName = "system_admin"

// Role represents an authorization role
// Many-to-many with User via user_roles, unique by Name
type Role struct {
	Name        string
	Description string
}

// SystemRole returns the administrative role granted to system users.
func SystemRole() Role {
	return Role{Name: SystemRoleName, Description: "Administrative role of the system user"}
}
