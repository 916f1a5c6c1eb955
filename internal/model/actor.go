package model

// Role is the authenticated caller's role.
type Role string

const (
	RoleAgent     Role = "AGENT"
	RoleInstaller Role = "INSTALLER"
	RoleInspector Role = "INSPECTOR"
	RoleAdmin     Role = "ADMIN"
	RoleCustomer  Role = "CUSTOMER"
	RoleSystem    Role = "SYSTEM"
)

// Actor identifies who performs an operation.
type Actor struct {
	ID   string
	Role Role
}

// SystemScheduler is the actor recorded for automated sweeps.
var SystemScheduler = Actor{ID: "system:scheduler", Role: RoleSystem}

// Is reports whether the actor holds one of roles.
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Elevated reports whether the actor may use override paths.
func (a Actor) Elevated() bool { return a.Role == RoleAdmin }
