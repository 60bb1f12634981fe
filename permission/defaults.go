package permission

// System role names seeded by most deployments. Super admin is intentionally absent from
// DefaultRolePermissions: it never resolves through the table.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
	RoleUser     = "user"
)

// DefaultRolePermissions is an exported constant or variable used by the authentication engine.
var DefaultRolePermissions = map[string][]string{
	RoleAdmin: {
		Key("users", "read"),
		Key("users", "write"),
		Key("users", "delete"),
		Key("roles", "read"),
		Key("roles", "write"),
		Key("sessions", "read"),
		Key("sessions", "terminate"),
		Key("audit", "read"),
	},
	RoleEmployee: {
		Key("users", "read"),
		Key("sessions", "read"),
	},
	RoleUser: {
		Key("profile", "read"),
		Key("profile", "write"),
	},
}

// IsSystemRole describes the is system role operation and its observable behavior.
//
// IsSystemRole does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func IsSystemRole(name string) bool {
	switch normalizeRole(name) {
	case SuperAdminRole, RoleAdmin, RoleEmployee, RoleUser:
		return true
	}
	return false
}
