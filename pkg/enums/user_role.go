package enums

// Role is the platform-level role carried in access tokens.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

var validRoles = []Role{
	RoleAdmin,
	RoleUser,
}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return known(validRoles, r) }

func ParseRole(value string) (Role, error) {
	return parse(validRoles, "role", value)
}
