package domain

// Role names carried in tokens and used for role:<ROLE> topics.
const (
	RoleAdmin   = "ADMIN"
	RoleSeller  = "SELLER"
	RoleUser    = "USER"
	RoleService = "SERVICE"
)
