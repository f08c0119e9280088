package auth

import "smartattendance/internal/model"

var rolePriorities = map[model.Role]int{
	model.RoleLecturer:     20,
	model.RoleClassPrefect: 10,
}

// RolePriority ranks roles; a higher priority includes every lower one.
func RolePriority(role model.Role) int {
	return rolePriorities[role]
}

// IsAllowed reports whether role satisfies any of the required roles.
// An empty requirement admits every known role.
func IsAllowed(role model.Role, required ...model.Role) bool {
	have := RolePriority(role)
	if have == 0 {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if have >= RolePriority(r) {
			return true
		}
	}
	return false
}
