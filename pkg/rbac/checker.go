package rbac

import "sort"

// HasPermission reports whether any of user's roles carries permission.
// It is a plain string membership test and never parses.
func HasPermission(user User, permission string) bool {
	for _, role := range user.Roles {
		if role.HasPermission(permission) {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether user holds at least one of permissions.
// An empty list is never satisfied.
func HasAnyPermission(user User, permissions ...string) bool {
	for _, p := range permissions {
		if HasPermission(user, p) {
			return true
		}
	}
	return false
}

// AllPermissions returns the deduplicated union of permission strings
// across user's roles, sorted
func AllPermissions(user User) []string {
	seen := make(map[string]struct{})
	for _, role := range user.Roles {
		for _, p := range role.Permissions {
			seen[p] = struct{}{}
		}
	}

	perms := make([]string, 0, len(seen))
	for p := range seen {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}
