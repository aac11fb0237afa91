package domain

import "strings"

const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
	RoleViewer = "VIEWER"
)

const (
	MemberStatusActive  = "ACTIVE"
	MemberStatusRemoved = "REMOVED"
)

var roleRank = map[string]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Roles lists every role from least to most privileged.
func Roles() []string {
	return []string{RoleViewer, RoleMember, RoleAdmin, RoleOwner}
}

// NormalizeRole upper-cases role and reports whether it is known.
func NormalizeRole(role string) (string, bool) {
	role = strings.ToUpper(strings.TrimSpace(role))
	_, ok := roleRank[role]
	return role, ok
}

// RoleRank orders roles; unknown roles rank 0.
func RoleRank(role string) int {
	normalized, _ := NormalizeRole(role)
	return roleRank[normalized]
}

// RoleAtLeast reports whether role is known and ranks at or above min.
func RoleAtLeast(role, min string) bool {
	rank := RoleRank(role)
	return rank > 0 && rank >= RoleRank(min)
}
