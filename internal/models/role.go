package models

import "strings"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleUser  Role = "user"
)

// ParseRole maps stored role strings onto Role. "moderator" is the legacy
// name for staff.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "staff", "moderator":
		return RoleStaff
	default:
		return RoleUser
	}
}

// IsPrivileged reports whether actions by this role are audited.
func IsPrivileged(r Role) bool {
	switch ParseRole(string(r)) {
	case RoleAdmin, RoleStaff:
		return true
	}
	return false
}

func (r Role) DisplayName() string {
	switch ParseRole(string(r)) {
	case RoleAdmin:
		return "Administrator"
	case RoleStaff:
		return "Staff"
	default:
		return "User"
	}
}

type Action string

const (
	ActionLogin     Action = "login"
	ActionLogout    Action = "logout"
	ActionLogoutAll Action = "logout_all"
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionLogout, ActionLogoutAll, ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}
