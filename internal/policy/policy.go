// AngelaMos | 2026
// policy.go

// Package policy decides which roles may perform which actions. It holds no
// state and performs no I/O.
package policy

import (
	"fmt"
	"slices"

	"github.com/carterperez-dev/leadboard/internal/core"
)

const (
	RoleUser        = "user"
	RoleAdmin       = "admin"
	RoleMasterAdmin = "master-admin"
)

type Action string

const (
	// ActionLogin gates session issuance on the account's stored role.
	ActionLogin       Action = "session:create"
	ActionListUsers   Action = "users:list"
	ActionChangeRole  Action = "users:change_role"
	ActionViewReports Action = "reports:view"
	ActionViewStats   Action = "system:stats"
)

var rules = map[Action][]string{
	ActionLogin:       {RoleAdmin, RoleMasterAdmin},
	ActionListUsers:   {RoleAdmin, RoleMasterAdmin},
	ActionChangeRole:  {RoleMasterAdmin},
	ActionViewReports: {RoleAdmin, RoleMasterAdmin},
	ActionViewStats:   {RoleAdmin, RoleMasterAdmin},
}

func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleMasterAdmin:
		return true
	}
	return false
}

// IsAssignableRole reports whether role may be the target of a role change.
// master-admin is never assignable through the API.
func IsAssignableRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

func Allows(action Action, role string) bool {
	return slices.Contains(rules[action], role)
}

// RolesFor returns the roles permitted to perform action.
func RolesFor(action Action) []string {
	return slices.Clone(rules[action])
}

// Authorize returns an error wrapping core.ErrForbidden when role may not
// perform action. Unknown actions are denied.
func Authorize(action Action, role string) error {
	if Allows(action, role) {
		return nil
	}
	return fmt.Errorf("%s denied for role %q: %w", action, role, core.ErrForbidden)
}
