// Package rbac implements the workspace role hierarchy and capability checks.
//
// The four roles form a fixed total order (owner > admin > editor > viewer)
// modeled as a typed enumeration with a numeric rank, so hierarchy checks are
// integer comparisons rather than string table lookups. All functions here are
// pure: callers fetch the membership row and pass role data in.
//
// Two authorization outcomes are deliberately distinct: Deny (the caller is a
// member but their role is insufficient → 403) and NotAMember (no membership
// row at all → 404, so workspace existence is never leaked to outsiders).
package rbac

import "fmt"

// Role is one of the four fixed workspace roles, ordered by rank
type Role int

const (
	// RoleUnknown is the zero value; it never satisfies any check
	RoleUnknown Role = iota
	RoleViewer
	RoleEditor
	RoleAdmin
	RoleOwner
)

// Decision is the outcome of a hierarchy check
type Decision int

const (
	// Deny: member, but role rank is below the requirement
	Deny Decision = iota
	// Allow: role rank meets or exceeds the requirement
	Allow
	// NotAMember: no membership exists; callers must surface 404, not 403
	NotAMember
)

// String returns the role's canonical lowercase name
func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleEditor:
		return "editor"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// ParseRole maps a stored role name to its Role value
func ParseRole(name string) (Role, error) {
	switch name {
	case "viewer":
		return RoleViewer, nil
	case "editor":
		return RoleEditor, nil
	case "admin":
		return RoleAdmin, nil
	case "owner":
		return RoleOwner, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role name %q", name)
	}
}

// Check decides whether actual satisfies the required minimum role.
// A caller with no membership should call CheckMembership instead; passing
// RoleUnknown here always yields Deny.
func Check(actual, required Role) Decision {
	if actual == RoleUnknown {
		return Deny
	}
	if actual >= required {
		return Allow
	}
	return Deny
}

// CheckMembership decides for a possibly-absent membership. hasMembership is
// false when no row exists for the (user, workspace) pair.
func CheckMembership(hasMembership bool, actual, required Role) Decision {
	if !hasMembership {
		return NotAMember
	}
	return Check(actual, required)
}

// HasCapability reports whether a role's permission set grants the named
// capability (e.g. "write", "delete", "admin"). This supports finer-grained
// checks than the four-level hierarchy; a nil set grants nothing.
func HasCapability(permissions map[string]bool, capability string) bool {
	return permissions[capability]
}

// CanActOnSelf reports whether a member may run a role change or removal
// targeting their own membership. Owners can never demote or remove
// themselves, even though owner rank satisfies every hierarchy check;
// otherwise a workspace could be orphaned with no owner.
func CanActOnSelf(actorID, targetID string, actorRole Role) bool {
	if actorID != targetID {
		return true
	}
	return actorRole != RoleOwner
}
