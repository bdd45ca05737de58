package tcrt

import "strings"

// TCRT roles.
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleUser       = "USER"
	RoleViewer     = "VIEWER"
)

// Story map roles a TCRT role maps onto.
const (
	StoryMapAdmin  = "storymap.admin"
	StoryMapEditor = "storymap.editor"
	StoryMapViewer = "storymap.viewer"
)

func normalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}

// MapRole maps a TCRT role onto a story map role. Unknown roles get viewer.
func MapRole(role string) string {
	switch normalizeRole(role) {
	case RoleSuperAdmin:
		return StoryMapAdmin
	case RoleAdmin, RoleUser:
		return StoryMapEditor
	default:
		return StoryMapViewer
	}
}

// IsAdmin reports SUPER_ADMIN or ADMIN.
func IsAdmin(role string) bool {
	switch normalizeRole(role) {
	case RoleSuperAdmin, RoleAdmin:
		return true
	}
	return false
}

// IsSuperAdmin reports SUPER_ADMIN.
func IsSuperAdmin(role string) bool {
	return normalizeRole(role) == RoleSuperAdmin
}

// CanEdit reports whether role may edit story maps.
func CanEdit(role string) bool {
	return IsAdmin(role) || normalizeRole(role) == RoleUser
}

// CanView reports whether role is a known TCRT role.
func CanView(role string) bool {
	return CanEdit(role) || normalizeRole(role) == RoleViewer
}
