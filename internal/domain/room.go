package domain

// RoomID names a collaboration workspace. Rooms have no server-side
// lifecycle of their own; a room exists while someone is present in it.
type RoomID string

// Role is the privilege level a user holds inside a room,
// ordered OWNER > COLLABORATOR > VIEWER.
type Role string

const (
	RoleOwner        Role = "OWNER"
	RoleCollaborator Role = "COLLABORATOR"
	RoleViewer       Role = "VIEWER"
)

// CanWrite reports whether the role may mutate shared room state.
// OWNER keeps every COLLABORATOR privilege.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleCollaborator
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleCollaborator, RoleViewer:
		return true
	}
	return false
}
