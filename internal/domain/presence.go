package domain

type ConnectionID string

type ConnectionStatus string

const (
	StatusOnline  ConnectionStatus = "online"
	StatusOffline ConnectionStatus = "offline"
)

// PresenceEntry is the ephemeral live state of one participant in a room.
// Role is resolved once at join and never changes for the entry's life.
type PresenceEntry struct {
	ConnectionID   ConnectionID     `json:"socketId"`
	UserID         UserID           `json:"userId"`
	DisplayName    string           `json:"username"`
	Room           RoomID           `json:"roomId"`
	Role           Role             `json:"role"`
	Status         ConnectionStatus `json:"status"`
	CursorPosition int              `json:"cursorPosition"`
	SelectionStart *int             `json:"selectionStart,omitempty"`
	SelectionEnd   *int             `json:"selectionEnd,omitempty"`
	Typing         bool             `json:"typing"`
}

// NewPresenceEntry builds the entry a fresh join inserts:
// online, cursor at origin, not typing.
func NewPresenceEntry(connID ConnectionID, id Identity, room RoomID, role Role) *PresenceEntry {
	return &PresenceEntry{
		ConnectionID: connID,
		UserID:       id.UserID,
		DisplayName:  id.DisplayName,
		Room:         room,
		Role:         role,
		Status:       StatusOnline,
	}
}

// PresencePatch is an in-place mutation of a live entry. Nil fields
// are left untouched.
type PresencePatch struct {
	CursorPosition *int
	SelectionStart *int
	SelectionEnd   *int
	Typing         *bool
	Status         *ConnectionStatus
}
