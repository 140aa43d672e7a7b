package collab

import "github.com/devcollab/server/internal/domain"

// eventClass partitions room-scoped events by the privilege they demand.
type eventClass int

const (
	classUnknown eventClass = iota
	// classWrite mutates shared document, drawing, or cursor/typing
	// state; requires OWNER or COLLABORATOR.
	classWrite
	// classMember is open to any connection that is in the room,
	// VIEWER included.
	classMember
)

var eventClasses = map[EventType]eventClass{
	EventDirectoryCreated: classWrite,
	EventDirectoryUpdated: classWrite,
	EventDirectoryRenamed: classWrite,
	EventDirectoryDeleted: classWrite,
	EventFileCreated:      classWrite,
	EventFileUpdated:      classWrite,
	EventFileRenamed:      classWrite,
	EventFileDeleted:      classWrite,
	EventCursorMove:       classWrite,
	EventTypingStart:      classWrite,
	EventTypingPause:      classWrite,
	EventRequestDrawing:   classWrite,
	EventSyncDrawing:      classWrite,
	EventDrawingUpdate:    classWrite,

	EventSendMessage:       classMember,
	EventUserOnline:        classMember,
	EventUserOffline:       classMember,
	EventSyncFileStructure: classMember,
}

// Allowed is the single authorization decision for room-scoped events,
// checked in O(1) against the role cached at join. It never consults the
// membership store.
func Allowed(t EventType, role domain.Role) bool {
	switch eventClasses[t] {
	case classWrite:
		return role.CanWrite()
	case classMember:
		return role.Valid()
	default:
		return false
	}
}
