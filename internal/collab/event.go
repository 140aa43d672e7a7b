// Package collab is the realtime event router: it owns the presence
// directory, gates mutating events by the role cached at join time, and
// fans accepted events out to room peers.
package collab

import (
	"encoding/json"

	"github.com/devcollab/server/internal/domain"
)

type EventType string

// Inbound events (client -> server).
const (
	EventJoinRequest       EventType = "join-request"
	EventDirectoryCreated  EventType = "directory-created"
	EventDirectoryUpdated  EventType = "directory-updated"
	EventDirectoryRenamed  EventType = "directory-renamed"
	EventDirectoryDeleted  EventType = "directory-deleted"
	EventFileCreated       EventType = "file-created"
	EventFileUpdated       EventType = "file-updated"
	EventFileRenamed       EventType = "file-renamed"
	EventFileDeleted       EventType = "file-deleted"
	EventCursorMove        EventType = "cursor-move"
	EventTypingStart       EventType = "typing-start"
	EventTypingPause       EventType = "typing-pause"
	EventSendMessage       EventType = "send-message"
	EventUserOnline        EventType = "user-online"
	EventUserOffline       EventType = "user-offline"
	EventRequestDrawing    EventType = "request-drawing"
	EventSyncDrawing       EventType = "sync-drawing"
	EventDrawingUpdate     EventType = "drawing-update"
	EventSyncFileStructure EventType = "sync-file-structure"
)

// Outbound-only events (server -> client).
const (
	EventJoinAccepted     EventType = "join-accepted"
	EventUserJoined       EventType = "user-joined"
	EventUserDisconnected EventType = "user-disconnected"
	EventUsernameExists   EventType = "username-exists"
	EventReceiveMessage   EventType = "receive-message"
)

// Envelope is the wire frame: a type tag plus the event's own payload,
// which the router relays verbatim for accepted broadcasts.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func encodeEvent(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return Envelope{Type: t, Payload: raw}.Encode()
}

type joinAcceptedPayload struct {
	Self   domain.PresenceEntry   `json:"user"`
	Roster []domain.PresenceEntry `json:"users"`
}

type userPayload struct {
	User domain.PresenceEntry `json:"user"`
}

type connectionPayload struct {
	ConnectionID string `json:"socketId"`
}

type cursorPayload struct {
	CursorPosition int  `json:"cursorPosition"`
	SelectionStart *int `json:"selectionStart,omitempty"`
	SelectionEnd   *int `json:"selectionEnd,omitempty"`
}

type syncDrawingPayload struct {
	TargetConnectionID string          `json:"targetConnectionId"`
	Snapshot           json.RawMessage `json:"snapshot"`
}

type syncFileStructurePayload struct {
	TargetConnectionID string          `json:"targetConnectionId"`
	FileStructure      json.RawMessage `json:"fileStructure"`
	OpenFiles          json.RawMessage `json:"openFiles"`
	ActiveFile         json.RawMessage `json:"activeFile"`
}
