package collab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devcollab/server/internal/collab"
	"github.com/devcollab/server/internal/domain"
)

func TestAllowed(t *testing.T) {
	writeEvents := []collab.EventType{
		collab.EventDirectoryCreated,
		collab.EventDirectoryUpdated,
		collab.EventDirectoryRenamed,
		collab.EventDirectoryDeleted,
		collab.EventFileCreated,
		collab.EventFileUpdated,
		collab.EventFileRenamed,
		collab.EventFileDeleted,
		collab.EventCursorMove,
		collab.EventTypingStart,
		collab.EventTypingPause,
		collab.EventRequestDrawing,
		collab.EventSyncDrawing,
		collab.EventDrawingUpdate,
	}
	memberEvents := []collab.EventType{
		collab.EventSendMessage,
		collab.EventUserOnline,
		collab.EventUserOffline,
		collab.EventSyncFileStructure,
	}

	for _, ev := range writeEvents {
		assert.True(t, collab.Allowed(ev, domain.RoleOwner), "%s owner", ev)
		assert.True(t, collab.Allowed(ev, domain.RoleCollaborator), "%s collaborator", ev)
		assert.False(t, collab.Allowed(ev, domain.RoleViewer), "%s viewer", ev)
	}
	for _, ev := range memberEvents {
		assert.True(t, collab.Allowed(ev, domain.RoleOwner), "%s owner", ev)
		assert.True(t, collab.Allowed(ev, domain.RoleCollaborator), "%s collaborator", ev)
		assert.True(t, collab.Allowed(ev, domain.RoleViewer), "%s viewer", ev)
	}
}

func TestAllowedRejectsUnknownEventAndRole(t *testing.T) {
	assert.False(t, collab.Allowed("made-up-event", domain.RoleOwner))
	assert.False(t, collab.Allowed(collab.EventFileUpdated, domain.Role("")))
	assert.False(t, collab.Allowed(collab.EventSendMessage, domain.Role("SUPERUSER")))
	// Outbound-only types are never acceptable inbound.
	assert.False(t, collab.Allowed(collab.EventJoinAccepted, domain.RoleOwner))
	assert.False(t, collab.Allowed(collab.EventReceiveMessage, domain.RoleOwner))
}
