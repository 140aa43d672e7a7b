package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/devcollab/server/internal/domain"
	"github.com/devcollab/server/internal/membership"
)

// memberHandlers exposes the membership mutations. Each one invalidates
// the role cache before the response goes out, so a join issued after
// the acknowledgement observes the new membership.
type memberHandlers struct {
	members *membership.Service
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=OWNER COLLABORATOR VIEWER"`
}

func (h *memberHandlers) setRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid role"})
		return
	}

	room := domain.RoomID(c.Param("workspaceId"))
	user := domain.UserID(c.Param("userId"))
	if err := h.members.SetMemberRole(c.Request.Context(), room, user, domain.Role(req.Role)); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("set member role")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspaceId": string(room), "userId": string(user), "role": req.Role})
}

func (h *memberHandlers) remove(c *gin.Context) {
	room := domain.RoomID(c.Param("workspaceId"))
	user := domain.UserID(c.Param("userId"))
	if err := h.members.RemoveMember(c.Request.Context(), room, user); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("remove member")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership update failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *memberHandlers) deleteWorkspace(c *gin.Context) {
	room := domain.RoomID(c.Param("workspaceId"))
	if err := h.members.DeleteWorkspace(c.Request.Context(), room); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("delete workspace")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "workspace delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
