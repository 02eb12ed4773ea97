package handler

import (
	"errors"
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// ConversationHandler handles conversation HTTP requests
type ConversationHandler struct {
	service   service.ConversationService
	actorRepo repository.ActorRepository
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(service service.ConversationService, actorRepo repository.ActorRepository) *ConversationHandler {
	return &ConversationHandler{service: service, actorRepo: actorRepo}
}

// Resolve handles POST /conversations
// @Summary Open or reuse the one-to-one conversation with a peer
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body domain.ResolveConversationRequest true "peer"
// @Success 200 {object} common.APIResponse{data=domain.ConversationView}
// @Router /conversations [post]
func (h *ConversationHandler) Resolve(c *gin.Context) {
	actorID := middleware.GetActorID(c)

	var req domain.ResolveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, err := h.actorRepo.FindByID(c.Request.Context(), req.PeerActorID); err != nil {
		if err = common.StorageErr(err); errors.Is(err, common.ErrNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "Peer actor not found", nil)
			return
		}
		common.AbortWithError(c, "Peer lookup failed", err)
		return
	}

	id, err := h.service.Resolve(c.Request.Context(), actorID, req.PeerActorID, req.RealmID)
	if err != nil {
		common.AbortWithError(c, "Could not open conversation", err)
		return
	}

	view, err := h.service.Get(c.Request.Context(), actorID, id)
	if err != nil {
		common.AbortWithError(c, "Could not load conversation", err)
		return
	}
	common.Success(c, view)
}

// Get handles GET /conversations/:id
// @Summary Conversation detail
// @Tags conversations
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} common.APIResponse{data=domain.ConversationView}
// @Router /conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), middleware.GetActorID(c), c.Param("id"))
	if err != nil {
		common.AbortWithError(c, "Conversation not available", err)
		return
	}
	common.Success(c, view)
}

// Leave handles DELETE /conversations/:id/membership
// @Summary Leave a conversation, history is kept
// @Tags conversations
// @Param id path string true "conversation id"
// @Success 204
// @Router /conversations/{id}/membership [delete]
func (h *ConversationHandler) Leave(c *gin.Context) {
	if err := h.service.Leave(c.Request.Context(), middleware.GetActorID(c), c.Param("id")); err != nil {
		common.AbortWithError(c, "Could not leave conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Archive handles POST /conversations/:id/archive
// @Summary Archive a conversation, optionally until a new message arrives
// @Tags conversations
// @Accept json
// @Param id path string true "conversation id"
// @Param request body domain.ArchiveRequest false "options"
// @Success 204
// @Router /conversations/{id}/archive [post]
func (h *ConversationHandler) Archive(c *gin.Context) {
	var req domain.ArchiveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if err := h.service.Archive(c.Request.Context(), middleware.GetActorID(c), c.Param("id"), req.UntilNew); err != nil {
		common.AbortWithError(c, "Could not archive conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unarchive handles DELETE /conversations/:id/archive
// @Summary Unarchive a conversation
// @Tags conversations
// @Param id path string true "conversation id"
// @Success 204
// @Router /conversations/{id}/archive [delete]
func (h *ConversationHandler) Unarchive(c *gin.Context) {
	if err := h.service.Unarchive(c.Request.Context(), middleware.GetActorID(c), c.Param("id")); err != nil {
		common.AbortWithError(c, "Could not unarchive conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetFolder handles PUT /conversations/:id/folder
// @Summary Move a conversation to inbox, spam or requests
// @Tags conversations
// @Accept json
// @Param id path string true "conversation id"
// @Param request body domain.SetFolderRequest true "folder"
// @Success 204
// @Router /conversations/{id}/folder [put]
func (h *ConversationHandler) SetFolder(c *gin.Context) {
	var req domain.SetFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid folder", err)
		return
	}
	if err := h.service.SetFolder(c.Request.Context(), middleware.GetActorID(c), c.Param("id"), req.Folder); err != nil {
		common.AbortWithError(c, "Could not move conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}
