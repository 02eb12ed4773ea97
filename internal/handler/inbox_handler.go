package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// InboxHandler handles inbox HTTP requests
type InboxHandler struct {
	service        service.InboxService
	changesTimeout time.Duration
}

// NewInboxHandler creates a new InboxHandler. changesTimeout caps the long-poll.
func NewInboxHandler(service service.InboxService, changesTimeout time.Duration) *InboxHandler {
	return &InboxHandler{service: service, changesTimeout: changesTimeout}
}

// List handles GET /inbox
// @Summary Conversation summaries of a folder, most recent activity first
// @Tags inbox
// @Produce json
// @Param folder query string false "inbox, spam, requests or archived"
// @Success 200 {object} common.APIResponse{data=[]domain.ConversationSummary}
// @Router /inbox [get]
func (h *InboxHandler) List(c *gin.Context) {
	folder := domain.Folder(c.DefaultQuery("folder", string(domain.FolderInbox)))
	if !folder.Valid() {
		common.ErrorResponse(c, http.StatusBadRequest, "Unknown folder", nil)
		return
	}

	actorID := middleware.GetActorID(c)
	version := h.service.Version(actorID)
	summaries, err := h.service.ListFolder(c.Request.Context(), actorID, folder)
	if err != nil {
		common.AbortWithError(c, "Inbox not available", err)
		return
	}
	common.SuccessWithMeta(c, summaries, &common.Meta{Version: version})
}

// Changes handles GET /inbox/changes
// @Summary Long-poll until the inbox version moves past since
// @Tags inbox
// @Produce json
// @Param since query int false "last seen version"
// @Success 200 {object} common.APIResponse{data=domain.InboxChanges}
// @Router /inbox/changes [get]
func (h *InboxHandler) Changes(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid since", err)
		return
	}

	changes, err := h.service.Changes(c.Request.Context(), middleware.GetActorID(c), since, h.changesTimeout)
	if err != nil {
		common.AbortWithError(c, "Inbox changes not available", err)
		return
	}
	common.Success(c, changes)
}

// Settings handles GET /inbox/settings
// @Summary Inbox preferences of the acting actor
// @Tags inbox
// @Produce json
// @Success 200 {object} common.APIResponse{data=domain.ActorSetting}
// @Router /inbox/settings [get]
func (h *InboxHandler) Settings(c *gin.Context) {
	setting, err := h.service.Settings(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		common.AbortWithError(c, "Settings not available", err)
		return
	}
	common.Success(c, setting)
}

// UpdateSettings handles PUT /inbox/settings
// @Summary Update inbox preferences
// @Tags inbox
// @Accept json
// @Produce json
// @Param request body domain.UpdateInboxSettingsRequest true "settings"
// @Success 200 {object} common.APIResponse{data=domain.ActorSetting}
// @Router /inbox/settings [put]
func (h *InboxHandler) UpdateSettings(c *gin.Context) {
	var req domain.UpdateInboxSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	setting, err := h.service.UpdateSettings(c.Request.Context(), middleware.GetActorID(c), *req.HideEmptyConversations)
	if err != nil {
		common.AbortWithError(c, "Settings not saved", err)
		return
	}
	common.Success(c, setting)
}
