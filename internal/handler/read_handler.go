package handler

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// ReadHandler handles read pointer HTTP requests
type ReadHandler struct {
	service service.ReadStateService
}

// NewReadHandler creates a new ReadHandler
func NewReadHandler(service service.ReadStateService) *ReadHandler {
	return &ReadHandler{service: service}
}

// MarkRead handles POST /conversations/:id/read
// @Summary Mark everything up to the newest message as read
// @Tags read
// @Param id path string true "conversation id"
// @Success 204
// @Router /conversations/{id}/read [post]
func (h *ReadHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), middleware.GetActorID(c), c.Param("id")); err != nil {
		common.AbortWithError(c, "Could not mark read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unread handles GET /conversations/:id/unread
// @Summary Unread count of one conversation
// @Tags read
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} common.APIResponse{data=domain.UnreadTotal}
// @Router /conversations/{id}/unread [get]
func (h *ReadHandler) Unread(c *gin.Context) {
	n, err := h.service.UnreadCount(c.Request.Context(), middleware.GetActorID(c), c.Param("id"))
	if err != nil {
		common.AbortWithError(c, "Unread count not available", err)
		return
	}
	common.Success(c, domain.UnreadTotal{Total: n})
}

// Total handles GET /inbox/unread
// @Summary Unread messages across the inbox folder
// @Tags read
// @Produce json
// @Success 200 {object} common.APIResponse{data=domain.UnreadTotal}
// @Router /inbox/unread [get]
func (h *ReadHandler) Total(c *gin.Context) {
	n, err := h.service.TotalUnread(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		common.AbortWithError(c, "Unread count not available", err)
		return
	}
	common.Success(c, domain.UnreadTotal{Total: n})
}
