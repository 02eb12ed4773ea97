package handler

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// MessageHandler handles message HTTP requests
type MessageHandler struct {
	service service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service service.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Send handles POST /conversations/:id/messages
// @Summary Send a message; replays with the same client_id return the stored message
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "conversation id"
// @Param request body domain.SendMessageRequest true "message"
// @Success 201 {object} common.APIResponse{data=domain.MessageView}
// @Router /conversations/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	view, err := h.service.Send(c.Request.Context(), service.SendInput{
		ConversationID: c.Param("id"),
		SenderActorID:  middleware.GetActorID(c),
		ClientID:       req.ClientID,
		Type:           req.Type,
		Body:           req.Body,
		MediaURL:       req.MediaURL,
	})
	if err != nil {
		common.AbortWithError(c, "Message not sent", err)
		return
	}
	common.Created(c, view)
}

// List handles GET /conversations/:id/messages
// @Summary Message history, oldest first within a page
// @Tags messages
// @Produce json
// @Param id path string true "conversation id"
// @Param before_id query int false "page before this message id"
// @Param limit query int false "page size"
// @Success 200 {object} common.APIResponse{data=[]domain.MessageView}
// @Router /conversations/{id}/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	views, meta, err := h.service.List(c.Request.Context(), middleware.GetActorID(c), c.Param("id"), service.ListQuery{
		BeforeID: ginutil.QueryUint64(c, "before_id"),
		Limit:    ginutil.QueryInt(c, "limit", 0),
	})
	if err != nil {
		common.AbortWithError(c, "Messages not available", err)
		return
	}
	common.SuccessWithMeta(c, views, meta)
}

// Edit handles PATCH /messages/:id
// @Summary Edit own text message
// @Tags messages
// @Accept json
// @Produce json
// @Param id path int true "message id"
// @Param request body domain.EditMessageRequest true "new body"
// @Success 200 {object} common.APIResponse{data=domain.MessageView}
// @Router /messages/{id} [patch]
func (h *MessageHandler) Edit(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid message id", err)
		return
	}
	var req domain.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	view, err := h.service.Edit(c.Request.Context(), middleware.GetActorID(c), id, req.Body)
	if err != nil {
		common.AbortWithError(c, "Message not edited", err)
		return
	}
	common.Success(c, view)
}

// Delete handles DELETE /messages/:id
// @Summary Unsend a message for everyone
// @Tags messages
// @Produce json
// @Param id path int true "message id"
// @Success 200 {object} common.APIResponse{data=domain.MessageView}
// @Router /messages/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid message id", err)
		return
	}

	view, err := h.service.SoftDelete(c.Request.Context(), middleware.GetActorID(c), id)
	if err != nil {
		common.AbortWithError(c, "Message not deleted", err)
		return
	}
	common.Success(c, view)
}
