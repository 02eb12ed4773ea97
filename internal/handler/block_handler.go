package handler

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// BlockHandler handles actor block HTTP requests
type BlockHandler struct {
	service service.BlockService
}

// NewBlockHandler creates a new BlockHandler
func NewBlockHandler(service service.BlockService) *BlockHandler {
	return &BlockHandler{service: service}
}

// Block handles POST /blocks
// @Summary Block an actor
// @Tags block
// @Accept json
// @Produce json
// @Param request body domain.BlockRequest true "target"
// @Success 200 {object} common.APIResponse{data=domain.BlockView}
// @Router /blocks [post]
func (h *BlockHandler) Block(c *gin.Context) {
	var req domain.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Target actor is required", err)
		return
	}

	result, err := h.service.Block(c.Request.Context(), middleware.GetActorID(c), req.ActorID)
	if err != nil {
		common.AbortWithError(c, "Could not block", err)
		return
	}
	common.Success(c, result)
}

// Unblock handles DELETE /blocks/:actor_id
// @Summary Remove a block
// @Tags block
// @Param actor_id path string true "blocked actor id"
// @Success 204
// @Router /blocks/{actor_id} [delete]
func (h *BlockHandler) Unblock(c *gin.Context) {
	if err := h.service.Unblock(c.Request.Context(), middleware.GetActorID(c), c.Param("actor_id")); err != nil {
		common.AbortWithError(c, "Could not unblock", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// List handles GET /blocks
// @Summary Actors blocked by the acting actor
// @Tags block
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]domain.BlockView}
// @Router /blocks [get]
func (h *BlockHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		common.AbortWithError(c, "Block list not available", err)
		return
	}
	common.Success(c, result)
}
