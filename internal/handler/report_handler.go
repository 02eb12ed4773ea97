package handler

import (
	"net/http"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler accepts moderation reports
type ReportHandler struct {
	sink service.ReportSink
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(sink service.ReportSink) *ReportHandler {
	return &ReportHandler{sink: sink}
}

// Submit handles POST /reports
// @Summary Report a message, conversation or actor
// @Tags reports
// @Accept json
// @Param request body domain.ReportRequest true "report"
// @Success 202
// @Router /reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	var req domain.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !req.ObjectType.Valid() {
		common.ErrorResponse(c, http.StatusBadRequest, "Unknown object type", nil)
		return
	}

	h.sink.Submit(c.Request.Context(), domain.Report{
		ReporterActorID: middleware.GetActorID(c),
		ObjectType:      req.ObjectType,
		ObjectID:        req.ObjectID,
		ReasonCode:      req.ReasonCode,
		CreatedAt:       time.Now().UTC(),
	})
	c.Status(http.StatusAccepted)
}
