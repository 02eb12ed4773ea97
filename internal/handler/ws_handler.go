package handler

import (
	"net/http"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/presence"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades realtime connections
type WSHandler struct {
	hub            *realtime.Hub
	gate           ws.Authorizer
	presence       *presence.Channel
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *realtime.Hub, gate ws.Authorizer, ch *presence.Channel, allowedOrigins string) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		gate:           gate,
		presence:       ch,
		allowedOrigins: parseOrigins(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// parseOrigins parses comma-separated origins string
func parseOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Connect handles GET /ws
// @Summary Realtime message, read and presence events
// @Tags realtime
// @Router /ws [get]
func (h *WSHandler) Connect(c *gin.Context) {
	actorID := middleware.GetActorID(c)
	if actorID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Login required", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	go ws.NewClient(conn, h.hub, h.gate, h.presence, actorID).Serve()
}
