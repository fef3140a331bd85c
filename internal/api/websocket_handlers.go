package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/craftops/fleet/internal/websocket"
	"github.com/craftops/fleet/pkg/logger"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API fronts a trusted dashboard; origin checks are left to the
	// reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades connections onto the event hub
type WebSocketHandler struct {
	hub *websocket.Hub
}

func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket upgrades the request and attaches the client to the hub
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	websocket.Serve(h.hub, conn)
}

// GetStats reports hub connection counts
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": h.hub.ClientCount(),
	})
}
