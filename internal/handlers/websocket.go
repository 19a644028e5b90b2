package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/wheelio/wheelio-backend/internal/services"
)

// WebSocketHandler handles WebSocket connection requests
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		role := c.GetString("role")

		services.HandleWebSocket(hub, c.Writer, c.Request, userID, role)
	}
}
