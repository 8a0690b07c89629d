package handler

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/trivia-api/internal/websocket"
	"github.com/yourusername/trivia-api/pkg/auth"
)

// WSHandler upgrades an HTTP request to a WebSocket connection, gated on a
// short-lived connection ticket (C10, issued separately from the HTTP
// bearer token — see §6 auth surface).
type WSHandler struct {
	hub        *websocket.Hub
	jwtService *auth.JWTService
}

func NewWSHandler(hub *websocket.Hub, jwtService *auth.JWTService) *WSHandler {
	return &WSHandler{hub: hub, jwtService: jwtService}
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		allowedOrigins := []string{
			"https://triviafront.vercel.app",
			"https://triviafrontadmin.vercel.app",
			"http://localhost:5173",
			"http://localhost:8000",
			"http://localhost:3000",
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		log.Printf("[websocket] rejected unauthorized origin: %s", origin)
		return false
	},
	EnableCompression: true,
}

// HandleConnection handles an incoming WebSocket upgrade. A ticket is
// optional: an unauthenticated guest connection is allowed (§4.3 onConnect
// creates a guest session); when present, the connection still starts as a
// guest and must send `authenticate` explicitly — the ticket only proves
// the browser recently held a valid session, it is not itself a bearer
// token exchange.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	if ticket := c.Query("ticket"); ticket != "" {
		if _, err := h.jwtService.ParseWSTicket(ticket); err != nil {
			log.Printf("[websocket] invalid or expired ticket: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired ticket"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to upgrade: %v", err)})
		return
	}

	h.hub.Connect(conn)
}
