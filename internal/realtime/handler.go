package realtime

import (
	"net/http"

	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	hub      *Hub
	authz    RoomAuthorizer
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler builds the websocket endpoint. checkOrigin may be nil to allow any origin.
func NewHandler(hub *Hub, authz RoomAuthorizer, checkOrigin func(r *http.Request) bool, logger *zap.Logger) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		hub:   hub,
		authz: authz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	authUser, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, authUser.UID)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(c.Request.Context(), h.authz, h.logger)
}
