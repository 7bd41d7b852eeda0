package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Kalantar81/window-counter/pkg/presence"
)

const (
	pongWait       = 90 * time.Second
	closeGraceWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser tabs connect from a separately served frontend
	},
}

func (s *Server) ginHandleWebSocket(c *gin.Context) {
	s.handleWebSocket(c.Writer, c.Request)
}

// handleWebSocket upgrades the connection and registers it under the
// clientId query parameter. A missing clientId is a policy violation:
// the channel is closed with 1008 and the registry is never touched.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.ErrorWithErr("websocket upgrade failed", err)
		return
	}

	if clientID == "" {
		s.log.WarnWith("rejecting connection without client ID", "remote", r.RemoteAddr)
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Client ID is required")
		ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeGraceWait))
		ws.Close()
		return
	}

	conn := presence.NewConn(ws)
	s.hub.Attach(clientID, conn)

	go s.readPump(clientID, conn, ws)
}

// readPump reads messages from one connection and dispatches them until
// the connection dies, then removes the channel from the registry.
func (s *Server) readPump(clientID string, conn *presence.Conn, ws *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorWith("panic recovered in readPump", "clientID", clientID, "panic", r)
		}
		s.hub.Detach(clientID, conn)
		conn.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.DebugWith("websocket read error", "clientID", clientID, "error", err)
			}
			break
		}

		// Malformed input is not fatal: log, drop, keep reading.
		if err := s.dispatcher.Dispatch(clientID, raw); err != nil {
			s.log.WarnWith("dropping malformed message", "clientID", clientID, "error", err)
		}
	}
}
