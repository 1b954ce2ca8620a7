package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/saeidalz13/battleship-server/internal/observability"
	mc "github.com/saeidalz13/battleship-server/models/connection"
)

// Browser clients carry one packet per binary frame. The largest regular
// packet is a GRID of 108 bytes, so small buffers suffice; IMAGE bodies just
// span several reads.
var upgrader = websocket.Upgrader{
	HandshakeTimeout: time.Second * 5,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// HandleWs upgrades the request and queues the socket for pairing next to
// the raw TCP clients.
func (s *Server) HandleWs(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade already answered with an HTTP error
		s.logger.Warn().Err(err).Msg("could not open websocket connection")
		return
	}

	client, ok := s.admit(mc.NewWsConn(conn))
	if !ok {
		s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket refused during shutdown")
		return
	}
	ctx.Set(observability.ContextUser, client.Id())
	ctx.Set(observability.ContextClientSession, client.SessionId())
}
